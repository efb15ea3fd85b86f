package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/GuiaBolso/darwin"
	"github.com/jmoiron/sqlx"

	logx "remindbot/pkg/logx"
)

// sqlStore is shared by the sqlite and postgres drivers. Queries are
// written with '?' placeholders and rebound per driver.
type sqlStore struct {
	db  *sqlx.DB
	log logx.Logger
}

type groupRow struct {
	GroupID         string `db:"group_id"`
	ReminderEnabled bool   `db:"reminder_enabled"`
}

func migrate(db *sqlx.DB, dialect darwin.Dialect, migrations []darwin.Migration) error {
	d := darwin.New(darwin.NewGenericDriver(db.DB, dialect), migrations, nil)
	return d.Migrate()
}

func (s *sqlStore) LoadGroups(ctx context.Context) (Groups, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT group_id, reminder_enabled FROM group_config`); err != nil {
		return nil, err
	}
	out := make(Groups, len(rows))
	for _, r := range rows {
		out[r.GroupID] = GroupSettings{ReminderEnabled: r.ReminderEnabled}
	}
	return out, nil
}

func (s *sqlStore) SaveGroups(ctx context.Context, g Groups) (err error) {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM group_config`); err != nil {
		return err
	}
	q := tx.Rebind(`INSERT INTO group_config(group_id, reminder_enabled, updated_at) VALUES(?, ?, ?)`)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for gid, st := range g {
		if _, err = tx.ExecContext(ctx, q, gid, st.ReminderEnabled, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO audit(at, group_id, actor_id, actor_name, action, jobs, err) VALUES(?,?,?,?,?,?,?)`),
		e.At.UTC().Format(time.RFC3339Nano), e.GroupID, nullStr(e.ActorID), nullStr(e.ActorName),
		e.Action, e.Jobs, nullStr(e.Error),
	)
	return err
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
