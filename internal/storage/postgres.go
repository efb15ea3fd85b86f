package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GuiaBolso/darwin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	logx "remindbot/pkg/logx"
)

var postgresMigrations = []darwin.Migration{
	{
		Version:     1,
		Description: "create group_config",
		Script: `CREATE TABLE IF NOT EXISTS group_config (
			group_id         TEXT PRIMARY KEY,
			reminder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at       TEXT NOT NULL
		)`,
	},
	{
		Version:     2,
		Description: "create audit",
		Script: `CREATE TABLE IF NOT EXISTS audit (
			id         BIGSERIAL PRIMARY KEY,
			at         TEXT NOT NULL,
			group_id   TEXT NOT NULL,
			actor_id   TEXT,
			actor_name TEXT,
			action     TEXT NOT NULL,
			jobs       INTEGER NOT NULL DEFAULT 0,
			err        TEXT
		)`,
	},
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, darwin.PostgresDialect{}, postgresMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store ready")
	return &sqlStore{db: db, log: log}, nil
}
