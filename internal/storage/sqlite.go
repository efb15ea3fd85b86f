package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GuiaBolso/darwin"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

var sqliteMigrations = []darwin.Migration{
	{
		Version:     1,
		Description: "create group_config",
		Script: `CREATE TABLE IF NOT EXISTS group_config (
			group_id         TEXT PRIMARY KEY,
			reminder_enabled BOOLEAN NOT NULL DEFAULT 0,
			updated_at       TEXT NOT NULL
		)`,
	},
	{
		Version:     2,
		Description: "create audit",
		Script: `CREATE TABLE IF NOT EXISTS audit (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
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

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if err := migrate(db, darwin.SqliteDialect{}, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store ready", logx.String("path", path))
	return &sqlStore{db: db, log: log}, nil
}
