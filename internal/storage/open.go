package storage

import (
	"context"
	"fmt"
	"strings"

	logx "remindbot/pkg/logx"
)

// Store is the persistence API used by the reminder service.
type Store interface {
	// LoadGroups returns the stored settings. Legacy shapes are normalized
	// and malformed entries come back disabled.
	LoadGroups(ctx context.Context) (Groups, error)
	// SaveGroups replaces the stored settings with g.
	SaveGroups(ctx context.Context, g Groups) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store. An empty driver means "file".
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pq":
		return openPostgres(ctx, cfg, log)
	case "memory", "mem":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// LoadOrEmpty loads the stored groups. A failing store yields an empty
// mapping and a log line so startup can continue with every group disabled.
func LoadOrEmpty(ctx context.Context, st Store, log logx.Logger) Groups {
	if st == nil {
		return Groups{}
	}
	g, err := st.LoadGroups(ctx)
	if err != nil {
		log.Error("group config load failed; starting with empty config", logx.Err(err))
		return Groups{}
	}
	if g == nil {
		g = Groups{}
	}
	return g
}
