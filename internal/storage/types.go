package storage

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrClosed        = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values: "file" (default), "sqlite", "postgres", "memory".
// Path is used by file and sqlite, DSN by postgres.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// GroupSettings is the persisted state of one group.
type GroupSettings struct {
	ReminderEnabled bool
}

// Groups maps group id to its settings. A group that is absent is disabled.
type Groups map[string]GroupSettings

func (g Groups) Enabled(groupID string) bool { return g[groupID].ReminderEnabled }

func (g Groups) Clone() Groups {
	out := make(Groups, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

// EnabledIDs returns the ids of enabled groups, sorted.
func (g Groups) EnabledIDs() []string {
	var ids []string
	for id, s := range g {
		if s.ReminderEnabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// AuditEntry records a reminder toggle. Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	GroupID   string    `json:"group_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorName string    `json:"actor_name,omitempty"`
	Action    string    `json:"action"`
	Jobs      int       `json:"jobs"`
	Error     string    `json:"error,omitempty"`
}
