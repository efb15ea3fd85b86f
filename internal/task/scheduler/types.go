package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/task/engine"
	logx "remindbot/pkg/logx"
)

// Enqueuer is the execution side. *engine.Service implements it.
type Enqueuer interface {
	Enqueue(t engine.Task) error
}

type Config struct {
	// Location for daily triggers. nil means time.Local.
	Location *time.Location
}

type Kind string

const (
	KindOnce  Kind = "once"
	KindDaily Kind = "daily"
)

type dailyDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	state   *engine.RunState
}

type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     func(ctx context.Context) error
	timer   *time.Timer
	ver     uint64
	state   *engine.RunState
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	loc    *time.Location
	engine Enqueuer

	parser cron.Parser
	c      *cron.Cron
	daily  map[string]*dailyDef

	// tmu guards one-shot definitions. Definitions outlive Stop so Start can re-arm them.
	tmu     sync.Mutex
	running bool
	once    map[string]*onceDef
	seq     uint64

	// Enqueue error throttling: key is schedule name.
	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

type ScheduleInfo struct {
	Name    string
	Kind    Kind
	Spec    string
	Timeout time.Duration
	Next    time.Time
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
