package engine

import (
	"context"
	"sync"
	"time"
)

// Config sizes the worker pool. The app maps config.task_engine into it.
type Config struct {
	Workers   int
	QueueSize int

	// DefaultTimeout applies to tasks without their own Timeout.
	DefaultTimeout time.Duration

	// MaxQueueDelay drops a task that waited longer than this for a worker.
	// A reminder that late is worse than none. 0 disables the check.
	MaxQueueDelay time.Duration

	HistorySize int
}

// RunState gates one job name: while a run is queued or in flight, further
// triggers of the same job are skipped.
type RunState struct {
	mu   sync.Mutex
	busy bool
}

func (s *RunState) acquire() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *RunState) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Task is one run of a scheduled job. Tasks are never retried.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
	// State, when set, keeps runs of the same job from overlapping.
	State *RunState
}

// HistoryItem is one finished (or dropped) task.
type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// TaskEvent is published on the event bus when a task ends.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Stats summarizes the engine for the shutdown log.
type Stats struct {
	Running  bool
	Workers  int
	QueueLen int
	Done     int
	Failed   int
	Dropped  uint64
	History  []HistoryItem
}
