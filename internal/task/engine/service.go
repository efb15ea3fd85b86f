package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/eventbus"
	rtsup "remindbot/internal/runtime/supervisor"
	logx "remindbot/pkg/logx"
)

type queued struct {
	task     Task
	at       time.Time
	deadline time.Duration
}

// Service runs fired jobs on a fixed pool of workers.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	log     logx.Logger
	bus     eventbus.Bus
	queue   chan queued
	sup     *rtsup.Supervisor
	running bool

	hmu     sync.Mutex
	history []HistoryItem
	done    int
	failed  int

	dropped atomic.Uint64
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, bus: bus}
}

// Start launches the workers under their own supervisor. A second call
// while running does nothing.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	queue := make(chan queued, s.cfg.QueueSize)
	// A crashing worker is restarted; it never cancels the app.
	sup := rtsup.New(ctx, rtsup.WithLogger(s.log), rtsup.WithCancelOnError(false))
	for i := 0; i < s.cfg.Workers; i++ {
		sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.work(c, queue)
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("worker exited")
		})
	}
	s.queue, s.sup, s.running = queue, sup, true
	s.log.Info("task engine started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop cancels the workers and waits for them until ctx is done. Queued
// tasks are discarded.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	sup := s.sup
	s.queue, s.sup, s.running = nil, nil, false
	s.mu.Unlock()

	sup.Cancel()
	if err := sup.Wait(ctx); err != nil {
		s.log.Warn("task engine stop timed out", logx.Err(err))
		return
	}
	s.log.Info("task engine stopped")
}

// Enqueue hands t to a worker without blocking. It fails with ErrStopped
// before Start, ErrOverlapSkip while t.State is busy and ErrQueueFull when
// every slot is taken.
func (s *Service) Enqueue(t Task) error {
	if t.Run == nil {
		return errors.New("task Run is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("task Name is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	s.mu.Lock()
	queue := s.queue
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.mu.Unlock()
	if queue == nil {
		return ErrStopped
	}

	now := time.Now()
	if !t.State.acquire() {
		s.publish(eventbus.TaskSkipped, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "overlap"})
		return ErrOverlapSkip
	}
	select {
	case queue <- queued{task: t, at: now, deadline: timeout}:
		return nil
	default:
		t.State.release()
		s.drop(t, now, 0, "queue_full")
		return ErrQueueFull
	}
}

// Stats returns counters and a copy of the recent history.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	st := Stats{Running: s.running, Workers: s.cfg.Workers}
	if s.queue != nil {
		st.QueueLen = len(s.queue)
	}
	s.mu.Unlock()

	s.hmu.Lock()
	st.Done, st.Failed = s.done, s.failed
	st.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	st.Dropped = s.dropped.Load()
	return st
}

func (s *Service) drop(t Task, now time.Time, delay time.Duration, reason string) {
	s.dropped.Add(1)
	s.record(HistoryItem{ID: t.ID, Name: t.Name, Started: now, QueueDelay: delay, Error: reason}, false)
	s.publish(eventbus.TaskDropped, TaskEvent{ID: t.ID, Name: t.Name, Started: now, QueueDelay: delay, Error: reason})
	s.log.Warn("task dropped", logx.String("task", t.Name), logx.String("reason", reason), logx.Duration("queue_delay", delay))
}

func (s *Service) record(item HistoryItem, count bool) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	if count {
		if item.Error != "" {
			s.failed++
		} else {
			s.done++
		}
	}
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
}

func (s *Service) publish(typ string, ev TaskEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: ev})
	}
}
