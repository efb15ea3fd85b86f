package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"remindbot/internal/eventbus"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Service is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  Sender
	bus     eventbus.Bus
	cfg     Config
	limiter *rate.Limiter

	// dedup: key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	now func() time.Time
}

func New(cfg Config, sender Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		sender: sender,
		bus:    bus,
		dedup:  map[string]time.Time{},
		now:    time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps the limits at runtime. The dedup table is kept.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 10000
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Send delivers m once. It returns ErrDuplicate when m.Key was sent within
// the dedup window, and the transport error otherwise.
func (s *Service) Send(ctx context.Context, m Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(m.GroupID) == "" {
		return ErrNoTarget
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()
	if sender == nil {
		return ErrNoSender
	}

	if cfg.DedupWindow > 0 && m.Key != "" && !s.dedupAllow(m.Key, cfg.DedupWindow, cfg.DedupMaxEntries) {
		s.log.Debug("notification deduped", logx.String("group", m.GroupID), logx.String("key", m.Key))
		s.publish("notifier.deduped", m, nil)
		return ErrDuplicate
	}

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	to := kit.ChatTarget{ChatID: m.GroupID, ThreadID: m.ThreadID}
	var err error
	if len(m.Image) > 0 {
		_, err = sender.SendPhoto(callCtx, to, kit.Photo{Data: m.Image, Filename: "schedule.png", Caption: m.Text})
	} else {
		_, err = sender.SendText(callCtx, to, m.Text, nil)
	}
	if err != nil {
		// Let a later attempt for the same key through.
		s.forgetKey(m.Key)
		err = fmt.Errorf("send to %s: %w", m.GroupID, err)
	}
	if err != nil {
		s.publish("notifier.failed", m, err)
		return err
	}
	s.publish("notifier.sent", m, nil)
	return nil
}

func (s *Service) dedupAllow(key string, window time.Duration, max int) bool {
	now := s.now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	// Remove entries with earliest expiry until within cap.
	for max > 0 && len(s.dedup) > max {
		var (
			minKey string
			minT   time.Time
			set    bool
		)
		for k, t := range s.dedup {
			if !set || t.Before(minT) {
				minKey, minT, set = k, t, true
			}
		}
		delete(s.dedup, minKey)
	}
	return true
}

func (s *Service) forgetKey(key string) {
	if key == "" {
		return
	}
	s.dmu.Lock()
	delete(s.dedup, key)
	s.dmu.Unlock()
}

func (s *Service) publish(typ string, m Message, err error) {
	if s.bus == nil {
		return
	}
	now := s.now()
	ev := NotificationEvent{GroupID: m.GroupID, Key: m.Key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
