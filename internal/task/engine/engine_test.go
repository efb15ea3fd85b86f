package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) (*Service, eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, bus
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event, typ string) eventbus.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestEnqueueRunsTask(t *testing.T) {
	t.Parallel()
	s, bus := startEngine(t, Config{Workers: 1})
	events, unsub := bus.Subscribe(8)
	defer unsub()

	ran := make(chan struct{})
	if err := s.Enqueue(Task{Name: "job", Run: func(context.Context) error { close(ran); return nil }}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-ran
	ev := waitEvent(t, events, eventbus.TaskFinished)
	if te := ev.Data.(TaskEvent); te.Name != "job" || te.ID == "" {
		t.Fatalf("event = %+v", te)
	}
}

func TestOverlapSkipWhileRunning(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{Workers: 2})

	started := make(chan struct{})
	release := make(chan struct{})
	run := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	state := &RunState{}
	if err := s.Enqueue(Task{Name: "event_g_0850_abc", State: state, Run: run}); err != nil {
		t.Fatal(err)
	}
	<-started
	err := s.Enqueue(Task{Name: "event_g_0850_abc", State: state, Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second enqueue err = %v, want ErrOverlapSkip", err)
	}
	// Without a State nothing is gated, even under the same name.
	if err := s.Enqueue(Task{Name: "event_g_0850_abc", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("ungated task: %v", err)
	}
	close(release)
}

func TestPanicAndTimeoutAreRecorded(t *testing.T) {
	t.Parallel()
	s, bus := startEngine(t, Config{Workers: 1, DefaultTimeout: 20 * time.Millisecond})
	events, unsub := bus.Subscribe(8)
	defer unsub()

	_ = s.Enqueue(Task{Name: "boom", Run: func(context.Context) error { panic("bad") }})
	waitEvent(t, events, eventbus.TaskFailed)

	_ = s.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	ev := waitEvent(t, events, eventbus.TaskFailed)
	if te := ev.Data.(TaskEvent); te.Name != "slow" || te.Error == "" {
		t.Fatalf("event = %+v", te)
	}

	st := s.Stats()
	if len(st.History) != 2 || st.Failed != 2 || st.Done != 0 || !st.Running {
		t.Fatalf("stats = %+v", st)
	}
}

func TestEnqueueRequiresRunningEngine(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	if err := s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v", err)
	}
	if err := s.Enqueue(Task{Name: "", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("empty name must fail")
	}
}

func TestStaleTaskIsDropped(t *testing.T) {
	t.Parallel()
	s, bus := startEngine(t, Config{Workers: 1, MaxQueueDelay: 10 * time.Millisecond})
	events, unsub := bus.Subscribe(8)
	defer unsub()

	release := make(chan struct{})
	if err := s.Enqueue(Task{Name: "blocker", Run: func(context.Context) error { <-release; return nil }}); err != nil {
		t.Fatal(err)
	}
	state := &RunState{}
	var ran atomic.Bool
	if err := s.Enqueue(Task{Name: "late", State: state, Run: func(context.Context) error { ran.Store(true); return nil }}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	close(release)

	ev := waitEvent(t, events, eventbus.TaskDropped)
	if te := ev.Data.(TaskEvent); te.Name != "late" || te.Error != "stale" {
		t.Fatalf("event = %+v", te)
	}
	if ran.Load() {
		t.Fatal("stale task must not run")
	}
	if !state.acquire() {
		t.Fatal("dropped task must release its run state")
	}
	if st := s.Stats(); st.Dropped != 1 {
		t.Fatalf("dropped = %d, want 1", st.Dropped)
	}
}

func TestQueueFullReleasesState(t *testing.T) {
	t.Parallel()
	s, _ := startEngine(t, Config{Workers: 1, QueueSize: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	if err := s.Enqueue(Task{Name: "a", Run: func(context.Context) error { close(started); <-release; return nil }}); err != nil {
		t.Fatal(err)
	}
	<-started
	if err := s.Enqueue(Task{Name: "b", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	state := &RunState{}
	if err := s.Enqueue(Task{Name: "c", State: state, Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if !state.acquire() {
		t.Fatal("rejected task must release its run state")
	}
}
