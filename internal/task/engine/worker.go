package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

func (s *Service) work(ctx context.Context, queue <-chan queued) {
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-queue:
			s.run(ctx, q)
		}
	}
}

func (s *Service) run(ctx context.Context, q queued) {
	defer q.task.State.release()
	t := q.task
	start := time.Now()
	delay := start.Sub(q.at)

	s.mu.Lock()
	maxDelay := s.cfg.MaxQueueDelay
	s.mu.Unlock()
	if maxDelay > 0 && delay > maxDelay {
		s.drop(t, start, delay, "stale")
		return
	}

	runCtx := ctx
	if q.deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.deadline)
		defer cancel()
	}
	err := safeRun(runCtx, t.Run)
	if err != nil && errorIsPanic(err) {
		s.log.Error("task panicked", logx.String("task", t.Name), logx.Err(err))
	}

	dur := time.Since(start)
	ev := TaskEvent{ID: t.ID, Name: t.Name, Started: start, QueueDelay: delay, Duration: dur}
	if err != nil {
		ev.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", t.Name), logx.Err(err), logx.Duration("dur", dur))
		s.publish(eventbus.TaskFailed, ev)
	} else {
		s.log.Debug("task done", logx.String("task", t.Name), logx.Duration("queue_delay", delay), logx.Duration("dur", dur))
		s.publish(eventbus.TaskFinished, ev)
	}
	s.record(HistoryItem(ev), true)
}

type panicError struct {
	val   any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v\n%s", p.val, p.stack) }

func errorIsPanic(err error) bool {
	_, ok := err.(*panicError)
	return ok
}

// safeRun turns a panic in fn into an error so the worker survives it.
func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{val: r, stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
