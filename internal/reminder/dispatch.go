package reminder

import (
	"context"
	"fmt"

	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/render"
	logx "remindbot/pkg/logx"
)

// dispatch delivers job. It runs without any group lock and never
// returns an error to the timer: a failed send is logged and dropped.
func (s *Service) dispatch(ctx context.Context, job ReminderJob) {
	s.forget(job.GroupID, job.ID)
	log := s.log.With(logx.String("group", job.GroupID), logx.String("job", job.ID))

	// A disable may have raced the timer.
	if !s.Enabled(job.GroupID) {
		log.Debug("reminder skipped; group disabled")
		s.publish(eventbus.ReminderSkipped, Result{GroupID: job.GroupID, JobID: job.ID, Reason: "disabled"})
		return
	}

	msg := notifier.Message{
		GroupID: job.GroupID,
		Text:    Text(job),
		Key:     fmt.Sprintf("%s@%d", job.GroupID, job.Due.Unix()),
	}
	if s.render != nil {
		img, err := s.render.Render(ctx, render.Request{Events: job.Schedule, Now: s.now().In(s.loc), Offset: DisplayOffset})
		if err != nil {
			log.Warn("reminder render failed", logx.Err(err))
			s.publish(eventbus.ReminderFailed, Result{GroupID: job.GroupID, JobID: job.ID, Error: err.Error()})
			return
		}
		msg.Image = img
	}

	if s.notify == nil {
		return
	}
	if err := s.notify.Send(ctx, msg); err != nil {
		log.Warn("reminder send failed", logx.Err(err))
		s.publish(eventbus.ReminderFailed, Result{GroupID: job.GroupID, JobID: job.ID, Error: err.Error()})
		return
	}
	log.Info("reminder sent", logx.Int("occurrences", len(job.Occurrences)))
	s.publish(eventbus.ReminderSent, Result{GroupID: job.GroupID, JobID: job.ID, Jobs: 1})
}
