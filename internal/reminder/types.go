// Package reminder keeps each group's pending reminder jobs in step with
// the activity catalog.
//
// A group is Disabled or Enabled. Enabling derives today's occurrences,
// schedules one one-shot job per distinct due minute and one daily
// rollover job. The rollover rebuilds the day's reminders and keeps
// itself. Disabling cancels everything the group owns.
//
// Every mutation of a group runs under that group's lock. Rendering and
// delivery run outside it, from the occurrence list captured when the
// job was built.
package reminder

import (
	"context"
	"errors"
	"sort"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/notifier"
	"remindbot/internal/render"
)

const (
	// LeadTime is how long before an occurrence its reminder fires.
	LeadTime = 10 * time.Minute
	// RolloverAt is the local time the daily rollover runs.
	RolloverAt = "00:01"
	// DisplayOffset shifts the rendered "now" so the card highlights the
	// activity that is about to start.
	DisplayOffset = LeadTime + time.Minute

	dispatchTimeout = 2 * time.Minute
	rolloverTimeout = 30 * time.Second
)

var ErrNotGroup = errors.New("reminders are only available in group chats")

// Timer is the timer facility. *scheduler.Service implements it.
type Timer interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	AddDaily(name string, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	// Remove reports false for an unknown or already fired name.
	Remove(name string) bool
}

type Renderer interface {
	Render(ctx context.Context, req render.Request) ([]byte, error)
}

type Notifier interface {
	Send(ctx context.Context, m notifier.Message) error
}

// CatalogSource returns the live catalog. *activity.Source implements it.
type CatalogSource interface {
	Catalog() activity.Catalog
}

// ReminderJob is one scheduled notification. Occurrences share Due and
// are never re-derived once the job exists.
type ReminderJob struct {
	ID          string
	GroupID     string
	Due         time.Time
	Occurrences []activity.Occurrence

	// Schedule is the whole day as derived when the job was built. It
	// feeds the rendered card.
	Schedule []activity.Occurrence
}

// Start is the shared start time of the job's occurrences.
func (j ReminderJob) Start() time.Time { return j.Due.Add(LeadTime) }

// JobRegistry is the set of live job ids of one group.
type JobRegistry struct {
	Rollover  string
	Reminders map[string]ReminderJob
}

func newRegistry() *JobRegistry {
	return &JobRegistry{Reminders: map[string]ReminderJob{}}
}

// IDs lists every registered id, reminders first in due order.
func (r *JobRegistry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Reminders)+1)
	for _, j := range r.pending() {
		out = append(out, j.ID)
	}
	if r.Rollover != "" {
		out = append(out, r.Rollover)
	}
	return out
}

func (r *JobRegistry) pending() []ReminderJob {
	if r == nil {
		return nil
	}
	out := make([]ReminderJob, 0, len(r.Reminders))
	for _, j := range r.Reminders {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].Due.Equal(out[k].Due) {
			return out[i].Due.Before(out[k].Due)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// Actor identifies who toggled a group, for the audit trail.
type Actor struct {
	ID   string
	Name string
}

// Status is a read-only view of one group.
type Status struct {
	GroupID  string
	Enabled  bool
	Rollover string
	Pending  []ReminderJob
}

// Result is attached to reminder.* bus events.
type Result struct {
	GroupID string `json:"group_id"`
	JobID   string `json:"job_id,omitempty"`
	Jobs    int    `json:"jobs,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}
