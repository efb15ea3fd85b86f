package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/activity"
)

// BuildReminderJobs turns the occurrences of day into reminder jobs for
// groupID. An occurrence whose due time is not strictly after now is
// dropped. Occurrences with the same due minute share one job. Jobs come
// back in due order.
func BuildReminderJobs(groupID string, occ []activity.Occurrence, day, now time.Time, suffix func() string) []ReminderJob {
	if suffix == nil {
		suffix = randomSuffix
	}
	schedule := append([]activity.Occurrence(nil), occ...)

	var (
		jobs  []ReminderJob
		index = map[int64]int{}
	)
	for _, o := range occ {
		due := o.Start.On(day).Add(-LeadTime).Truncate(time.Minute)
		if !due.After(now) {
			continue
		}
		key := due.Unix()
		if i, ok := index[key]; ok {
			jobs[i].Occurrences = append(jobs[i].Occurrences, o)
			continue
		}
		index[key] = len(jobs)
		jobs = append(jobs, ReminderJob{
			ID:          reminderID(groupID, o.Start, suffix()),
			GroupID:     groupID,
			Due:         due,
			Occurrences: []activity.Occurrence{o},
			Schedule:    schedule,
		})
	}
	return jobs
}

func reminderID(groupID string, start activity.TimeOfDay, suffix string) string {
	return fmt.Sprintf("event_%s_%02d%02d_%s", groupID, start.Hour(), start.Minute(), suffix)
}

func rolloverID(groupID, suffix string) string {
	return fmt.Sprintf("daily_reset_%s_%s", groupID, suffix)
}

// randomSuffix keeps ids unique across regenerations of the same day.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
