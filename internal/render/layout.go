package render

import (
	"time"

	"remindbot/internal/activity"
)

// Columns splits events into two columns, the left one taking the extra
// item when the count is odd.
func Columns(events []activity.Occurrence) (left, right []activity.Occurrence) {
	mid := (len(events) + 1) / 2
	return events[:mid], events[mid:]
}

// Active reports whether now falls inside ev, or within the first five
// minutes when ev has no end. Seconds count, so 09:05:30 is past 09:00+5m.
func Active(ev activity.Occurrence, now time.Time) bool {
	start := ev.Start.On(now)
	end := start.Add(noEndWindow)
	if ev.HasEnd {
		end = ev.End.On(now)
	}
	return !now.Before(start) && !now.After(end)
}

// LastSessions marks the latest-starting occurrence of every activity that
// has more than one session in events.
func LastSessions(events []activity.Occurrence) map[activity.Occurrence]bool {
	latest := map[string]activity.Occurrence{}
	count := map[string]int{}
	for _, ev := range events {
		count[ev.Name]++
		if cur, ok := latest[ev.Name]; !ok || ev.Start > cur.Start {
			latest[ev.Name] = ev
		}
	}
	out := make(map[activity.Occurrence]bool, len(latest))
	for name, ev := range latest {
		if count[name] > 1 {
			out[ev] = true
		}
	}
	return out
}

// TimeLabel is "HH:MM - HH:MM", or "HH:MM" without an end.
func TimeLabel(ev activity.Occurrence) string {
	if ev.HasEnd {
		return ev.Start.String() + " - " + ev.End.String()
	}
	return ev.Start.String()
}
