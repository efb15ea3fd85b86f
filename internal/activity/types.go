package activity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in minutes since midnight.
type TimeOfDay int

const lastMinute TimeOfDay = 23*60 + 59

// ParseTimeOfDay parses "HH:MM" (hour may be a single digit).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// Of returns the time of day of t, truncated to the minute.
func Of(t time.Time) TimeOfDay { return TimeOfDay(t.Hour()*60 + t.Minute()) }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

// On places t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

// Activity is one recurring catalog entry. Immutable after load.
type Activity struct {
	Name     string
	Everyday bool
	Weekdays []time.Weekday
	Starts   []TimeOfDay

	// Duration is meaningful only when HasDuration is set.
	Duration    time.Duration
	HasDuration bool
}

// On reports whether the activity runs on wd.
func (a Activity) On(wd time.Weekday) bool {
	if a.Everyday {
		return true
	}
	for _, d := range a.Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}

// Occurrence is one concrete instance of an activity on a given day.
// When HasEnd is set, End >= Start.
type Occurrence struct {
	Name   string
	Start  TimeOfDay
	End    TimeOfDay
	HasEnd bool
}

func (o Occurrence) String() string {
	if o.HasEnd {
		return o.Start.String() + "-" + o.End.String() + " " + o.Name
	}
	return o.Start.String() + " " + o.Name
}

// occurrence builds the occurrence of a starting at start. An end that
// would cross midnight is clamped to 23:59.
func (a Activity) occurrence(start TimeOfDay) Occurrence {
	o := Occurrence{Name: a.Name, Start: start}
	if !a.HasDuration {
		return o
	}
	end := start + TimeOfDay(a.Duration/time.Minute)
	if end > lastMinute {
		end = lastMinute
	}
	if end < start {
		end = start
	}
	o.End, o.HasEnd = end, true
	return o
}

// Catalog is the ordered set of activities. Order is the file's key order.
type Catalog struct {
	activities []Activity
}

func NewCatalog(activities ...Activity) Catalog {
	return Catalog{activities: append([]Activity(nil), activities...)}
}

func (c Catalog) Len() int { return len(c.activities) }

func (c Catalog) Activities() []Activity { return append([]Activity(nil), c.activities...) }

// PlaceholderName labels the stand-in occurrence shown when a day is empty.
const PlaceholderName = "No activities today"

// Placeholder is the display-only stand-in for an empty day. It is never scheduled.
func Placeholder(now time.Time) []Occurrence {
	return []Occurrence{{Name: PlaceholderName, Start: Of(now)}}
}
