package activity

import (
	"sort"
	"time"
)

// Derive flattens the catalog into wd's occurrences, one per start time,
// sorted by start. Equal starts keep catalog order. An empty result means
// nothing runs that day.
func Derive(c Catalog, wd time.Weekday) []Occurrence {
	var out []Occurrence
	for _, a := range c.activities {
		if !a.On(wd) {
			continue
		}
		for _, st := range a.Starts {
			out = append(out, a.occurrence(st))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ForDisplay is Derive with the empty-day placeholder substituted.
func ForDisplay(c Catalog, now time.Time) []Occurrence {
	occ := Derive(c, now.Weekday())
	if len(occ) == 0 {
		return Placeholder(now)
	}
	return occ
}
