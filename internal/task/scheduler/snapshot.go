package scheduler

import (
	"sort"
	"strings"
)

// Snapshot lists schedules sorted by next run. Prefix filters by name
// ("" lists everything).
func (s *Service) Snapshot(prefix string) Snapshot {
	var items []ScheduleInfo

	s.mu.Lock()
	c := s.c
	for _, d := range s.daily {
		if !strings.HasPrefix(d.name, prefix) {
			continue
		}
		it := ScheduleInfo{Name: d.name, Kind: KindDaily, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			it.Next = c.Entry(d.entryID).Next
		}
		items = append(items, it)
	}
	running := c != nil
	s.mu.Unlock()

	s.tmu.Lock()
	for name, d := range s.once {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		items = append(items, ScheduleInfo{Name: name, Kind: KindOnce, Timeout: d.timeout, Next: d.at})
	}
	s.tmu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].Next.Equal(items[j].Next) {
			return items[i].Name < items[j].Name
		}
		return items[i].Next.Before(items[j].Next)
	})
	return Snapshot{Running: running, Timezone: s.loc.String(), Schedules: items}
}
