package activity

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

var (
	ErrEmptyCatalog    = errors.New("catalog declares no activities")
	ErrNoValidActivity = errors.New("catalog has no valid activity")
	ErrCatalogNotAMap  = errors.New("catalog root must be a mapping of activity name to definition")
)

const everydayKeyword = "everyday"

var weekdaysByLowerName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ActivityError reports a definition that was skipped during load.
type ActivityError struct {
	Name string
	Err  error
}

func (e *ActivityError) Error() string { return fmt.Sprintf("activity %q: %v", e.Name, e.Err) }
func (e *ActivityError) Unwrap() error { return e.Err }

// maxDurationMinutes caps an activity at one day.
const maxDurationMinutes = 24 * 60

type rawActivity struct {
	Days            yaml.Node `yaml:"days"`
	StartTimes      []string  `yaml:"start_times"`
	DurationMinutes *int      `yaml:"duration_minutes"`
}

// LoadFile reads and parses a catalog file. See Parse.
func LoadFile(path string) (Catalog, []error, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes a catalog document (YAML, or JSON which YAML accepts).
//
// A malformed activity is skipped and reported in skipped; the rest load.
// err is non-nil only when the document as a whole is unusable: not a
// mapping, no entries, or no entry that survived validation.
func Parse(data []byte) (cat Catalog, skipped []error, err error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, nil, fmt.Errorf("parse catalog: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Catalog{}, nil, ErrEmptyCatalog
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Catalog{}, nil, ErrCatalogNotAMap
	}
	if len(root.Content) == 0 {
		return Catalog{}, nil, ErrEmptyCatalog
	}

	seen := map[string]bool{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := strings.TrimSpace(root.Content[i].Value)
		a, perr := parseActivity(name, root.Content[i+1])
		if perr == nil && seen[name] {
			perr = errors.New("duplicate name")
		}
		if perr != nil {
			skipped = append(skipped, &ActivityError{Name: name, Err: perr})
			continue
		}
		seen[name] = true
		cat.activities = append(cat.activities, a)
	}
	if len(cat.activities) == 0 {
		return Catalog{}, skipped, errors.Join(append([]error{ErrNoValidActivity}, skipped...)...)
	}
	return cat, skipped, nil
}

func parseActivity(name string, node *yaml.Node) (Activity, error) {
	if name == "" {
		return Activity{}, errors.New("empty name")
	}
	if node.Kind != yaml.MappingNode {
		return Activity{}, errors.New("definition must be a mapping")
	}
	var raw rawActivity
	if err := node.Decode(&raw); err != nil {
		return Activity{}, err
	}

	a := Activity{Name: name}
	days, err := dayNames(&raw.Days)
	if err != nil {
		return Activity{}, err
	}
	for _, d := range days {
		key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(d), " ", ""))
		if key == everydayKeyword {
			a.Everyday = true
			continue
		}
		wd, ok := weekdaysByLowerName[key]
		if !ok {
			return Activity{}, fmt.Errorf("unknown weekday %q", d)
		}
		a.Weekdays = append(a.Weekdays, wd)
	}
	if !a.Everyday && len(a.Weekdays) == 0 {
		return Activity{}, errors.New("days is empty")
	}

	if len(raw.StartTimes) == 0 {
		return Activity{}, errors.New("start_times is empty")
	}
	for _, s := range raw.StartTimes {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return Activity{}, err
		}
		a.Starts = append(a.Starts, t)
	}

	if raw.DurationMinutes != nil {
		if m := *raw.DurationMinutes; m < 0 || m > maxDurationMinutes {
			return Activity{}, fmt.Errorf("duration_minutes must be within 0..%d, got %d", maxDurationMinutes, m)
		}
		a.Duration = time.Duration(*raw.DurationMinutes) * time.Minute
		a.HasDuration = true
	}
	return a, nil
}

// dayNames accepts either a sequence of names or a single scalar ("Everyday").
func dayNames(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, errors.New("days is required")
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return nil, fmt.Errorf("days: %w", err)
		}
		return out, nil
	default:
		return nil, errors.New("days must be a list of weekday names or \"Everyday\"")
	}
}
