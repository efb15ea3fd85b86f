package activity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return v
}

func lookup(c Catalog, name string) (Activity, bool) {
	for _, a := range c.Activities() {
		if a.Name == name {
			return a, true
		}
	}
	return Activity{}, false
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "09:00"},
		{in: "9:05", want: "09:05"},
		{in: " 23:59 ", want: "23:59"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "12:5", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

const sampleCatalog = `{
  "Standup": {"days": ["Everyday"], "start_times": ["09:00"], "duration_minutes": 30},
  "Raid":    {"days": ["Monday", "Wednesday"], "start_times": ["20:00", "14:00"], "duration_minutes": null},
  "Guild":   {"days": ["monday"], "start_times": ["14:00"]},
  "Late":    {"days": "Everyday", "start_times": ["23:50"], "duration_minutes": 30},
  "Broken":  {"days": ["Funday"], "start_times": ["10:00"]}
}`

func TestParseKeepsOrderAndSkipsBrokenEntries(t *testing.T) {
	t.Parallel()
	cat, skipped, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(skipped) != 1 {
		t.Fatalf("skipped = %v, want one entry", skipped)
	}
	var ae *ActivityError
	if !errors.As(skipped[0], &ae) || ae.Name != "Broken" {
		t.Fatalf("skipped[0] = %v", skipped[0])
	}
	var names []string
	for _, a := range cat.Activities() {
		names = append(names, a.Name)
	}
	want := []string{"Standup", "Raid", "Guild", "Late"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
	raid, _ := lookup(cat, "Raid")
	if raid.HasDuration {
		t.Fatal("null duration should leave HasDuration unset")
	}
}

func TestParseDurationBounds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		minutes string
		want    time.Duration
		skipped bool
	}{
		{minutes: "0", want: 0},
		{minutes: "1440", want: 24 * time.Hour},
		{minutes: "1441", skipped: true},
		{minutes: "-5", skipped: true},
		{minutes: "9223372036854775807", skipped: true},
	}
	for _, tt := range tests {
		doc := "Standup:\n  days: Everyday\n  start_times: [\"09:00\"]\n" +
			"Nap:\n  days: Everyday\n  start_times: [\"13:00\"]\n  duration_minutes: " + tt.minutes + "\n"
		cat, skipped, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("%s: Parse: %v", tt.minutes, err)
		}
		if tt.skipped {
			var ae *ActivityError
			if len(skipped) != 1 || !errors.As(skipped[0], &ae) || ae.Name != "Nap" || cat.Len() != 1 {
				t.Fatalf("%s: want Nap skipped, got %v", tt.minutes, skipped)
			}
			continue
		}
		nap, ok := lookup(cat, "Nap")
		if !ok || !nap.HasDuration || nap.Duration != tt.want {
			t.Fatalf("%s: got %+v", tt.minutes, nap)
		}
	}
}

func TestParseWholeFileErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]error{
		"":                       ErrEmptyCatalog,
		"{}":                     ErrEmptyCatalog,
		"[1, 2]":                 ErrCatalogNotAMap,
		`{"A": {"days": "x"}}`:   ErrNoValidActivity,
		`{"A": "not-a-mapping"}`: ErrNoValidActivity,
	}
	for in, want := range tests {
		if _, _, err := Parse([]byte(in)); !errors.Is(err, want) {
			t.Fatalf("Parse(%q) err = %v, want %v", in, err, want)
		}
	}
	if _, _, err := Parse([]byte("{bad")); err == nil {
		t.Fatal("syntax error expected")
	}
}

func TestDeriveEverydayStandup(t *testing.T) {
	t.Parallel()
	cat, _, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	occ := Derive(cat, time.Tuesday)
	if len(occ) != 2 {
		t.Fatalf("tuesday occurrences = %v", occ)
	}
	got := occ[0]
	if got.Name != "Standup" || got.Start != mustTime(t, "09:00") || !got.HasEnd || got.End != mustTime(t, "09:30") {
		t.Fatalf("standup occurrence = %+v", got)
	}
	if occ[1].Name != "Late" || occ[1].End != mustTime(t, "23:59") {
		t.Fatalf("late end should clamp to 23:59, got %+v", occ[1])
	}
}

func TestDeriveSortsStablyByStart(t *testing.T) {
	t.Parallel()
	cat, _, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	occ := Derive(cat, time.Monday)
	var got []string
	for _, o := range occ {
		got = append(got, o.String())
	}
	want := []string{
		"09:00-09:30 Standup",
		"14:00 Raid",
		"14:00 Guild",
		"20:00 Raid",
		"23:50-23:59 Late",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	for i := 1; i < len(occ); i++ {
		if occ[i].Start < occ[i-1].Start {
			t.Fatalf("not sorted at %d: %v", i, got)
		}
	}
}

func TestDeriveEmptyAndPlaceholder(t *testing.T) {
	t.Parallel()
	cat := NewCatalog(Activity{Name: "Sun", Weekdays: []time.Weekday{time.Sunday}, Starts: []TimeOfDay{600}})
	if occ := Derive(cat, time.Monday); len(occ) != 0 {
		t.Fatalf("expected no occurrences, got %v", occ)
	}
	if occ := Derive(Catalog{}, time.Monday); len(occ) != 0 {
		t.Fatalf("empty catalog should derive nothing, got %v", occ)
	}
	now := time.Date(2024, 6, 3, 15, 42, 10, 0, time.UTC)
	disp := ForDisplay(cat, now)
	if len(disp) != 1 || disp[0].Name != PlaceholderName || disp[0].Start.String() != "15:42" {
		t.Fatalf("placeholder = %+v", disp)
	}
}

func TestSourceReloadKeepsPreviousOnError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "activities.yaml")
	if err := os.WriteFile(path, []byte("Standup:\n  days: Everyday\n  start_times: [\"09:00\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := NewSource(path, logx.Nop())
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	if src.Catalog().Len() != 1 {
		t.Fatalf("len = %d", src.Catalog().Len())
	}

	if err := os.WriteFile(path, []byte("[broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if src.Reload() {
		t.Fatal("reload of broken file should fail")
	}
	if _, ok := lookup(src.Catalog(), "Standup"); !ok {
		t.Fatal("previous catalog should stay live")
	}

	if err := os.WriteFile(path, []byte("A:\n  days: [Friday]\n  start_times: [\"10:00\"]\nB:\n  days: [Friday]\n  start_times: [\"11:00\"]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if !src.Reload() || src.Catalog().Len() != 2 {
		t.Fatalf("reload should pick up the new catalog, len=%d", src.Catalog().Len())
	}
}

func TestNewSourceMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := NewSource(filepath.Join(t.TempDir(), "nope.json"), logx.Nop()); err == nil {
		t.Fatal("missing catalog must fail startup")
	}
}
