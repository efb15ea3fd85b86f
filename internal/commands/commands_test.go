package commands

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/reminder"
	"remindbot/internal/render"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []string
	photos   []kit.Photo
	admins   map[string]bool
	adminErr error
	menu     []kit.BotCommand
}

func (f *fakeAdapter) Name() string                                   { return "fake" }
func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, _ kit.ChatTarget, p kit.Photo) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, p)
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) IsChatAdmin(_ context.Context, _ string, userID string) (bool, error) {
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.admins[userID], nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.menu = cmds
	return nil
}

func (f *fakeAdapter) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeReminders struct {
	enabled map[string]bool
	actors  []reminder.Actor
}

func (f *fakeReminders) Enable(_ context.Context, gid string, a reminder.Actor) (int, error) {
	f.enabled[gid] = true
	f.actors = append(f.actors, a)
	return 3, nil
}

func (f *fakeReminders) Disable(_ context.Context, gid string, a reminder.Actor) (int, error) {
	f.enabled[gid] = false
	f.actors = append(f.actors, a)
	return 2, nil
}

func (f *fakeReminders) Status(gid string) reminder.Status {
	st := reminder.Status{GroupID: gid, Enabled: f.enabled[gid]}
	if st.Enabled {
		st.Rollover = "daily_reset_" + gid + "_abc123"
	}
	return st
}

type fakeSchedules struct{ next time.Time }

func (f fakeSchedules) Snapshot(prefix string) scheduler.Snapshot {
	return scheduler.Snapshot{Running: true, Schedules: []scheduler.ScheduleInfo{
		{Name: "daily_reset_-100_abc123", Kind: scheduler.KindDaily, Next: f.next},
		{Name: "daily_reset_-200_zzz999", Kind: scheduler.KindDaily, Next: f.next},
	}}
}

type fixedCatalog struct{ cat activity.Catalog }

func (f fixedCatalog) Catalog() activity.Catalog { return f.cat }

type fakeRenderer struct{ err error }

func (f fakeRenderer) Render(context.Context, render.Request) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("png"), nil
}

func setup(t *testing.T, r reminder.Renderer) (*Manager, *fakeAdapter, *fakeReminders) {
	t.Helper()
	ad := &fakeAdapter{admins: map[string]bool{"admin": true}}
	rem := &fakeReminders{enabled: map[string]bool{}}
	m := NewManager(logx.Nop(), ad, []string{"owner"})
	cat := activity.NewCatalog(activity.Activity{Name: "Standup", Everyday: true, Starts: []activity.TimeOfDay{9 * 60}})
	m.SetRegistry(context.Background(), Builtin(Deps{
		Reminders: rem,
		Catalog:   fixedCatalog{cat: cat},
		Renderer:  r,
		Schedules: fakeSchedules{next: time.Date(2024, 6, 4, 0, 1, 0, 0, time.UTC)},
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) },
	}))
	return m, ad, rem
}

func msg(text, from string, group bool) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: "-100", FromID: from, FromUsername: from, Text: text, IsGroup: group}}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		word string
		args int
		ok   bool
	}{
		{"/reminder on", "reminder", 1, true},
		{"/Reminder@my_bot  off ", "reminder", 1, true},
		{"/help", "help", 0, true},
		{"hello", "", 0, false},
		{"/", "", 0, false},
	}
	for _, tt := range tests {
		word, args, ok := splitCommand(tt.in)
		if ok != tt.ok || word != tt.word || len(args) != tt.args {
			t.Fatalf("%q: got %q %v %v", tt.in, word, args, ok)
		}
	}
}

func TestToggleByAdmin(t *testing.T) {
	t.Parallel()
	m, ad, rem := setup(t, nil)
	ctx := context.Background()

	m.Handle(ctx, msg("/reminder on", "admin", true))
	if !rem.enabled["-100"] || !strings.Contains(ad.last(), "3 reminder(s)") {
		t.Fatalf("enable reply = %q", ad.last())
	}
	if rem.actors[0].ID != "admin" {
		t.Fatalf("actor = %+v", rem.actors[0])
	}
	m.Handle(ctx, msg("/reminder 关", "admin", true))
	if rem.enabled["-100"] || !strings.Contains(ad.last(), "off") {
		t.Fatalf("disable reply = %q", ad.last())
	}
}

func TestToggleAccess(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		from    string
		group   bool
		enabled bool
		reply   string
	}{
		{"plain member", "bob", true, false, "Only group admins"},
		{"configured owner", "owner", true, true, "on"},
		{"private chat", "admin", false, false, "group chats"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ad, rem := setup(t, nil)
			m.Handle(context.Background(), msg("/reminder 开", tt.from, tt.group))
			if rem.enabled["-100"] != tt.enabled {
				t.Fatalf("enabled = %v", rem.enabled["-100"])
			}
			if !strings.Contains(ad.last(), tt.reply) {
				t.Fatalf("reply = %q", ad.last())
			}
		})
	}
}

func TestAdminLookupFailure(t *testing.T) {
	t.Parallel()
	m, ad, rem := setup(t, nil)
	ad.adminErr = errors.New("api down")
	m.Handle(context.Background(), msg("/reminder on", "bob", true))
	if rem.enabled["-100"] || !strings.Contains(ad.last(), "Could not verify") {
		t.Fatalf("reply = %q", ad.last())
	}
}

func TestStatusAndUsage(t *testing.T) {
	t.Parallel()
	m, ad, rem := setup(t, nil)
	ctx := context.Background()
	m.Handle(ctx, msg("/reminder status", "bob", true))
	if ad.last() != "Activity reminders are off." {
		t.Fatalf("status = %q", ad.last())
	}
	rem.enabled["-100"] = true
	m.Handle(ctx, msg("/reminder status", "bob", true))
	want := "Activity reminders are on.\nNo more reminders today.\nNext daily reset: 2024-06-04 00:01"
	if ad.last() != want {
		t.Fatalf("status = %q, want %q", ad.last(), want)
	}
	m.Handle(ctx, msg("/reminder", "bob", true))
	if !strings.HasPrefix(ad.last(), "Usage:") {
		t.Fatalf("usage = %q", ad.last())
	}
	m.Handle(ctx, msg("/reminder maybe", "bob", true))
	if !strings.Contains(ad.last(), `"maybe"`) {
		t.Fatalf("unknown option = %q", ad.last())
	}
}

func TestActivitiesSendsImageOrText(t *testing.T) {
	t.Parallel()
	m, ad, _ := setup(t, fakeRenderer{})
	m.Handle(context.Background(), msg("/today", "bob", false))
	if len(ad.photos) != 1 || !strings.Contains(ad.photos[0].Caption, "Monday") {
		t.Fatalf("photos = %+v", ad.photos)
	}

	m, ad, _ = setup(t, fakeRenderer{err: errors.New("boom")})
	m.Handle(context.Background(), msg("/activities", "bob", false))
	if len(ad.photos) != 0 || !strings.Contains(ad.last(), "09:00  Standup") {
		t.Fatalf("fallback = %q", ad.last())
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	t.Parallel()
	m, ad, _ := setup(t, nil)
	m.Handle(context.Background(), msg("/weather", "bob", true))
	m.Handle(context.Background(), msg("not a command", "bob", true))
	if len(ad.texts) != 0 {
		t.Fatalf("unexpected replies %v", ad.texts)
	}
}

func TestHelpAndMenu(t *testing.T) {
	t.Parallel()
	m, ad, _ := setup(t, nil)
	m.Handle(context.Background(), msg("/help", "bob", false))
	help := ad.last()
	for _, want := range []string{"/activities", "/reminder on|off|status", "/help"} {
		if !strings.Contains(help, want) {
			t.Fatalf("help missing %q:\n%s", want, help)
		}
	}
	if strings.Contains(help, "/reminder status") {
		t.Fatalf("hidden routes should stay out of help:\n%s", help)
	}
	var names []string
	for _, c := range ad.menu {
		names = append(names, c.Command)
	}
	if strings.Join(names, ",") != "activities,help,reminder" {
		t.Fatalf("menu = %v", names)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	m := NewManager(logx.Nop(), ad, nil)
	m.SetRegistry(context.Background(), []Command{{
		Route:  "boom",
		Handle: func(context.Context, *Request) error { panic("kaboom") },
	}})
	m.Handle(context.Background(), msg("/boom", "x", true))
}

func TestMiddlewareOrder(t *testing.T) {
	t.Parallel()
	var trace []string
	tag := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				trace = append(trace, name)
				return next(ctx, req)
			}
		}
	}
	var deadline bool
	h := wrap(func(ctx context.Context, _ *Request) error {
		_, deadline = ctx.Deadline()
		trace = append(trace, "handler")
		panic("kaboom")
	}, recoverPanic(), tag("outer"), tag("inner"), withDeadline(time.Second))

	err := h(context.Background(), &Request{Command: "boom", Logger: logx.Nop()})
	if err == nil || !strings.Contains(err.Error(), "/boom panicked: kaboom") {
		t.Fatalf("err = %v", err)
	}
	if got := strings.Join(trace, ","); got != "outer,inner,handler" {
		t.Fatalf("trace = %s", got)
	}
	if !deadline {
		t.Fatal("handler context should carry the command deadline")
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()
	st := reminder.Status{Enabled: true, Pending: []reminder.ReminderJob{{
		Due:         time.Date(2024, 6, 3, 13, 50, 0, 0, time.UTC),
		Occurrences: []activity.Occurrence{{Name: "Raid"}, {Name: "Guild"}},
	}}}
	want := "Activity reminders are on.\nPending today:\n13:50  Raid, Guild"
	if got := StatusText(st, time.UTC); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
