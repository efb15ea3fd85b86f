package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/reminder"
	"remindbot/internal/render"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Reminders is the part of *reminder.Service the commands drive.
type Reminders interface {
	Enable(ctx context.Context, groupID string, actor reminder.Actor) (int, error)
	Disable(ctx context.Context, groupID string, actor reminder.Actor) (int, error)
	Status(groupID string) reminder.Status
}

// Schedules lists what the timer facility holds. *scheduler.Service implements it.
type Schedules interface {
	Snapshot(prefix string) scheduler.Snapshot
}

type Deps struct {
	Reminders Reminders
	Catalog   reminder.CatalogSource
	Renderer  reminder.Renderer
	Schedules Schedules // optional; adds the next daily reset to /reminder status
	Location  *time.Location
	Now       func() time.Time
}

// Builtin returns the bot's command set.
func Builtin(d Deps) []Command {
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{d: d}
	return []Command{
		{
			Route:       "activities",
			Aliases:     []string{"today", "schedule"},
			Description: "today's activity schedule",
			Usage:       "/activities",
			Timeout:     time.Minute,
			Handle:      h.activities,
		},
		{
			Route:       "reminder",
			Description: "turn activity reminders on or off",
			Usage:       "/reminder on|off|status",
			Access:      AccessGroup,
			Handle:      h.reminderUsage,
		},
		{
			Route:       "reminder on",
			Aliases:     []string{"reminder 开", "reminder enable"},
			Description: "enable reminders in this group",
			Usage:       "/reminder on",
			Access:      AccessGroupAdmin,
			Hidden:      true,
			Handle:      h.reminderOn,
		},
		{
			Route:       "reminder off",
			Aliases:     []string{"reminder 关", "reminder disable"},
			Description: "disable reminders in this group",
			Usage:       "/reminder off",
			Access:      AccessGroupAdmin,
			Hidden:      true,
			Handle:      h.reminderOff,
		},
		{
			Route:       "reminder status",
			Description: "show reminder state and pending reminders",
			Usage:       "/reminder status",
			Access:      AccessGroup,
			Hidden:      true,
			Handle:      h.reminderStatus,
		},
	}
}

type handlers struct {
	d Deps
}

func (h *handlers) activities(ctx context.Context, req *Request) error {
	now := h.d.Now().In(h.d.Location)
	var cat activity.Catalog
	if h.d.Catalog != nil {
		cat = h.d.Catalog.Catalog()
	}
	occ := activity.ForDisplay(cat, now)
	caption := fmt.Sprintf("Activities for %s (%s)", now.Format("2006-01-02"), now.Weekday())

	if h.d.Renderer != nil {
		img, err := h.d.Renderer.Render(ctx, render.Request{Events: occ, Now: now})
		if err == nil {
			_, err = req.Adapter.SendPhoto(ctx, req.Chat, kit.Photo{Data: img, Filename: "activities.png", Caption: caption})
			return err
		}
		req.Logger.Warn("schedule render failed; sending text", logx.Err(err))
	}
	return req.Reply(ctx, caption+"\n"+ScheduleText(occ))
}

func (h *handlers) reminderUsage(ctx context.Context, req *Request) error {
	if len(req.Args) > 0 {
		return req.Reply(ctx, fmt.Sprintf("Unknown option %q. Usage: /reminder on|off|status", req.Args[0]))
	}
	return req.Reply(ctx, "Usage: /reminder on|off|status")
}

func (h *handlers) reminderOn(ctx context.Context, req *Request) error {
	n, err := h.d.Reminders.Enable(ctx, req.Chat.ChatID, req.Actor())
	if err != nil {
		if errors.Is(err, reminder.ErrNotGroup) {
			return req.Reply(ctx, "This command only works in group chats.")
		}
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Activity reminders are on. %d reminder(s) scheduled for the rest of today.", n))
}

func (h *handlers) reminderOff(ctx context.Context, req *Request) error {
	n, err := h.d.Reminders.Disable(ctx, req.Chat.ChatID, req.Actor())
	if err != nil {
		if errors.Is(err, reminder.ErrNotGroup) {
			return req.Reply(ctx, "This command only works in group chats.")
		}
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Activity reminders are off. %d pending reminder(s) cancelled.", n))
}

func (h *handlers) reminderStatus(ctx context.Context, req *Request) error {
	st := h.d.Reminders.Status(req.Chat.ChatID)
	text := StatusText(st, h.d.Location)
	if next, ok := h.nextRun(st.Rollover); ok && st.Enabled {
		text += "\nNext daily reset: " + next.In(h.d.Location).Format("2006-01-02 15:04")
	}
	return req.Reply(ctx, text)
}

func (h *handlers) nextRun(name string) (time.Time, bool) {
	if h.d.Schedules == nil || name == "" {
		return time.Time{}, false
	}
	for _, it := range h.d.Schedules.Snapshot(name).Schedules {
		if it.Name == name && !it.Next.IsZero() {
			return it.Next, true
		}
	}
	return time.Time{}, false
}

// ScheduleText is the plain-text schedule used when no image can be sent.
func ScheduleText(occ []activity.Occurrence) string {
	lines := make([]string, 0, len(occ))
	for _, o := range occ {
		t := o.Start.String()
		if o.HasEnd {
			t += " - " + o.End.String()
		}
		lines = append(lines, t+"  "+o.Name)
	}
	return strings.Join(lines, "\n")
}

func StatusText(st reminder.Status, loc *time.Location) string {
	if !st.Enabled {
		return "Activity reminders are off."
	}
	var b strings.Builder
	b.WriteString("Activity reminders are on.")
	if len(st.Pending) == 0 {
		b.WriteString("\nNo more reminders today.")
		return b.String()
	}
	b.WriteString("\nPending today:")
	for _, j := range st.Pending {
		names := make([]string, 0, len(j.Occurrences))
		for _, o := range j.Occurrences {
			names = append(names, o.Name)
		}
		fmt.Fprintf(&b, "\n%s  %s", j.Due.In(loc).Format("15:04"), strings.Join(names, ", "))
	}
	return b.String()
}
