package commands

import (
	"context"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const defaultTimeout = 30 * time.Second

type Manager struct {
	mu     sync.RWMutex
	routes map[string]*Command
	list   []*Command
	owners map[string]bool

	log     logx.Logger
	adapter kit.Adapter
	workers int
	jobs    chan func()
}

func NewManager(log logx.Logger, adapter kit.Adapter, owners []string) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		routes:  map[string]*Command{},
		log:     log,
		adapter: adapter,
		workers: 4,
		jobs:    make(chan func(), 256),
	}
	m.SetOwners(owners)
	return m
}

// SetOwners replaces the ids allowed to toggle reminders in any group.
// Safe to call during hot-reload.
func (m *Manager) SetOwners(owners []string) {
	set := make(map[string]bool, len(owners))
	for _, o := range owners {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = true
		}
	}
	m.mu.Lock()
	m.owners = set
	m.mu.Unlock()
}

func (m *Manager) isOwner(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.owners[id]
}

// SetRegistry installs cmds plus the built-in help command and refreshes
// the platform menu when the adapter supports one.
func (m *Manager) SetRegistry(ctx context.Context, cmds []Command) {
	help := Command{
		Route:       "help",
		Aliases:     []string{"start"},
		Description: "show available commands",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText())
		},
	}
	cmds = append(cmds, help)

	routes := map[string]*Command{}
	list := make([]*Command, 0, len(cmds))
	for i := range cmds {
		c := cmds[i]
		key := normalizeRoute(c.Route)
		if key == "" || c.Handle == nil {
			continue
		}
		c.Route = key
		list = append(list, &c)
		routes[key] = &c
		for _, a := range c.Aliases {
			if ak := normalizeRoute(a); ak != "" {
				if _, exists := routes[ak]; !exists {
					routes[ak] = &c
				}
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Route < list[j].Route })

	m.mu.Lock()
	m.routes = routes
	m.list = list
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(cctx, m.Menu()); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}
}

// Menu lists top-level commands for platform autocomplete.
func (m *Manager) Menu() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var out []kit.BotCommand
	for _, c := range m.list {
		word := strings.Fields(c.Route)[0]
		if c.Hidden || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, kit.BotCommand{Command: word, Description: c.Description})
	}
	return out
}

// DispatchLoop routes updates until ctx ends or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log.With(logx.String("comp", "commands"))),
		rtsup.WithCancelOnError(false),
	)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					// Middleware already recovers; keep the worker alive regardless.
					func() {
						defer func() {
							if r := recover(); r != nil {
								m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithPublishFirstError(true),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			job := m.prepare(ctx, up)
			if job == nil {
				continue
			}
			select {
			case m.jobs <- job:
			default:
				if up.Message != nil {
					_, _ = m.adapter.SendText(ctx, target(up.Message), "Busy, try again in a moment.", nil)
				}
			}
		}
	}
}

// Handle runs the command in up synchronously.
func (m *Manager) Handle(ctx context.Context, up kit.Update) {
	if job := m.prepare(ctx, up); job != nil {
		job()
	}
}

// prepare resolves up to a runnable job, or nil when it is not a command
// this manager knows.
func (m *Manager) prepare(ctx context.Context, up kit.Update) func() {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return nil
	}
	msg := up.Message
	word, args, ok := splitCommand(msg.Text)
	if !ok {
		return nil
	}
	cmd, args := m.resolve(word, args)
	if cmd == nil {
		// Unknown commands are ignored: group chats carry other bots' commands.
		return nil
	}

	rid := newReqID()
	req := &Request{
		Update:   up,
		Chat:     target(msg),
		FromID:   msg.FromID,
		FromName: msg.FromUsername,
		IsGroup:  msg.IsGroup,
		Command:  cmd.Route,
		Args:     args,
		ReqID:    rid,
		Adapter:  m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.String("chat_id", msg.ChatID),
			logx.String("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	final := wrap(m.authorize(*cmd), recoverPanic(), logRequest(), withDeadline(timeout))
	return func() { _ = final(ctx, req) }
}

func (m *Manager) resolve(word string, args []string) (*Command, []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(args) > 0 {
		if c, ok := m.routes[word+" "+strings.ToLower(args[0])]; ok {
			return c, args[1:]
		}
	}
	return m.routes[word], args
}

// authorize wraps cmd.Handle with its access check. Admin lookups hit the
// platform API, so this runs on the worker, not the dispatch loop.
func (m *Manager) authorize(cmd Command) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		switch cmd.Access {
		case AccessGroup, AccessGroupAdmin:
			if !req.IsGroup {
				return req.Reply(ctx, "This command only works in group chats.")
			}
		}
		if cmd.Access == AccessGroupAdmin && !m.isOwner(req.FromID) {
			ok, err := m.adapter.IsChatAdmin(ctx, req.Chat.ChatID, req.FromID)
			if err != nil {
				req.Logger.Warn("admin check failed", logx.Err(err))
				return req.Reply(ctx, "Could not verify your permissions, try again later.")
			}
			if !ok {
				return req.Reply(ctx, "Only group admins can change reminder settings.")
			}
		}
		return cmd.Handle(ctx, req)
	}
}

func (m *Manager) helpText() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := []string{"Available commands:"}
	for _, c := range m.list {
		if c.Hidden {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Route
		}
		line := usage
		if c.Description != "" {
			line += " - " + c.Description
		}
		if c.Access == AccessGroupAdmin {
			line += " (group admins)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func normalizeRoute(r string) string {
	f := strings.Fields(strings.ToLower(strings.TrimSpace(r)))
	if len(f) == 0 || len(f) > 2 {
		return ""
	}
	return strings.Join(f, " ")
}

func target(msg *kit.Message) kit.ChatTarget {
	return kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
}
