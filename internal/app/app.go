package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/commands"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/render"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/task/engine"
	"remindbot/internal/task/scheduler"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/slack"
	telegram "remindbot/internal/transport/telegram/adapter"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/systemd"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store
	loc   *time.Location

	adapter  kit.Adapter
	catalog  *activity.Source
	renderer *render.Renderer

	engine    *engine.Service
	sched     *scheduler.Service
	notif     *notifier.Service
	reminders *reminder.Service
	cmdm      *commands.Manager

	updates chan kit.Update
}

// New loads the config and builds every component. Nothing runs until Start.
// A missing or unusable catalog fails here.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", cfg.TransportDriver()))
	ad, err := newAdapter(cfg, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg), ad)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(context.Background(), sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	src, err := activity.NewSource(cfg.Catalog.Path, log.With(logx.String("comp", "catalog")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	rnd, err := render.New(mapRenderConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("render: %w", err)
	}

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(scheduler.Config{Location: loc}, engineSvc, log.With(logx.String("comp", "scheduler")))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifSvc := notifier.New(ncfg, ad, log.With(logx.String("comp", "notifier")), bus)

	remSvc := reminder.New(reminder.Deps{
		Timer:    schedSvc,
		Catalog:  src,
		Renderer: rnd,
		Notifier: notifSvc,
		Store:    store,
		Bus:      bus,
		Log:      log.With(logx.String("comp", "reminder")),
		Location: loc,
	})

	cmdm := commands.NewManager(log.With(logx.String("comp", "commands")), ad, cfg.OwnerUserIDs)

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		loc:       loc,
		adapter:   ad,
		catalog:   src,
		renderer:  rnd,
		engine:    engineSvc,
		sched:     schedSvc,
		notif:     notifSvc,
		reminders: remSvc,
		cmdm:      cmdm,
		updates:   make(chan kit.Update, 256),
	}, nil
}

func newAdapter(cfg *config.Config, log logx.Logger) (kit.Adapter, error) {
	switch cfg.TransportDriver() {
	case config.TransportSlack:
		return slack.New(mapSlackConfig(cfg), log)
	default:
		tc, err := mapTelegramConfig(cfg)
		if err != nil {
			return nil, err
		}
		return telegram.New(tc, log)
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.reminders.Load(runCtx)

	a.engine.Start(runCtx)
	a.sched.Start(runCtx)

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return err
	}

	a.cmdm.SetRegistry(runCtx, commands.Builtin(commands.Deps{
		Reminders: a.reminders,
		Catalog:   a.catalog,
		Renderer:  a.renderer,
		Schedules: a.sched,
		Location:  a.loc,
	}))

	n := a.reminders.Restore(runCtx)
	a.log.Info("reminders restored", logx.Int("jobs", n))

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if cfg := a.cfgm.Get(); cfg != nil && cfg.Catalog.Watch {
		a.sup.Go("catalog.watch", func(c context.Context) error {
			return config.WatchFile(c, a.catalog.Path(), a.log.With(logx.String("comp", "catalog")), func() {
				a.reloadCatalog(c)
			})
		})
	}

	a.sup.Go0("systemd.watchdog", func(c context.Context) { systemd.Watchdog(c, a.log) })
	systemd.Ready(a.log, fmt.Sprintf("%d reminders scheduled", n))

	a.log.Info("app started", logx.String("transport", a.adapter.Name()))
	return nil
}

// applyConfig applies the sections that change at runtime and reports
// the ones that need a restart.
func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(next))
	a.cmdm.SetOwners(next.OwnerUserIDs)
	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
	}

	if len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// reloadCatalog swaps the catalog and rebuilds today's reminders of every
// enabled group from it. A bad file keeps the previous catalog and the
// existing jobs.
func (a *App) reloadCatalog(ctx context.Context) {
	if !a.catalog.Reload() {
		return
	}
	n := a.reminders.Restore(ctx)
	a.bus.Publish(eventbus.Event{Type: eventbus.CatalogReloaded, Data: a.catalog.Catalog().Len()})
	a.log.Info("reminders rebuilt from reloaded catalog", logx.Int("jobs", n))
	systemd.Status(a.log, fmt.Sprintf("%d reminders scheduled", n))
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	systemd.Stopping(a.log)

	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 2*time.Second, func(c context.Context) error {
		a.engine.Stop(c)
		st := a.engine.Stats()
		a.log.Info("task engine summary", logx.Int("done", st.Done), logx.Int("failed", st.Failed), logx.Int("dropped", int(st.Dropped)))
		return nil
	})
	step("reminders", 2*time.Second, func(c context.Context) error { a.reminders.Shutdown(c); return nil })
	step("storage", 1*time.Second, func(c context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}
