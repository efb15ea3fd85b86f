package reminder

import (
	"context"
	"strings"
	"sync"
	"time"

	"remindbot/internal/activity"
	"remindbot/internal/eventbus"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

type Deps struct {
	Timer    Timer
	Catalog  CatalogSource
	Renderer Renderer // optional; without it reminders go out as text
	Notifier Notifier
	Store    storage.Store
	Bus      eventbus.Bus
	Log      logx.Logger
	Location *time.Location

	// Now and Suffix are replaced in tests.
	Now    func() time.Time
	Suffix func() string
}

type Service struct {
	log     logx.Logger
	timer   Timer
	catalog CatalogSource
	render  Renderer
	notify  Notifier
	store   storage.Store
	bus     eventbus.Bus
	loc     *time.Location
	now     func() time.Time
	suffix  func() string

	// mu guards the maps below; it is never held across a timer or
	// network call.
	mu     sync.Mutex
	groups storage.Groups
	regs   map[string]*JobRegistry
	locks  map[string]*sync.Mutex

	// saveMu orders writes so the last save carries the newest snapshot.
	saveMu sync.Mutex
}

func New(d Deps) *Service {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Suffix == nil {
		d.Suffix = randomSuffix
	}
	return &Service{
		log:     d.Log,
		timer:   d.Timer,
		catalog: d.Catalog,
		render:  d.Renderer,
		notify:  d.Notifier,
		store:   d.Store,
		bus:     d.Bus,
		loc:     d.Location,
		now:     d.Now,
		suffix:  d.Suffix,
		groups:  storage.Groups{},
		regs:    map[string]*JobRegistry{},
		locks:   map[string]*sync.Mutex{},
	}
}

// Load reads the persisted group settings. A failing store leaves every
// group disabled. No jobs are scheduled until Restore.
func (s *Service) Load(ctx context.Context) {
	g := storage.LoadOrEmpty(ctx, s.store, s.log)
	s.mu.Lock()
	s.groups = g
	s.mu.Unlock()
	s.log.Info("group config loaded", logx.Int("groups", len(g)), logx.Int("enabled", len(g.EnabledIDs())))
}

// Enable switches groupID on and (re)builds its jobs. It returns the
// number of reminder jobs scheduled for the rest of today.
func (s *Service) Enable(ctx context.Context, groupID string, actor Actor) (int, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, ErrNotGroup
	}
	unlock := s.lockGroup(groupID)
	n := s.rebuildLocked(groupID)
	unlock()

	s.persist(ctx)
	s.audit(ctx, groupID, actor, "enable", n)
	s.log.Info("reminders enabled", logx.String("group", groupID), logx.Int("jobs", n), logx.String("actor", actor.ID))
	return n, nil
}

// Disable cancels every job of groupID and switches it off. It returns
// the number of reminder jobs that were pending.
func (s *Service) Disable(ctx context.Context, groupID string, actor Actor) (int, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return 0, ErrNotGroup
	}
	unlock := s.lockGroup(groupID)
	s.mu.Lock()
	s.groups[groupID] = storage.GroupSettings{ReminderEnabled: false}
	reg := s.regs[groupID]
	delete(s.regs, groupID)
	s.mu.Unlock()
	n := 0
	if reg != nil {
		n = len(reg.Reminders)
	}
	s.cancel(groupID, reg.IDs())
	unlock()

	s.persist(ctx)
	s.audit(ctx, groupID, actor, "disable", n)
	s.log.Info("reminders disabled", logx.String("group", groupID), logx.Int("cancelled", n), logx.String("actor", actor.ID))
	return n, nil
}

// Restore rebuilds the jobs of every enabled group. It is safe to call
// repeatedly: each group is cancelled then rebuilt.
func (s *Service) Restore(ctx context.Context) int {
	s.mu.Lock()
	ids := s.groups.EnabledIDs()
	s.mu.Unlock()

	total := 0
	for _, gid := range ids {
		if ctx.Err() != nil {
			break
		}
		unlock := s.lockGroup(gid)
		// Disabled while we were iterating.
		if s.Enabled(gid) {
			total += s.rebuildLocked(gid)
		}
		unlock()
	}
	s.log.Info("reminders restored", logx.Int("groups", len(ids)), logx.Int("jobs", total))
	return total
}

// Shutdown persists the group settings. Pending jobs die with the timer
// facility and are rebuilt by the next Restore.
func (s *Service) Shutdown(ctx context.Context) {
	s.persist(ctx)
}

func (s *Service) Enabled(groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups.Enabled(groupID)
}

func (s *Service) Status(groupID string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{GroupID: groupID, Enabled: s.groups.Enabled(groupID)}
	if reg := s.regs[groupID]; reg != nil {
		st.Rollover = reg.Rollover
		st.Pending = reg.pending()
	}
	return st
}

// rebuildLocked cancels everything groupID owns, marks it enabled and
// schedules a fresh rollover plus today's reminders. Call with the group
// lock held.
func (s *Service) rebuildLocked(groupID string) int {
	s.mu.Lock()
	s.groups[groupID] = storage.GroupSettings{ReminderEnabled: true}
	old := s.regs[groupID]
	delete(s.regs, groupID)
	s.mu.Unlock()
	s.cancel(groupID, old.IDs())

	reg := newRegistry()
	id := rolloverID(groupID, s.suffix())
	_, err := s.timer.AddDaily(id, RolloverAt, rolloverTimeout, func(ctx context.Context) error {
		s.rollover(ctx, groupID, id)
		return nil
	})
	if err != nil {
		s.log.Error("rollover register failed", logx.String("group", groupID), logx.String("job", id), logx.Err(err))
	} else {
		reg.Rollover = id
	}

	s.scheduleTodayLocked(groupID, reg)
	n := len(reg.Reminders)

	s.mu.Lock()
	s.regs[groupID] = reg
	s.mu.Unlock()
	s.publish(eventbus.ReminderScheduled, Result{GroupID: groupID, Jobs: n})
	return n
}

// scheduleTodayLocked registers today's reminders into reg. Only jobs the
// timer accepted are recorded.
func (s *Service) scheduleTodayLocked(groupID string, reg *JobRegistry) {
	now := s.now().In(s.loc)
	var cat activity.Catalog
	if s.catalog != nil {
		cat = s.catalog.Catalog()
	}
	occ := activity.Derive(cat, now.Weekday())
	for _, job := range BuildReminderJobs(groupID, occ, now, now, s.suffix) {
		job := job
		_, err := s.timer.AddOnce(job.ID, job.Due, dispatchTimeout, func(ctx context.Context) error {
			s.dispatch(ctx, job)
			return nil
		})
		if err != nil {
			s.log.Error("reminder register failed", logx.String("group", groupID), logx.String("job", job.ID), logx.Time("due", job.Due), logx.Err(err))
			continue
		}
		reg.Reminders[job.ID] = job
		s.log.Debug("reminder scheduled", logx.String("group", groupID), logx.String("job", job.ID), logx.Time("due", job.Due), logx.Int("occurrences", len(job.Occurrences)))
	}
}

// rollover runs daily at RolloverAt. It replaces the group's reminders
// with those of the new day and keeps ownID.
func (s *Service) rollover(ctx context.Context, groupID, ownID string) {
	unlock := s.lockGroup(groupID)
	defer unlock()

	// Fired reminders are forgotten under s.mu alone, so the registry is
	// only read here while s.mu is held.
	s.mu.Lock()
	enabled := s.groups.Enabled(groupID)
	reg := s.regs[groupID]
	current := reg != nil && reg.Rollover == ownID
	var stale []string
	if current {
		stale = make([]string, 0, len(reg.Reminders))
		for id := range reg.Reminders {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	if !enabled {
		s.log.Debug("rollover skipped; group disabled", logx.String("group", groupID), logx.String("job", ownID))
		s.publish(eventbus.ReminderSkipped, Result{GroupID: groupID, JobID: ownID, Reason: "disabled"})
		return
	}
	if !current {
		// A superseded rollover that escaped cancellation.
		s.timer.Remove(ownID)
		s.log.Warn("stale rollover removed", logx.String("group", groupID), logx.String("job", ownID))
		return
	}

	next := newRegistry()
	next.Rollover = ownID
	s.cancel(groupID, stale)
	s.scheduleTodayLocked(groupID, next)
	n := len(next.Reminders)

	s.mu.Lock()
	s.regs[groupID] = next
	s.mu.Unlock()
	s.log.Info("rollover done", logx.String("group", groupID), logx.Int("cancelled", len(stale)), logx.Int("jobs", n))
	s.publish(eventbus.ReminderRollover, Result{GroupID: groupID, JobID: ownID, Jobs: n})
}

// cancel removes ids from the timer. Unknown ids count as already fired;
// the loop never stops early.
func (s *Service) cancel(groupID string, ids []string) {
	for _, id := range ids {
		if !s.timer.Remove(id) {
			s.log.Debug("job already gone", logx.String("group", groupID), logx.String("job", id))
		}
	}
}

// forget drops a fired reminder from its group's registry.
func (s *Service) forget(groupID, jobID string) {
	s.mu.Lock()
	if reg := s.regs[groupID]; reg != nil {
		delete(reg.Reminders, jobID)
	}
	s.mu.Unlock()
}

func (s *Service) lockGroup(groupID string) func() {
	s.mu.Lock()
	l, ok := s.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[groupID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	snap := s.groups.Clone()
	s.mu.Unlock()
	if err := s.store.SaveGroups(ctx, snap); err != nil {
		s.log.Error("group config save failed", logx.Err(err))
	}
}

func (s *Service) audit(ctx context.Context, groupID string, actor Actor, action string, jobs int) {
	if s.store == nil {
		return
	}
	e := storage.AuditEntry{
		At:        s.now(),
		GroupID:   groupID,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		Jobs:      jobs,
	}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Warn("audit append failed", logx.String("group", groupID), logx.Err(err))
	}
}

func (s *Service) publish(typ string, r Result) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: r})
}
