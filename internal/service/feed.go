package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"familytasks/internal/models"
	"familytasks/internal/realtime"
)

const (
	maxRefreshAttempts = 3
	refreshTimeout     = 30 * time.Second

	// Entries nobody has read for this long are dropped.
	defaultIdleTTL = 30 * time.Minute
	evictInterval  = time.Minute
)

// TaskFeed caches the task list of each scope and keeps it current.
//
// Every refresh remembers the entry's generation when it starts. Local
// mutations bump the generation and patch the cached list directly, so a
// refresh that started before a mutation finishes with a stale generation
// and is discarded rather than overwriting the newer state. Concurrent
// refreshes of one scope share a single fetch.
type TaskFeed struct {
	tasks   TaskStore
	logger  *zap.Logger
	flight  singleflight.Group
	now     func() time.Time
	idleTTL time.Duration

	mu      sync.Mutex
	entries map[string]*feedEntry
	dirty   map[string]struct{}
	wake    chan struct{}
}

type feedEntry struct {
	userID     string
	scope      models.Scope
	generation uint64
	loaded     bool
	lastUsed   time.Time
	tasks      []models.Task
}

// NewTaskFeed creates an empty feed
func NewTaskFeed(tasks TaskStore, logger *zap.Logger) *TaskFeed {
	return &TaskFeed{
		tasks:   tasks,
		logger:  orNop(logger).Named("feed"),
		now:     time.Now,
		idleTTL: defaultIdleTTL,
		entries: make(map[string]*feedEntry),
		dirty:   make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func feedKey(userID string, scope models.Scope) string {
	if groupID, ok := scope.GroupID(); ok {
		return "group:" + groupID
	}
	return "personal:" + userID
}

func (f *TaskFeed) entry(userID string, scope models.Scope) (string, *feedEntry) {
	key := feedKey(userID, scope)
	e, ok := f.entries[key]
	if !ok {
		e = &feedEntry{userID: userID, scope: scope, lastUsed: f.now()}
		f.entries[key] = e
	}
	return key, e
}

// Tasks returns the cached tasks of a scope, newest first, fetching them
// on first use
func (f *TaskFeed) Tasks(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error) {
	f.mu.Lock()
	_, e := f.entry(userID, scope)
	e.lastUsed = f.now()
	if e.loaded {
		tasks := slices.Clone(e.tasks)
		f.mu.Unlock()
		return tasks, nil
	}
	f.mu.Unlock()

	return f.Refresh(ctx, userID, scope)
}

// Refresh re-fetches a scope's tasks. The shared fetch does not end when
// one caller's ctx does, since other callers may have joined it; a
// cancelled caller just stops waiting.
func (f *TaskFeed) Refresh(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error) {
	key := feedKey(userID, scope)
	ch := f.flight.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return f.fetch(fetchCtx, userID, scope)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]models.Task)), nil
	}
}

func (f *TaskFeed) fetch(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error) {
	var fetched []models.Task
	for attempt := 1; ; attempt++ {
		f.mu.Lock()
		_, e := f.entry(userID, scope)
		started := e.generation
		f.mu.Unlock()

		tasks, err := f.tasks.ListForScope(ctx, userID, scope)
		if err != nil {
			return nil, classify("list tasks", err, nil)
		}
		fetched = tasks

		f.mu.Lock()
		if e.generation == started {
			e.tasks = tasks
			e.loaded = true
			f.mu.Unlock()
			return tasks, nil
		}
		if e.loaded {
			// A local mutation landed while fetching and already patched
			// the cached list; it wins over this older snapshot.
			current := slices.Clone(e.tasks)
			f.mu.Unlock()
			return current, nil
		}
		f.mu.Unlock()

		if attempt == maxRefreshAttempts {
			f.logger.Warn("Task list kept changing during refresh", zap.String("scope", scope.String()))
			return fetched, nil
		}
	}
}

// Apply records a local mutation of a scope. The generation always
// advances; mutate patches the cached list when one is loaded.
func (f *TaskFeed) Apply(userID string, scope models.Scope, mutate func([]models.Task) []models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, e := f.entry(userID, scope)
	e.generation++
	if e.loaded {
		e.tasks = mutate(slices.Clone(e.tasks))
	}
}

// Generation returns the current generation of a scope's entry
func (f *TaskFeed) Generation(userID string, scope models.Scope) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, e := f.entry(userID, scope)
	return e.generation
}

// Run refreshes loaded scopes whenever the hub reports a task change,
// until ctx is cancelled. Changes only mark scopes dirty; a separate loop
// refreshes them, so a slow fetch never backs up the subscription. It also
// evicts idle entries.
func (f *TaskFeed) Run(ctx context.Context, hub realtime.Hub) {
	changes, cancel := hub.Subscribe(realtime.Filter{Entity: realtime.EntityTasks})
	defer cancel()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.drain(runCtx)
	}()
	defer func() {
		stop()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			f.markDirty(change)
		}
	}
}

// markDirty queues the scope a change touched for refresh. A resync means
// changes were lost, so every loaded scope is queued.
func (f *TaskFeed) markDirty(change realtime.Change) {
	f.mu.Lock()
	if change.Entity == realtime.EntityResync {
		for key, e := range f.entries {
			if e.loaded {
				f.dirty[key] = struct{}{}
			}
		}
	} else {
		scope := models.PersonalScope()
		if change.GroupID != "" {
			scope = models.GroupScope(change.GroupID)
		}
		key := feedKey(change.UserID, scope)
		if e, ok := f.entries[key]; ok && e.loaded {
			f.dirty[key] = struct{}{}
		}
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *TaskFeed) drain(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := f.evictIdle(f.now()); n > 0 {
				f.logger.Debug("Evicted idle task lists", zap.Int("count", n))
			}
		case <-f.wake:
			f.refreshDirty(ctx)
		}
	}
}

func (f *TaskFeed) refreshDirty(ctx context.Context) {
	type target struct {
		key    string
		userID string
		scope  models.Scope
	}

	f.mu.Lock()
	targets := make([]target, 0, len(f.dirty))
	for key := range f.dirty {
		if e, ok := f.entries[key]; ok {
			targets = append(targets, target{key: key, userID: e.userID, scope: e.scope})
		}
	}
	clear(f.dirty)
	f.mu.Unlock()

	for _, t := range targets {
		if _, err := f.Refresh(ctx, t.userID, t.scope); err != nil {
			f.logger.Warn("Failed to refresh task list", zap.String("scope", t.scope.String()), zap.Error(err))
			// Serve nothing stale: the next read fetches again.
			f.mu.Lock()
			if e, ok := f.entries[t.key]; ok {
				e.loaded = false
			}
			f.mu.Unlock()
		}
	}
}

// evictIdle drops entries not read since idleTTL before now and returns
// how many it dropped. Queued scopes are kept.
func (f *TaskFeed) evictIdle(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	evicted := 0
	for key, e := range f.entries {
		if _, queued := f.dirty[key]; queued {
			continue
		}
		if now.Sub(e.lastUsed) > f.idleTTL {
			delete(f.entries, key)
			evicted++
		}
	}
	return evicted
}

func upsertTask(task models.Task) func([]models.Task) []models.Task {
	return func(tasks []models.Task) []models.Task {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i] = task
				return tasks
			}
		}
		return append([]models.Task{task}, tasks...)
	}
}
