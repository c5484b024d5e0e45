// Package flows owns each visitor's page controller: the restored session,
// the booking, chat and corporate wizards, and the selections and
// submissions that move them.
package flows

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/vocal-vent/internal/chat"
	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/notify"
	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// DefaultIdleTTL is how long an untouched controller stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// Notifier tells the operator about new records.
type Notifier interface {
	NotifySubmission(ctx context.Context, sub notify.Submission) error
}

// Metrics records flow activity.
type Metrics interface {
	ObserveSelection(kind, id string)
	ObserveTransition(flow, op string, ok bool)
	ObserveSubmission(collection string, err error)
}

// RoomOpener opens a live chat room for in-app chat sessions.
type RoomOpener interface {
	CreateRoom(ctx context.Context, p chat.Participant) (string, error)
}

// Options configure a Registry.
type Options struct {
	Prefs    *prefs.Provider
	Sessions *session.Manager
	Backend  gateway.Backend
	Notifier Notifier
	Metrics  Metrics
	Rooms    RoomOpener
	IdleTTL  time.Duration
	Logger   *logging.Logger
}

// Registry keeps one controller per visitor. Calls for the same visitor run
// one at a time; different visitors never block each other.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller

	prefs    *prefs.Provider
	sessions *session.Manager
	backend  gateway.Backend
	notifier Notifier
	metrics  Metrics
	rooms    RoomOpener
	idleTTL  time.Duration
	logger   *logging.Logger
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewRegistry creates a registry and starts its idle eviction loop.
func NewRegistry(opts Options) *Registry {
	if opts.Prefs == nil || opts.Backend == nil {
		panic("flows: prefs provider and backend required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(0, nil, opts.Logger)
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	r := &Registry{
		controllers: make(map[string]*Controller),
		prefs:       opts.Prefs,
		sessions:    opts.Sessions,
		backend:     opts.Backend,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		rooms:       opts.Rooms,
		idleTTL:     opts.IdleTTL,
		logger:      opts.Logger,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	go r.cleanup(r.idleTTL / 2)
	return r
}

// With runs fn against the visitor's controller while holding its lock.
// The controller is created and restored from the preference store on
// first use; keys that could not be read then are retried on later calls.
func (r *Registry) With(ctx context.Context, visitorID string, fn func(*Controller) error) error {
	for {
		c := r.acquire(visitorID)
		c.mu.Lock()
		if c.evicted {
			c.mu.Unlock()
			continue
		}
		if !c.restored {
			c.restore(ctx)
		} else {
			c.reload(ctx)
		}
		c.lastSeen = r.now()
		err := fn(c)
		c.mu.Unlock()
		return err
	}
}

func (r *Registry) acquire(visitorID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[visitorID]
	if !ok {
		c = newController(r, visitorID)
		r.controllers[visitorID] = c
	}
	return c
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// SetAdminLoggedIn flips the visitor's admin flag and persists it.
func (r *Registry) SetAdminLoggedIn(ctx context.Context, visitorID string, loggedIn bool) error {
	return r.With(ctx, visitorID, func(c *Controller) error {
		c.state.AdminLoggedIn = loggedIn
		return c.persist(ctx)
	})
}

// SaveSettingGroup stores a shared setting group and applies it to every
// live controller so open sessions see the change without a restore.
func (r *Registry) SaveSettingGroup(ctx context.Context, key string, value any) error {
	if err := r.sessions.SaveSettingGroup(ctx, r.prefs.Site(), key, value); err != nil {
		return err
	}
	r.mu.Lock()
	live := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		live = append(live, c)
	}
	r.mu.Unlock()

	for _, c := range live {
		c.mu.Lock()
		if c.restored {
			c.state.Settings.ApplyGroup(key, value)
		}
		c.mu.Unlock()
	}
	return nil
}

// Stop ends the eviction loop.
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Registry) cleanup(every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evict(r.now().Add(-r.idleTTL))
		}
	}
}

// evict drops controllers idle since before cutoff. Busy controllers are
// skipped and looked at again next round.
func (r *Registry) evict(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.controllers {
		if !c.mu.TryLock() {
			continue
		}
		if c.lastSeen.Before(cutoff) {
			c.evicted = true
			delete(r.controllers, id)
			n++
		}
		c.mu.Unlock()
	}
	if n > 0 {
		r.logger.Debug("flows: evicted idle controllers", "count", n)
	}
	return n
}
