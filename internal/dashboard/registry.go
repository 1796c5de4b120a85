package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/query"
	"tender_dashboard/internal/session"
	"tender_dashboard/internal/viewmodel"

	"github.com/google/uuid"
)

// Storage persists sessions and comparison remarks.
type Storage interface {
	session.Backend
	RemarksStore
}

type Options struct {
	Client   client.Config
	Defaults tender.Query
	Location *time.Location
	// IdleTTL is how long an unused dashboard stays in memory.
	IdleTTL time.Duration
	// MaxSessions caps the dashboards held at once; the least recently used
	// one goes first.
	MaxSessions int
}

const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 10000
)

func (o Options) withDefaults() Options {
	if o.Defaults == (tender.Query{}) {
		o.Defaults = tender.DefaultQuery()
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	return o
}

// Registry hands out one Dashboard per session id. Sessions themselves live
// in storage, so an evicted dashboard comes back logged in on the next
// request; only its unsaved view state is lost.
type Registry struct {
	log     *slog.Logger
	storage Storage
	fetcher query.Fetcher
	opts    Options
	now     func() time.Time

	mu    sync.Mutex
	items map[string]*entry
}

type entry struct {
	d    *Dashboard
	used time.Time
}

// NewRegistry builds a registry. All dashboards share one anonymous client
// for tender pages, so cached pages are shared too; cache may be nil.
func NewRegistry(log *slog.Logger, storage Storage, cache query.Cache, opts Options) *Registry {
	opts = opts.withDefaults()
	pages := client.New(log, opts.Client)
	return &Registry{
		log:     log,
		storage: storage,
		fetcher: query.NewCachedFetcher(log, pages, cache),
		opts:    opts,
		now:     time.Now,
		items:   make(map[string]*entry),
	}
}

// Open returns the dashboard for id. An empty or malformed id gets a fresh
// session id; the returned id is the one to hand back to the browser.
func (r *Registry) Open(id string) (*Dashboard, string) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.items[id]; ok {
		e.used = now
		return e.d, id
	}
	if len(r.items) >= r.opts.MaxSessions {
		r.evictOldest()
	}

	d := assemble(r.log, parts{
		id:      id,
		api:     client.New(r.log, r.opts.Client),
		store:   session.Keyed(r.storage, id),
		fetcher: r.fetcher,
		remarks: r.storage,
		format:  viewmodel.NewFormatter(r.opts.Location),
		query:   r.opts.Defaults,
	})
	r.items[id] = &entry{d: d, used: now}
	return d, id
}

// evictOldest drops the least recently used dashboard. r.mu must be held.
func (r *Registry) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for id, e := range r.items {
		if oldest == "" || e.used.Before(at) {
			oldest, at = id, e.used
		}
	}
	delete(r.items, oldest)
}

// Sweep drops dashboards unused for longer than the idle TTL and reports
// how many went.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.opts.IdleTTL)
	n := 0
	for id, e := range r.items {
		if e.used.Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

// Run sweeps idle dashboards until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	every := r.opts.IdleTTL / 2
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("evicted idle dashboards", slog.Int("count", n), slog.Int("left", r.Len()))
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Drop forgets the in-memory dashboard for id. The stored session is kept.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Local builds a standalone dashboard over a session store of its own, as
// the CLI uses it. remarks may be nil.
func Local(log *slog.Logger, store session.Store, remarks RemarksStore, cache query.Cache, opts Options) *Dashboard {
	opts = opts.withDefaults()
	api := client.New(log, opts.Client)
	return assemble(log, parts{
		id:      "local",
		api:     api,
		store:   store,
		fetcher: query.NewCachedFetcher(log, api, cache),
		remarks: remarks,
		format:  viewmodel.NewFormatter(opts.Location),
		query:   opts.Defaults,
	})
}

type ctxKey struct{}

func WithDashboard(ctx context.Context, d *Dashboard) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

func FromContext(ctx context.Context) (*Dashboard, bool) {
	d, ok := ctx.Value(ctxKey{}).(*Dashboard)
	return d, ok && d != nil
}
