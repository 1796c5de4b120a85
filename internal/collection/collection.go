// Package collection mirrors a user's server-side tender collections
// (wishlist, comparison) and applies membership toggles optimistically.
package collection

import (
	"context"
	serrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"
)

var (
	ErrInFlight  = serrors.New("a change for this tender is still in flight")
	ErrNotMember = serrors.New("tender is not in the collection")
	ErrNoClear   = serrors.New("collection cannot be cleared in bulk")
)

// Backend is the server copy of one collection.
type Backend interface {
	List(ctx context.Context) ([]tender.Tender, error)
	Add(ctx context.Context, tenderID string) error
	Remove(ctx context.Context, tenderID string) error
}

// Clearer is implemented by backends with a bulk remove endpoint.
type Clearer interface {
	Clear(ctx context.Context) error
}

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

type Phase string

const (
	Pending    Phase = "pending"
	Committed  Phase = "committed"
	RolledBack Phase = "rolled_back"
)

// Outcome is the final state of one toggle.
type Outcome struct {
	TenderID string `json:"tenderId"`
	Title    string `json:"title,omitempty"`
	Op       Op     `json:"op"`
	Phase    Phase  `json:"phase"`
	Member   bool   `json:"member"`
	Err      error  `json:"-"`
}

type Collection struct {
	log     *slog.Logger
	name    string
	backend Backend
	notify  Notifier

	mu      sync.Mutex
	items   []tender.Tender
	pending map[string]Op
	loaded  bool
	err     error
	epoch   uint64
}

func New(log *slog.Logger, name string, backend Backend, notify Notifier) *Collection {
	if notify == nil {
		notify = NotifierFunc(func(context.Context, Notice) {})
	}
	return &Collection{
		log:     log.With(slog.String("component", "collection"), slog.String("collection", name)),
		name:    name,
		backend: backend,
		notify:  notify,
		items:   make([]tender.Tender, 0),
		pending: make(map[string]Op),
	}
}

func (c *Collection) Name() string { return c.name }

// Load replaces the local mirror with the server list.
func (c *Collection) Load(ctx context.Context) error {
	const op = "collection.Load"

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	items, err := c.backend.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	if err != nil {
		c.err = err
		c.log.Error("failed to load", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	c.items = dedupe(items)
	c.loaded = true
	c.err = nil
	return nil
}

// EnsureLoaded loads the mirror unless it already has been.
func (c *Collection) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}
	return c.Load(ctx)
}

// Toggle flips membership of t. The local mirror changes first; if the
// server call fails the change is undone, restoring the old position.
func (c *Collection) Toggle(ctx context.Context, t tender.Tender) (Outcome, error) {
	const op = "collection.Toggle"

	id := t.ID()
	if id == "" {
		return Outcome{}, errors.NewValidationError("tender has no id")
	}

	c.mu.Lock()
	if _, busy := c.pending[id]; busy {
		member := indexOf(c.items, id) >= 0
		c.mu.Unlock()
		return Outcome{TenderID: id, Title: titleOf(t), Phase: RolledBack, Member: member, Err: ErrInFlight}, ErrInFlight
	}

	out := Outcome{TenderID: id, Title: titleOf(t), Phase: Pending}
	pos := indexOf(c.items, id)
	var removed tender.Tender
	if pos < 0 {
		out.Op = OpAdd
		c.items = append(c.items, t)
	} else {
		out.Op = OpRemove
		removed = c.items[pos]
		out.Title = titleOf(removed)
		c.items = append(c.items[:pos:pos], c.items[pos+1:]...)
	}
	c.pending[id] = out.Op
	epoch := c.epoch
	c.mu.Unlock()

	var err error
	if out.Op == OpAdd {
		err = c.backend.Add(ctx, id)
	} else {
		err = c.backend.Remove(ctx, id)
	}

	c.mu.Lock()
	delete(c.pending, id)
	if err != nil {
		out.Phase = RolledBack
		out.Err = err
		if epoch == c.epoch {
			if out.Op == OpAdd {
				if i := indexOf(c.items, id); i >= 0 {
					c.items = append(c.items[:i:i], c.items[i+1:]...)
				}
			} else if indexOf(c.items, id) < 0 {
				c.items = insertAt(c.items, pos, removed)
			}
		}
	} else {
		out.Phase = Committed
	}
	out.Member = indexOf(c.items, id) >= 0
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("toggle rolled back", slog.String("tender", id), slog.String("op", string(out.Op)), sl.Err(err))
		c.notify.Notify(ctx, Notice{Level: LevelError, Message: fmt.Sprintf("Failed to update %s. Please try again.", c.name)})
		return out, fmt.Errorf("%s: %w", op, err)
	}

	verb := "added to"
	if out.Op == OpRemove {
		verb = "removed from"
	}
	c.notify.Notify(ctx, Notice{Level: LevelInfo, Message: fmt.Sprintf("Tender %q has been %s the %s.", out.Title, verb, c.name)})
	return out, nil
}

// ToggleID toggles by id, using the mirrored record when there is one.
func (c *Collection) ToggleID(ctx context.Context, id string) (Outcome, error) {
	c.mu.Lock()
	t, ok := tender.Find(c.items, id)
	c.mu.Unlock()
	if !ok {
		t = tender.Ref(id)
	}
	return c.Toggle(ctx, t)
}

// Remove takes a member out of the collection.
func (c *Collection) Remove(ctx context.Context, id string) (Outcome, error) {
	if !c.IsMember(id) {
		return Outcome{TenderID: id, Op: OpRemove, Phase: RolledBack, Err: ErrNotMember}, ErrNotMember
	}
	return c.ToggleID(ctx, id)
}

func (c *Collection) CanClear() bool {
	if cc, ok := c.backend.(interface{ CanClear() bool }); ok {
		return cc.CanClear()
	}
	_, ok := c.backend.(Clearer)
	return ok
}

// Clear empties the server collection. The mirror is emptied only once the
// server has confirmed.
func (c *Collection) Clear(ctx context.Context) error {
	const op = "collection.Clear"

	clearer, ok := c.backend.(Clearer)
	if !ok || !c.CanClear() {
		return fmt.Errorf("%s: %w", op, ErrNoClear)
	}

	if err := clearer.Clear(ctx); err != nil {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		c.log.Error("failed to clear", sl.Err(err))
		c.notify.Notify(ctx, Notice{Level: LevelError, Message: fmt.Sprintf("Failed to clear %s. Please try again.", c.name)})
		return fmt.Errorf("%s: %w", op, err)
	}

	// Toggles still in flight must not roll a tender back into the
	// emptied mirror.
	c.mu.Lock()
	c.epoch++
	c.items = make([]tender.Tender, 0)
	c.err = nil
	c.mu.Unlock()

	c.notify.Notify(ctx, Notice{Level: LevelInfo, Message: fmt.Sprintf("All tenders have been removed from the %s.", c.name)})
	return nil
}

// Reset forgets the mirror. Toggles still in flight finish against the
// server but no longer touch local state.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.items = make([]tender.Tender, 0)
	c.pending = make(map[string]Op)
	c.loaded = false
	c.err = nil
}

func (c *Collection) IsMember(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOf(c.items, id) >= 0
}

func (c *Collection) Items() []tender.Tender {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(make([]tender.Tender, 0, len(c.items)), c.items...)
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type Snapshot struct {
	Name    string          `json:"name"`
	Items   []tender.Tender `json:"items"`
	Pending []string        `json:"pending"`
	Loaded  bool            `json:"loaded"`
	Error   string          `json:"error,omitempty"`
}

func (c *Collection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Name:    c.name,
		Items:   append(make([]tender.Tender, 0, len(c.items)), c.items...),
		Pending: make([]string, 0, len(c.pending)),
		Loaded:  c.loaded,
	}
	for id := range c.pending {
		s.Pending = append(s.Pending, id)
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

func indexOf(items []tender.Tender, id string) int {
	for i, t := range items {
		if t.ID() == id {
			return i
		}
	}
	return -1
}

func insertAt(items []tender.Tender, pos int, t tender.Tender) []tender.Tender {
	if pos > len(items) {
		pos = len(items)
	}
	items = append(items, tender.Tender{})
	copy(items[pos+1:], items[pos:])
	items[pos] = t
	return items
}

func dedupe(items []tender.Tender) []tender.Tender {
	out := make([]tender.Tender, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, t := range items {
		id := t.ID()
		if _, ok := seen[id]; ok && id != "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, t)
	}
	return out
}

func titleOf(t tender.Tender) string {
	if title := t.Title(); title != "" {
		return title
	}
	return t.ID()
}
