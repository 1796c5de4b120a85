// Package query holds the state of a tender list view: the query the user
// is looking at and the page the server returned for it. The anonymous,
// employee and admin views all use the same Model.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Fetcher interface {
	ListTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error)
	SearchTenders(ctx context.Context, q tender.Query) ([]tender.Tender, error)
}

// Invalidator is implemented by fetchers that keep results around.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Model struct {
	log     *slog.Logger
	fetcher Fetcher

	mu sync.Mutex

	// query.SearchTerm is the term being typed; submitted is the one the
	// results were searched with.
	query     tender.Query
	submitted string
	tenders   []tender.Tender
	err       error
	loaded    bool
	inflight  int
	gen       uint64
}

func New(log *slog.Logger, fetcher Fetcher, defaults tender.Query) *Model {
	q := defaults.Normalized()
	if q.SortBy == "" {
		q.SortBy = tender.DefaultSortBy
	}
	if q.Sorting == "" {
		q.Sorting = tender.DefaultSorting
	}
	return &Model{
		log:     log.With(slog.String("component", "query")),
		fetcher: fetcher,
		query:   q,
		tenders: make([]tender.Tender, 0),
	}
}

// Load fetches the current query. Views call it once when they mount.
func (m *Model) Load(ctx context.Context) error {
	return m.fetch(ctx)
}

// EnsureLoaded fetches only if nothing has been loaded yet.
func (m *Model) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	loaded := m.loaded || m.inflight > 0
	m.mu.Unlock()
	if loaded {
		return nil
	}
	return m.fetch(ctx)
}

// Refresh re-fetches the current query, skipping any cached page.
func (m *Model) Refresh(ctx context.Context) error {
	if inv, ok := m.fetcher.(Invalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			m.log.Warn("failed to invalidate cached pages", sl.Err(err))
		}
	}
	return m.fetch(ctx)
}

func (m *Model) SetPage(ctx context.Context, page int) error {
	return m.change(ctx, func(q *tender.Query) { q.Page = tender.ClampPositive(page) })
}

// SetPageInput takes the raw text of the page box.
func (m *Model) SetPageInput(ctx context.Context, raw string) error {
	return m.SetPage(ctx, tender.ParsePositive(raw))
}

func (m *Model) NextPage(ctx context.Context) error {
	return m.change(ctx, func(q *tender.Query) { q.Page++ })
}

func (m *Model) PrevPage(ctx context.Context) error {
	return m.change(ctx, func(q *tender.Query) { q.Page = tender.ClampPositive(q.Page - 1) })
}

func (m *Model) SetQuantity(ctx context.Context, quantity int) error {
	return m.change(ctx, func(q *tender.Query) { q.Quantity = tender.ClampPositive(quantity) })
}

func (m *Model) SetQuantityInput(ctx context.Context, raw string) error {
	return m.SetQuantity(ctx, tender.ParsePositive(raw))
}

func (m *Model) SetSortBy(ctx context.Context, field tender.SortField) error {
	if _, err := tender.ParseSortField(string(field)); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return m.change(ctx, func(q *tender.Query) { q.SortBy = field })
}

func (m *Model) SetSorting(ctx context.Context, dir tender.SortDirection) error {
	if _, err := tender.ParseSortDirection(string(dir)); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return m.change(ctx, func(q *tender.Query) { q.Sorting = dir })
}

// SetSearchTerm records the term being typed. It never fetches.
func (m *Model) SetSearchTerm(term string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query.SearchTerm = term
}

// Search submits the typed term. While a non-empty term is submitted every
// refetch goes to the search endpoint; submitting an empty term goes back
// to the plain listing.
func (m *Model) Search(ctx context.Context) error {
	m.mu.Lock()
	m.submitted = strings.TrimSpace(m.query.SearchTerm)
	m.mu.Unlock()
	return m.fetch(ctx)
}

// Change is a batch of edits applied with at most one fetch. Nil fields are
// left alone.
type Change struct {
	Page       *int    `json:"page,omitempty" validate:"omitempty,min=1"`
	Quantity   *int    `json:"quantity,omitempty" validate:"omitempty,min=1"`
	SortBy     *string `json:"sortBy,omitempty"`
	Sorting    *string `json:"sorting,omitempty" validate:"omitempty,oneof=asc desc"`
	SearchTerm *string `json:"search,omitempty"`
}

func (m *Model) Apply(ctx context.Context, c Change) error {
	if err := validate.Struct(c); err != nil {
		return errors.FromValidator(err)
	}

	var sortBy tender.SortField
	if c.SortBy != nil {
		f, err := tender.ParseSortField(*c.SortBy)
		if err != nil {
			return errors.NewValidationError(err.Error())
		}
		sortBy = f
	}

	if c.SearchTerm != nil {
		m.SetSearchTerm(*c.SearchTerm)
	}

	return m.change(ctx, func(q *tender.Query) {
		if c.Page != nil {
			q.Page = *c.Page
		}
		if c.Quantity != nil {
			q.Quantity = *c.Quantity
		}
		if c.SortBy != nil {
			q.SortBy = sortBy
		}
		if c.Sorting != nil {
			q.Sorting = tender.SortDirection(*c.Sorting)
		}
	})
}

// change edits the query and fetches once if a fetched field changed.
func (m *Model) change(ctx context.Context, edit func(q *tender.Query)) error {
	m.mu.Lock()
	before := m.query
	edit(&m.query)
	m.query = m.query.Normalized()
	after := m.query
	m.mu.Unlock()

	before.SearchTerm, after.SearchTerm = "", ""
	if before == after {
		return nil
	}
	return m.fetch(ctx)
}

// fetch runs the current query. Only the response to the most recently
// started fetch is applied; older responses are dropped.
func (m *Model) fetch(ctx context.Context) error {
	const op = "query.Model.fetch"

	m.mu.Lock()
	m.gen++
	gen := m.gen
	q := m.query
	q.SearchTerm = m.submitted
	m.inflight++
	m.mu.Unlock()

	var (
		res []tender.Tender
		err error
	)
	if q.SearchTerm != "" {
		res, err = m.fetcher.SearchTenders(ctx, q)
	} else {
		res, err = m.fetcher.ListTenders(ctx, q)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--

	if gen != m.gen {
		m.log.Debug("dropping stale response", slog.Uint64("generation", gen), slog.Uint64("latest", m.gen))
		return nil
	}

	if err != nil {
		m.err = err
		m.log.Error("failed to fetch tenders", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if res == nil {
		res = make([]tender.Tender, 0)
	}
	m.tenders = res
	m.err = nil
	m.loaded = true
	return nil
}

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	Query           tender.Query    `json:"query"`
	SubmittedSearch string          `json:"submittedSearch"`
	Tenders         []tender.Tender `json:"tenders"`
	Loading         bool            `json:"loading"`
	Loaded          bool            `json:"loaded"`
	Error           string          `json:"error,omitempty"`
	HasPrev         bool            `json:"hasPrev"`
	HasNext         bool            `json:"hasNext"`
}

func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Query:           m.query,
		SubmittedSearch: m.submitted,
		Tenders:         append(make([]tender.Tender, 0, len(m.tenders)), m.tenders...),
		Loading:         m.inflight > 0,
		Loaded:          m.loaded,
		HasPrev:         m.query.Page > 1,
		HasNext:         true,
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}

func (m *Model) Query() tender.Query {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}

func (m *Model) Tenders() []tender.Tender {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(make([]tender.Tender, 0, len(m.tenders)), m.tenders...)
}

func (m *Model) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// HasNext is always true: the API does not report a total.
func (m *Model) HasNext() bool { return true }

// Find looks a tender up in the current page.
func (m *Model) Find(id string) (tender.Tender, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tender.Find(m.tenders, id)
}
