package query

import (
	"context"
	serrors "errors"
	"net/http"
	"sync"
	"testing"

	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	search bool
	query  tender.Query
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []recordedCall
	err   error
	// gate, when set, is consulted per call and may block it.
	gate func(n int)
}

func (f *fakeFetcher) record(search bool, q tender.Query) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{search: search, query: q})
	n := len(f.calls)
	err := f.err
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		gate(n)
	}
	return n, err
}

func (f *fakeFetcher) page(n int, q tender.Query) []tender.Tender {
	return []tender.Tender{tender.New(
		tender.Field{Key: tender.KeyObjectID, Value: "call-" + string(rune('0'+n))},
		tender.Field{Key: tender.KeyTitle, Value: q.SearchTerm},
	)}
}

func (f *fakeFetcher) ListTenders(_ context.Context, q tender.Query) ([]tender.Tender, error) {
	n, err := f.record(false, q)
	if err != nil {
		return nil, err
	}
	return f.page(n, q), nil
}

func (f *fakeFetcher) SearchTenders(_ context.Context, q tender.Query) ([]tender.Tender, error) {
	n, err := f.record(true, q)
	if err != nil {
		return nil, err
	}
	return f.page(n, q), nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func setupModel(t *testing.T) (*Model, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{}
	m := New(sl.Discard(), f, tender.DefaultQuery())
	require.NoError(t, m.Load(context.Background()))
	require.Equal(t, 1, f.count())
	return m, f
}

func TestDefaults(t *testing.T) {
	m, f := setupModel(t)

	q := f.last().query
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.Quantity)
	assert.Equal(t, tender.SortByValue, q.SortBy)
	assert.Equal(t, tender.Descending, q.Sorting)
	assert.False(t, f.last().search)
	assert.True(t, m.HasNext())
	assert.False(t, m.Snapshot().HasPrev)
}

func TestQuantityChangeFetchesOnce_SearchTermNever(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.SetQuantity(ctx, 50))
	assert.Equal(t, 2, f.count())
	assert.Equal(t, 50, f.last().query.Quantity)

	require.NoError(t, m.SetQuantity(ctx, 50))
	assert.Equal(t, 2, f.count(), "unchanged value does not refetch")

	m.SetSearchTerm("bridge")
	m.SetSearchTerm("bridges")
	assert.Equal(t, 2, f.count(), "typing never fetches")
}

func TestPageClamp(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	require.NoError(t, m.SetPage(ctx, 0))
	assert.Equal(t, 1, f.count(), "page 0 clamps to the current page 1")
	require.NoError(t, m.SetPage(ctx, -3))
	assert.Equal(t, 1, m.Query().Page)

	require.NoError(t, m.PrevPage(ctx))
	assert.Equal(t, 1, f.count())

	require.NoError(t, m.NextPage(ctx))
	assert.Equal(t, 2, f.last().query.Page)

	tests := []struct {
		raw  string
		want int
	}{
		{"7", 7},
		{"abc", 1},
		{"0", 1},
		{"-5", 1},
		{"12abc", 12},
		{"3.9", 3},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.NoError(t, m.SetPageInput(ctx, tt.raw))
			assert.Equal(t, tt.want, m.Query().Page)
		})
	}

	require.NoError(t, m.SetQuantityInput(ctx, "nope"))
	assert.Equal(t, 1, m.Query().Quantity)
}

func TestSearchPersistsAcrossPaging(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	m.SetSearchTerm("  road ")
	require.NoError(t, m.Search(ctx))
	assert.True(t, f.last().search)
	assert.Equal(t, "road", f.last().query.SearchTerm)

	require.NoError(t, m.NextPage(ctx))
	assert.True(t, f.last().search, "paging keeps searching")
	assert.Equal(t, "road", f.last().query.SearchTerm)

	m.SetSearchTerm("bridge")
	require.NoError(t, m.SetSortBy(ctx, tender.SortByTitle))
	assert.Equal(t, "road", f.last().query.SearchTerm, "only submitted terms are searched")

	m.SetSearchTerm("")
	require.NoError(t, m.Search(ctx))
	assert.False(t, f.last().search, "an empty submission goes back to the listing")
}

func TestSortValidation(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	err := m.SetSortBy(ctx, tender.SortField("price"))
	var ve *errors.ValidationError
	require.True(t, serrors.As(err, &ve))

	err = m.SetSorting(ctx, tender.SortDirection("sideways"))
	require.True(t, serrors.As(err, &ve))
	assert.Equal(t, 1, f.count())

	require.NoError(t, m.SetSorting(ctx, tender.Ascending))
	assert.Equal(t, tender.Ascending, f.last().query.Sorting)
}

func TestApply_BatchesIntoOneFetch(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	page, qty, sortBy, sorting, term := 3, 10, "tender_title", "asc", "x"
	require.NoError(t, m.Apply(ctx, Change{Page: &page, Quantity: &qty, SortBy: &sortBy, Sorting: &sorting, SearchTerm: &term}))
	assert.Equal(t, 2, f.count())
	q := m.Query()
	assert.Equal(t, tender.Query{SearchTerm: "x", Page: 3, Quantity: 10, SortBy: tender.SortByTitle, Sorting: tender.Ascending}, q)

	require.NoError(t, m.Apply(ctx, Change{SearchTerm: &term}))
	assert.Equal(t, 2, f.count())

	bad := 0
	err := m.Apply(ctx, Change{Page: &bad})
	var ve *errors.ValidationError
	require.True(t, serrors.As(err, &ve))
}

func TestFailureKeepsResults(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()
	before := m.Tenders()

	f.err = &errors.ServerError{Op: "client.ListTenders", Status: http.StatusInternalServerError}
	err := m.NextPage(ctx)
	var se *errors.ServerError
	require.True(t, serrors.As(err, &se))

	snap := m.Snapshot()
	assert.NotEmpty(t, snap.Error)
	assert.Equal(t, before[0].ID(), snap.Tenders[0].ID())

	f.err = nil
	require.NoError(t, m.Load(ctx))
	assert.Empty(t, m.Snapshot().Error)
}

func TestLatestStartedFetchWins(t *testing.T) {
	m, f := setupModel(t)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	f.gate = func(n int) {
		if n == 2 {
			close(started)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- m.SetPage(ctx, 2) }()
	<-started

	require.NoError(t, m.SetPage(ctx, 3))
	assert.Equal(t, "call-3", m.Tenders()[0].ID())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "call-3", m.Tenders()[0].ID(), "the older response is dropped")
	assert.False(t, m.Snapshot().Loading)
}

type invalidatingFetcher struct {
	*fakeFetcher
	invalidated int
}

func (f *invalidatingFetcher) Invalidate(context.Context) error {
	f.invalidated++
	return nil
}

func TestRefreshInvalidates(t *testing.T) {
	f := &invalidatingFetcher{fakeFetcher: &fakeFetcher{}}
	m := New(sl.Discard(), f, tender.DefaultQuery())
	ctx := context.Background()

	require.NoError(t, m.EnsureLoaded(ctx))
	require.NoError(t, m.EnsureLoaded(ctx))
	assert.Equal(t, 1, f.count())

	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, 1, f.invalidated)
	assert.Equal(t, 2, f.count())

	_, ok := m.Find("call-2")
	assert.True(t, ok)
}
