package dashboard

import (
	"bytes"
	"context"
	serrors "errors"
	"net/http"
	"testing"
	"time"

	"tender_dashboard/internal/client"
	"tender_dashboard/internal/client/clienttest"
	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/storage"
	"tender_dashboard/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T, n int) (*Registry, *clienttest.Upstream, *memory.Storage) {
	t.Helper()
	up := clienttest.New(t, clienttest.SampleTenders(n)...)
	store := memory.New()
	reg := NewRegistry(sl.Discard(), store, nil, Options{
		Client:   client.Config{BaseURL: up.URL(), Timeout: 2 * time.Second},
		Location: time.UTC,
	})
	return reg, up, store
}

func login(t *testing.T, d *Dashboard, email string) {
	t.Helper()
	_, err := d.Session.Login(context.Background(), email, "secret")
	require.NoError(t, err)
}

func TestRegistry_Open(t *testing.T) {
	reg, _, _ := setupRegistry(t, 1)

	d, id := reg.Open("")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)

	again, sameID := reg.Open(id)
	assert.Same(t, d, again)
	assert.Equal(t, id, sameID)

	_, other := reg.Open("not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", other)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_SessionSurvivesDrop(t *testing.T) {
	reg, _, _ := setupRegistry(t, 1)
	ctx := context.Background()

	d, id := reg.Open("")
	login(t, d, "user@example.com")

	reg.Drop(id)
	fresh, _ := reg.Open(id)
	assert.NotSame(t, d, fresh)
	assert.True(t, fresh.Session.IsAuthenticated(ctx))
}

type fakeClock struct{ at time.Time }

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	reg, _, _ := setupRegistry(t, 1)
	clock := &fakeClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	reg.now = clock.now

	for i := 0; i < 100; i++ {
		reg.Open("")
	}
	_, kept := reg.Open("")
	require.Equal(t, 101, reg.Len())

	clock.advance(DefaultIdleTTL - time.Minute)
	reg.Open(kept)
	clock.advance(2 * time.Minute)

	assert.Equal(t, 100, reg.Sweep())
	assert.Equal(t, 1, reg.Len())

	again, id := reg.Open(kept)
	assert.Equal(t, kept, id)
	assert.Equal(t, kept, again.ID)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CapEvictsLeastRecentlyUsed(t *testing.T) {
	up := clienttest.New(t)
	reg := NewRegistry(sl.Discard(), memory.New(), nil, Options{
		Client:      client.Config{BaseURL: up.URL(), Timeout: 2 * time.Second},
		MaxSessions: 3,
	})
	clock := &fakeClock{at: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	reg.now = clock.now

	_, a := reg.Open("")
	clock.advance(time.Second)
	_, b := reg.Open("")
	clock.advance(time.Second)
	_, c := reg.Open("")
	clock.advance(time.Second)
	reg.Open(a)
	clock.advance(time.Second)

	_, d := reg.Open("")
	assert.Equal(t, 3, reg.Len())
	for _, id := range []string{a, c, d} {
		assert.Contains(t, reg.items, id)
	}
	assert.NotContains(t, reg.items, b)

	for i := 0; i < 5000; i++ {
		reg.Open("")
		clock.advance(time.Millisecond)
	}
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_RunStopsWithContext(t *testing.T) {
	reg, _, _ := setupRegistry(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	reg, _, _ := setupRegistry(t, 1)
	ctx := context.Background()

	a, _ := reg.Open("")
	b, _ := reg.Open("")
	login(t, a, "admin@example.com")

	assert.True(t, a.Session.IsAuthenticated(ctx))
	assert.False(t, b.Session.IsAuthenticated(ctx))
}

func TestTogglesAndLogoutReset(t *testing.T) {
	reg, up, _ := setupRegistry(t, 3)
	ctx := context.Background()
	d, _ := reg.Open("")

	_, err := d.ToggleWishlist(ctx, "t1")
	assert.True(t, errors.IsUnauthorized(err), "toggling needs a login")

	login(t, d, "user@example.com")
	require.NoError(t, d.Tenders.Load(ctx))

	out, err := d.ToggleWishlist(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, collection.Committed, out.Phase)
	assert.Equal(t, "Tender t2", out.Title, "title comes from the loaded page")
	assert.True(t, d.Wishlist.IsMember("t2"))

	up.Mu.Lock()
	assert.Equal(t, []string{"t2"}, up.Wishlist["user-token"])
	up.Mu.Unlock()

	notices := d.Inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, `Tender "Tender t2" has been added to the wishlist.`, notices[0].Message)

	_, err = d.ToggleComparison(ctx, "t1")
	require.NoError(t, err)

	require.NoError(t, d.Session.Logout(ctx))
	assert.Zero(t, d.Wishlist.Len())
	assert.Zero(t, d.Comparison.Len())
	assert.Empty(t, d.Inbox.Drain())
}

func TestComparisonTableAndExport(t *testing.T) {
	reg, _, store := setupRegistry(t, 3)
	ctx := context.Background()
	d, _ := reg.Open("")

	var buf bytes.Buffer
	_, err := d.ComparisonTable(ctx)
	require.Error(t, err)

	login(t, d, "user@example.com")
	require.NoError(t, d.Tenders.Load(ctx))

	err = d.ExportPDF(ctx, &buf)
	var ve *errors.ValidationError
	require.True(t, serrors.As(err, &ve), "nothing to export yet")

	for _, id := range []string{"t1", "t3"} {
		_, err := d.ToggleComparison(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, d.SaveRemarks(ctx, map[string]string{"location": "same city"}))

	remarks, err := store.GetRemarks(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"location": "same city"}, remarks)

	table, err := d.ComparisonTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t3"}, table.TenderIDs)
	assert.True(t, table.WithRemarks)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"3M", "1M"}, table.Rows[0].Cells)
	assert.Equal(t, "same city", table.Rows[1].Remark)

	buf.Reset()
	require.NoError(t, d.ExportPDF(ctx, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	require.NoError(t, d.ClearComparison(ctx))
	assert.Zero(t, d.Comparison.Len())
}

func TestDetail(t *testing.T) {
	reg, up, _ := setupRegistry(t, 2)
	ctx := context.Background()
	d, _ := reg.Open("")

	tn, attrs, err := d.Detail(ctx, "t2")
	require.NoError(t, err, "found through the highlights")
	assert.Equal(t, "t2", tn.ID())
	assert.NotEmpty(t, attrs)
	assert.Equal(t, 1, up.CallCount("/dashboard/highlight-tenders"))

	require.NoError(t, d.Tenders.Load(ctx))
	_, _, err = d.Detail(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, up.CallCount("/dashboard/highlight-tenders"), "page hit needs no request")

	_, _, err = d.Detail(ctx, "zz")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHideTenderRefreshesSharedPage(t *testing.T) {
	reg, up, _ := setupRegistry(t, 2)
	ctx := context.Background()
	d, _ := reg.Open("")
	login(t, d, "admin@example.com")

	require.NoError(t, d.Tenders.Load(ctx))
	require.Len(t, d.Tenders.Tenders(), 2)

	require.NoError(t, d.Admin.HideTender(ctx, "t1"))
	got := d.Tenders.Tenders()
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID())

	up.Mu.Lock()
	up.Fail["/admin/hide-tender"] = http.StatusInternalServerError
	up.Mu.Unlock()
	assert.Error(t, d.Admin.HideTender(ctx, "t2"))
}
