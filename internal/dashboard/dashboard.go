// Package dashboard bundles the state one browser (or one CLI invocation)
// works with: its session, the tender query, wishlist, comparison and the
// admin panel.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"tender_dashboard/internal/admin"
	"tender_dashboard/internal/client"
	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/export"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/query"
	"tender_dashboard/internal/session"
	"tender_dashboard/internal/storage"
	"tender_dashboard/internal/viewmodel"
)

const (
	WishlistName   = "wishlist"
	ComparisonName = "comparison list"
)

type RemarksStore interface {
	GetRemarks(ctx context.Context, owner string) (map[string]string, error)
	SaveRemarks(ctx context.Context, owner string, remarks map[string]string) error
}

type Dashboard struct {
	ID         string
	Client     *client.Client
	Session    *session.Session
	Tenders    *query.Model
	Wishlist   *collection.Collection
	Comparison *collection.Collection
	Admin      *admin.Moderation
	Inbox      *collection.Inbox
	Format     viewmodel.Formatter

	log     *slog.Logger
	remarks RemarksStore

	mu    sync.Mutex
	table viewmodel.ComparisonTable
	shown bool
}

type parts struct {
	id      string
	api     *client.Client
	store   session.Store
	fetcher query.Fetcher
	remarks RemarksStore
	format  viewmodel.Formatter
	query   tender.Query
}

func assemble(log *slog.Logger, p parts) *Dashboard {
	log = log.With(slog.String("dashboard", p.id))

	sess := session.New(log, p.api, p.store)
	p.api.Bind(sess, sess.Unauthorized)

	inbox := &collection.Inbox{}
	tenders := query.New(log, p.fetcher, p.query)

	d := &Dashboard{
		ID:         p.id,
		Client:     p.api,
		Session:    sess,
		Tenders:    tenders,
		Wishlist:   collection.New(log, WishlistName, p.api.Wishlist(), inbox),
		Comparison: collection.New(log, ComparisonName, p.api.Comparison(), inbox),
		Admin:      admin.New(log, p.api, tenders),
		Inbox:      inbox,
		Format:     p.format,
		log:        log,
		remarks:    p.remarks,
	}
	sess.OnLogout(d.forget)
	return d
}

// forget drops everything tied to the logged out user.
func (d *Dashboard) forget(context.Context) {
	d.Wishlist.Reset()
	d.Comparison.Reset()
	d.Admin.Reset()
	d.Inbox.Drain()

	d.mu.Lock()
	d.table = viewmodel.ComparisonTable{}
	d.shown = false
	d.mu.Unlock()
}

func (d *Dashboard) Highlights(ctx context.Context) (tender.Highlights, error) {
	const op = "dashboard.Highlights"

	h, err := d.Client.Highlights(ctx)
	if err != nil {
		return tender.Highlights{}, fmt.Errorf("%s: %w", op, err)
	}
	return h, nil
}

// Lookup finds a tender the dashboard already knows: the current page,
// then the wishlist, then the comparison list.
func (d *Dashboard) Lookup(id string) (tender.Tender, bool) {
	if t, ok := d.Tenders.Find(id); ok {
		return t, true
	}
	if t, ok := tender.Find(d.Wishlist.Items(), id); ok {
		return t, true
	}
	return tender.Find(d.Comparison.Items(), id)
}

// Detail returns the attribute list of the detail view.
func (d *Dashboard) Detail(ctx context.Context, id string) (tender.Tender, []viewmodel.Attribute, error) {
	const op = "dashboard.Detail"

	if t, ok := d.Lookup(id); ok {
		return t, d.Format.AttributesOf(t), nil
	}

	// The tender may be one of the highlights the view came from.
	h, err := d.Client.Highlights(ctx)
	if err != nil {
		return tender.Tender{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	if t, ok := tender.Find(h.All(), id); ok {
		return t, d.Format.AttributesOf(t), nil
	}
	return tender.Tender{}, nil, fmt.Errorf("%s: tender %s: %w", op, id, storage.ErrNotFound)
}

func (d *Dashboard) ToggleWishlist(ctx context.Context, id string) (collection.Outcome, error) {
	return d.toggle(ctx, d.Wishlist, id)
}

func (d *Dashboard) ToggleComparison(ctx context.Context, id string) (collection.Outcome, error) {
	out, err := d.toggle(ctx, d.Comparison, id)
	d.dropTable()
	return out, err
}

func (d *Dashboard) ClearComparison(ctx context.Context) error {
	err := d.Comparison.Clear(ctx)
	d.dropTable()
	return err
}

func (d *Dashboard) toggle(ctx context.Context, c *collection.Collection, id string) (collection.Outcome, error) {
	id = strings.TrimSpace(id)
	if err := d.requireLogin(ctx, "dashboard.Toggle"); err != nil {
		return collection.Outcome{}, err
	}
	if err := c.EnsureLoaded(ctx); err != nil {
		return collection.Outcome{}, err
	}
	if c.IsMember(id) {
		return c.ToggleID(ctx, id)
	}
	t, ok := d.Lookup(id)
	if !ok {
		t = tender.Ref(id)
	}
	return c.Toggle(ctx, t)
}

func (d *Dashboard) requireLogin(ctx context.Context, op string) error {
	if d.Session.IsAuthenticated(ctx) {
		return nil
	}
	return &errors.AuthError{Op: op, Status: http.StatusUnauthorized, Message: "not logged in"}
}

// ComparisonTable renders the comparison view and remembers it for export.
func (d *Dashboard) ComparisonTable(ctx context.Context) (viewmodel.ComparisonTable, error) {
	const op = "dashboard.ComparisonTable"

	if err := d.requireLogin(ctx, op); err != nil {
		return viewmodel.ComparisonTable{}, err
	}
	if err := d.Comparison.EnsureLoaded(ctx); err != nil {
		return viewmodel.ComparisonTable{}, fmt.Errorf("%s: %w", op, err)
	}

	table := d.Format.NewComparisonTable(d.Comparison.Items(), d.loadRemarks(ctx))

	d.mu.Lock()
	d.table = table
	d.shown = true
	d.mu.Unlock()
	return table, nil
}

// SaveRemarks stores per-aspect remarks for the logged in user.
func (d *Dashboard) SaveRemarks(ctx context.Context, remarks map[string]string) error {
	const op = "dashboard.SaveRemarks"

	owner := d.Session.State(ctx).Email
	if owner == "" {
		return &errors.AuthError{Op: op, Status: http.StatusUnauthorized, Message: "not logged in"}
	}
	if d.remarks == nil {
		return fmt.Errorf("%s: remarks are not stored", op)
	}
	if err := d.remarks.SaveRemarks(ctx, owner, remarks); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.dropTable()
	return nil
}

func (d *Dashboard) loadRemarks(ctx context.Context) map[string]string {
	owner := d.Session.State(ctx).Email
	if d.remarks == nil || owner == "" {
		return nil
	}
	remarks, err := d.remarks.GetRemarks(ctx, owner)
	if err != nil {
		d.log.Warn("failed to load remarks", sl.Err(err))
		return map[string]string{}
	}
	return remarks
}

// ExportPDF writes the table the comparison view last showed. If the view
// has not been rendered since the last change, the local mirror is used.
// Nothing is fetched.
func (d *Dashboard) ExportPDF(ctx context.Context, w io.Writer) error {
	const op = "dashboard.ExportPDF"

	d.mu.Lock()
	table, shown := d.table, d.shown
	d.mu.Unlock()

	if !shown {
		table = d.Format.NewComparisonTable(d.Comparison.Items(), d.loadRemarks(ctx))
	}
	if table.Empty() {
		return errors.NewValidationError("there are no tenders to compare")
	}

	if err := export.ComparisonPDF(w, table, export.Options{Title: "Tender Comparison"}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (d *Dashboard) dropTable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.table = viewmodel.ComparisonTable{}
	d.shown = false
}
