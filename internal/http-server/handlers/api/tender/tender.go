package tender

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/models/tender"
	"tender_dashboard/internal/query"
	"tender_dashboard/internal/viewmodel"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Page is the tender list view.
type Page struct {
	query.Snapshot
	Summaries []viewmodel.Summary `json:"summaries"`
	Wishlist  []string            `json:"wishlist"`
}

func pageOf(d *dashboard.Dashboard) Page {
	snap := d.Tenders.Snapshot()
	p := Page{
		Snapshot:  snap,
		Summaries: d.Format.SummarizeAll(snap.Tenders),
		Wishlist:  make([]string, 0),
	}
	for _, t := range snap.Tenders {
		if d.Wishlist.IsMember(t.ID()) {
			p.Wishlist = append(p.Wishlist, t.ID())
		}
	}
	return p
}

// Input is a page or quantity as typed by the user: a JSON number or a
// string whose leading integer is used.
type Input int

func (in *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = Input(tender.ParsePositive(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*in = Input(tender.ParsePositive(strconv.FormatFloat(f, 'f', -1, 64)))
	return nil
}

type QueryRequest struct {
	Page     *Input  `json:"page"`
	Quantity *Input  `json:"quantity"`
	SortBy   *string `json:"sortBy"`
	Sorting  *string `json:"sorting"`
	Search   *string `json:"search"`
}

func (q QueryRequest) change() query.Change {
	var c query.Change
	if q.Page != nil {
		n := int(*q.Page)
		c.Page = &n
	}
	if q.Quantity != nil {
		n := int(*q.Quantity)
		c.Quantity = &n
	}
	c.SortBy, c.Sorting, c.SearchTerm = q.SortBy, q.Sorting, q.Search
	return c
}

type SearchRequest struct {
	Search *string `json:"search"`
}

func NewGetTenders(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.tender.NewGetTenders"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		// A failed fetch is part of the page state, not a failed request.
		if err := d.Tenders.EnsureLoaded(r.Context()); err != nil {
			log.Warn("tender page failed to load", slog.String("error", err.Error()))
		}

		render.JSON(w, r, pageOf(d))
	}
}

func NewPatchQuery(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.tender.NewPatchQuery"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req QueryRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}

		if err := d.Tenders.Apply(r.Context(), req.change()); err != nil {
			handlers.Fail(w, r, log, "Failed to update the tender query", err)
			return
		}

		render.JSON(w, r, pageOf(d))
	}
}

func NewPostSearch(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.tender.NewPostSearch"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req SearchRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}
		if req.Search != nil {
			d.Tenders.SetSearchTerm(*req.Search)
		}

		if err := d.Tenders.Search(r.Context()); err != nil {
			handlers.Fail(w, r, log, "Search failed", err)
			return
		}

		render.JSON(w, r, pageOf(d))
	}
}

func NewPostNext(log *slog.Logger) http.HandlerFunc {
	return pager(log, "handlers.api.tender.NewPostNext", (*query.Model).NextPage)
}

func NewPostPrev(log *slog.Logger) http.HandlerFunc {
	return pager(log, "handlers.api.tender.NewPostPrev", (*query.Model).PrevPage)
}

func pager(log *slog.Logger, op string, step func(*query.Model, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		if err := step(d.Tenders, r.Context()); err != nil {
			handlers.Fail(w, r, log, "Failed to change page", err)
			return
		}

		render.JSON(w, r, pageOf(d))
	}
}

type WorkGroup struct {
	Name    string              `json:"name"`
	Count   int                 `json:"count"`
	Tenders []viewmodel.Summary `json:"tenders"`
}

type Highlights struct {
	ReachingDeadline []viewmodel.Summary `json:"reachingDeadline"`
	BestValued       []viewmodel.Summary `json:"bestValued"`
	ByWorks          []WorkGroup         `json:"byWorks"`
}

func NewGetHighlights(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.tender.NewGetHighlights"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		h, err := d.Highlights(r.Context())
		if err != nil {
			handlers.Fail(w, r, log, "Failed to load highlights", err)
			return
		}

		resp := Highlights{
			ReachingDeadline: d.Format.SummarizeAll(h.ReachingDeadline),
			BestValued:       d.Format.SummarizeAll(h.BestValued),
			ByWorks:          make([]WorkGroup, 0, len(h.ByWorks)),
		}
		for _, g := range h.ByWorks {
			resp.ByWorks = append(resp.ByWorks, WorkGroup{Name: g.Name, Count: g.Count, Tenders: d.Format.SummarizeAll(g.Docs)})
		}
		render.JSON(w, r, resp)
	}
}

type Detail struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	URL          string                `json:"url,omitempty"`
	Attributes   []viewmodel.Attribute `json:"attributes"`
	InWishlist   bool                  `json:"inWishlist"`
	InComparison bool                  `json:"inComparison"`
}

func NewGetTender(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.tender.NewGetTender"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		tenderId := chi.URLParam(r, "tenderId")
		t, attrs, err := d.Detail(r.Context(), tenderId)
		if err != nil {
			handlers.Fail(w, r, log, "Tender not found", err)
			return
		}

		render.JSON(w, r, Detail{
			ID:           t.ID(),
			Title:        t.Title(),
			URL:          t.URL(),
			Attributes:   attrs,
			InWishlist:   d.Wishlist.IsMember(t.ID()),
			InComparison: d.Comparison.IsMember(t.ID()),
		})
	}
}
