package wishlist

import (
	"log/slog"
	"net/http"

	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/viewmodel"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type List struct {
	collection.Snapshot
	Summaries []viewmodel.Summary `json:"summaries"`
	Notices   []collection.Notice `json:"notices"`
}

// Toggled answers a toggle. Notices carry the messages the view shows.
type Toggled struct {
	Outcome collection.Outcome  `json:"outcome"`
	Notices []collection.Notice `json:"notices"`
}

func NewGetWishlist(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.wishlist.NewGetWishlist"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}
		if !loggedIn(w, r, d) {
			return
		}

		if err := d.Wishlist.EnsureLoaded(r.Context()); err != nil {
			handlers.Fail(w, r, log, "Failed to load the wishlist", err)
			return
		}

		snap := d.Wishlist.Snapshot()
		render.JSON(w, r, List{
			Snapshot:  snap,
			Summaries: d.Format.SummarizeAll(snap.Items),
			Notices:   d.Inbox.Drain(),
		})
	}
}

func NewPostToggle(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.wishlist.NewPostToggle"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		tenderId := chi.URLParam(r, "tenderId")
		out, err := d.ToggleWishlist(r.Context(), tenderId)
		if err != nil {
			handlers.Fail(w, r, log, "Failed to update wishlist. Please try again.", err)
			return
		}

		render.JSON(w, r, Toggled{Outcome: out, Notices: d.Inbox.Drain()})
	}
}

func loggedIn(w http.ResponseWriter, r *http.Request, d *dashboard.Dashboard) bool {
	if d.Session.IsAuthenticated(r.Context()) {
		return true
	}
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, errors.NewHttpError("Please log in first"))
	return false
}
