package httpserver

import (
	"log/slog"
	"net/http"

	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/http-server/handlers/api/admin"
	"tender_dashboard/internal/http-server/handlers/api/auth"
	"tender_dashboard/internal/http-server/handlers/api/comparison"
	"tender_dashboard/internal/http-server/handlers/api/ping"
	"tender_dashboard/internal/http-server/handlers/api/tender"
	"tender_dashboard/internal/http-server/handlers/api/wishlist"
	"tender_dashboard/internal/http-server/middleware/session"
	"tender_dashboard/internal/models/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Config struct {
	Cookie       string
	SecureCookie bool
}

func NewRouter(log *slog.Logger, dashboards *dashboard.Registry, cfg Config) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Get("/ping", ping.New(log, dashboards))

		r.Group(func(r chi.Router) {
			r.Use(session.New(log, dashboards, cfg.Cookie, cfg.SecureCookie))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/login", auth.NewLogin(log))
				r.Post("/register", auth.NewRegister(log))
				r.Post("/logout", auth.NewLogout(log))
				r.Get("/me", auth.NewMe(log))
			})
			r.Route("/tenders", func(r chi.Router) {
				r.Get("/", tender.NewGetTenders(log))
				r.Patch("/query", tender.NewPatchQuery(log))
				r.Post("/search", tender.NewPostSearch(log))
				r.Post("/next", tender.NewPostNext(log))
				r.Post("/prev", tender.NewPostPrev(log))
				r.Get("/highlights", tender.NewGetHighlights(log))
				r.Get("/{tenderId}", tender.NewGetTender(log))
			})
			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlist.NewGetWishlist(log))
				r.Post("/{tenderId}/toggle", wishlist.NewPostToggle(log))
			})
			r.Route("/comparison", func(r chi.Router) {
				r.Get("/", comparison.NewGetComparison(log))
				r.Delete("/", comparison.NewDeleteComparison(log))
				r.Post("/{tenderId}/toggle", comparison.NewPostToggle(log))
				r.Put("/remarks", comparison.NewPutRemarks(log))
				r.Get("/export", comparison.NewGetExport(log))
			})
			r.Route("/admin", func(r chi.Router) {
				r.Use(session.RequireRole(log, user.RoleAdmin))
				r.Get("/pending-users", admin.NewGetPendingUsers(log))
				r.Post("/pending-users/{userId}/approve", admin.NewPostApprove(log))
				r.Post("/users/{userId}/reject", admin.NewPostReject(log))
				r.Get("/users", admin.NewGetUsers(log))
				r.Post("/tenders/{tenderId}/hide", admin.NewPostHideTender(log))
			})
		})
	})

	return router
}
