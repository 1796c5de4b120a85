// Package session attaches the caller's dashboard to every request and
// gates the admin routes.
package session

import (
	"log/slog"
	"net/http"

	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/user"

	"github.com/go-chi/render"
)

type Opener interface {
	Open(id string) (*dashboard.Dashboard, string)
}

// New reads the session cookie, opens the matching dashboard and issues a
// new cookie when the id changed.
func New(log *slog.Logger, dashboards Opener, cookie string, secure bool) func(http.Handler) http.Handler {
	log = log.With(slog.String("component", "middleware/session"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(cookie); err == nil {
				id = c.Value
			}

			d, opened := dashboards.Open(id)
			if opened != id {
				log.Debug("new dashboard session", slog.String("session", opened))
				http.SetCookie(w, &http.Cookie{
					Name:     cookie,
					Value:    opened,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(dashboard.WithDashboard(r.Context(), d)))
		})
	}
}

// RequireRole lets a request through only when the server confirms the
// session token carries one of roles.
func RequireRole(log *slog.Logger, roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.session.RequireRole"

			d, ok := handlers.Dashboard(w, r)
			if !ok {
				return
			}

			role, err := d.Session.Verify(r.Context())
			if err != nil {
				if errors.IsUnauthorized(err) {
					_ = d.Session.Logout(r.Context())
				}
				handlers.Fail(w, r, log.With(slog.String("op", op)), "Failed to verify session", err)
				return
			}

			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			log.Info("role rejected", slog.String("op", op), slog.String("role", role.String()))
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, errors.NewHttpError("You are not allowed to access this page"))
		})
	}
}
