package auth

import (
	"log/slog"
	"net/http"

	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/user"
	"tender_dashboard/internal/session"

	"github.com/go-chi/render"
)

// Status is what the browser learns about its session.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	Role          user.Role `json:"role,omitempty"`
	RoleName      string    `json:"roleName"`
	Email         string    `json:"email,omitempty"`
}

func statusOf(st session.State) Status {
	return Status{
		Authenticated: st.Authenticated(),
		Role:          st.Role,
		RoleName:      st.Role.String(),
		Email:         st.Email,
	}
}

type Message struct {
	Message string `json:"message"`
}

func NewLogin(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.auth.NewLogin"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req user.LoginRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}

		st, err := d.Session.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handlers.Fail(w, r, log, "Login failed", err)
			return
		}

		render.JSON(w, r, statusOf(st))
	}
}

func NewRegister(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.auth.NewRegister"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req user.RegisterRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}

		if err := d.Session.Register(r.Context(), req); err != nil {
			handlers.Fail(w, r, log, "Registration failed", err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Message{Message: "Registration submitted. An admin has to approve your account before you can log in."})
	}
}

func NewLogout(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.auth.NewLogout"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		if err := d.Session.Logout(r.Context()); err != nil {
			handlers.Fail(w, r, log, "Logout failed", err)
			return
		}

		render.JSON(w, r, Status{RoleName: user.RoleNone.String()})
	}
}

// NewMe reports the session. A stored token is checked with the server; a
// token the server rejects ends the session.
func NewMe(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.auth.NewMe"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		ctx := r.Context()
		if !d.Session.IsAuthenticated(ctx) {
			render.JSON(w, r, Status{RoleName: user.RoleNone.String()})
			return
		}

		if _, err := d.Session.Verify(ctx); err != nil {
			if !errors.IsUnauthorized(err) {
				handlers.Fail(w, r, log, "Failed to verify session", err)
				return
			}
			if err := d.Session.Logout(ctx); err != nil {
				log.Warn("logout after rejected token failed")
			}
		}

		render.JSON(w, r, statusOf(d.Session.State(ctx)))
	}
}
