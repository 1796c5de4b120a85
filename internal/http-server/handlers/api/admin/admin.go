package admin

import (
	"log/slog"
	"net/http"

	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/models/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type ApproveRequest struct {
	Role string `json:"role"`
}

type Message struct {
	Message string `json:"message"`
}

func NewGetPendingUsers(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.admin.NewGetPendingUsers"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		if _, err := d.Admin.ListPendingUsers(r.Context()); err != nil {
			handlers.Fail(w, r, log, "Failed to load pending users", err)
			return
		}

		render.JSON(w, r, d.Admin.Snapshot())
	}
}

func NewPostApprove(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.admin.NewPostApprove"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req ApproveRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}

		role, err := user.ParseApprovalRole(req.Role)
		if err != nil {
			handlers.Fail(w, r, log, "Incorrect role", errors.NewValidationError(err.Error()))
			return
		}

		userId := chi.URLParam(r, "userId")
		if err := d.Admin.Approve(r.Context(), userId, role); err != nil {
			handlers.Fail(w, r, log, "Failed to approve user", err)
			return
		}

		render.JSON(w, r, d.Admin.Snapshot())
	}
}

func NewPostReject(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.admin.NewPostReject"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		userId := chi.URLParam(r, "userId")
		if err := d.Admin.Reject(r.Context(), userId); err != nil {
			handlers.Fail(w, r, log, "Failed to reject user", err)
			return
		}

		render.JSON(w, r, d.Admin.Snapshot())
	}
}

func NewGetUsers(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.admin.NewGetUsers"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		if _, err := d.Admin.SearchUsers(r.Context(), r.URL.Query().Get("search")); err != nil {
			handlers.Fail(w, r, log, "User search failed", err)
			return
		}

		render.JSON(w, r, d.Admin.Snapshot())
	}
}

func NewPostHideTender(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.admin.NewPostHideTender"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		tenderId := chi.URLParam(r, "tenderId")
		if err := d.Admin.HideTender(r.Context(), tenderId); err != nil {
			handlers.Fail(w, r, log, "Failed to hide tender", err)
			return
		}

		render.JSON(w, r, Message{Message: "Tender " + tenderId + " is hidden."})
	}
}
