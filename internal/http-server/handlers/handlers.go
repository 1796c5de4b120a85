// Package handlers holds what every dashboard handler shares: finding the
// request's dashboard and answering with an error.
package handlers

import (
	serrors "errors"
	"io"
	"log/slog"
	"net/http"

	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/dashboard"
	"tender_dashboard/internal/lib/errors"
	"tender_dashboard/internal/lib/logger/sl"
	"tender_dashboard/internal/storage"

	"github.com/go-chi/render"
)

// Dashboard returns the dashboard the session middleware attached to r. If
// there is none it answers 500 and reports false.
func Dashboard(w http.ResponseWriter, r *http.Request) (*dashboard.Dashboard, bool) {
	d, ok := dashboard.FromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errors.NewHttpError("no dashboard session"))
	}
	return d, ok
}

func StatusOf(err error) int {
	switch {
	case serrors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case serrors.Is(err, collection.ErrInFlight):
		return http.StatusConflict
	case serrors.Is(err, collection.ErrNotMember), serrors.Is(err, collection.ErrNoClear):
		return http.StatusBadRequest
	}
	return errors.StatusOf(err)
}

// Fail logs err and writes it as an HttpError.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error(msg, sl.Err(err))
	} else {
		log.Info(msg, sl.Err(err))
	}

	body := errors.HttpErrorOf(err)
	switch {
	case serrors.Is(err, storage.ErrNotFound), serrors.Is(err, collection.ErrInFlight),
		serrors.Is(err, collection.ErrNotMember), serrors.Is(err, collection.ErrNoClear):
		body = errors.NewHttpError(msg)
	}

	render.Status(r, status)
	render.JSON(w, r, body)
}

// Decode reads a JSON body into v. An empty body leaves v untouched.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := render.DecodeJSON(r.Body, v); err != nil && !serrors.Is(err, io.EOF) {
		log.Info("malformed request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errors.NewHttpError("malformed request body"))
		return false
	}
	return true
}
