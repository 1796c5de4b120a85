package comparison

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"tender_dashboard/internal/collection"
	"tender_dashboard/internal/export"
	"tender_dashboard/internal/http-server/handlers"
	"tender_dashboard/internal/viewmodel"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type Table struct {
	viewmodel.ComparisonTable
	Notices []collection.Notice `json:"notices"`
}

type Toggled struct {
	Outcome collection.Outcome  `json:"outcome"`
	Notices []collection.Notice `json:"notices"`
}

type RemarksRequest struct {
	Remarks map[string]string `json:"remarks"`
}

func NewGetComparison(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.comparison.NewGetComparison"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		table, err := d.ComparisonTable(r.Context())
		if err != nil {
			handlers.Fail(w, r, log, "Failed to load the comparison list", err)
			return
		}

		render.JSON(w, r, Table{ComparisonTable: table, Notices: d.Inbox.Drain()})
	}
}

func NewPostToggle(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.comparison.NewPostToggle"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		tenderId := chi.URLParam(r, "tenderId")
		out, err := d.ToggleComparison(r.Context(), tenderId)
		if err != nil {
			handlers.Fail(w, r, log, "Failed to update comparison list. Please try again.", err)
			return
		}

		render.JSON(w, r, Toggled{Outcome: out, Notices: d.Inbox.Drain()})
	}
}

func NewDeleteComparison(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.comparison.NewDeleteComparison"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		if err := d.ClearComparison(r.Context()); err != nil {
			handlers.Fail(w, r, log, "Failed to clear the comparison list", err)
			return
		}

		render.JSON(w, r, Table{ComparisonTable: viewmodel.ComparisonTable{
			TenderIDs: []string{},
			Headers:   []string{},
			Rows:      []viewmodel.ComparisonRow{},
		}, Notices: d.Inbox.Drain()})
	}
}

func NewPutRemarks(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.comparison.NewPutRemarks"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var req RemarksRequest
		if !handlers.Decode(w, r, log, &req) {
			return
		}

		if err := d.SaveRemarks(r.Context(), req.Remarks); err != nil {
			handlers.Fail(w, r, log, "Failed to save remarks", err)
			return
		}

		table, err := d.ComparisonTable(r.Context())
		if err != nil {
			handlers.Fail(w, r, log, "Failed to load the comparison list", err)
			return
		}
		render.JSON(w, r, Table{ComparisonTable: table, Notices: d.Inbox.Drain()})
	}
}

// NewGetExport streams the comparison the view last showed as a PDF.
func NewGetExport(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.comparison.NewGetExport"
		log := log.With(slog.String("op", op))

		d, ok := handlers.Dashboard(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := d.ExportPDF(r.Context(), &buf); err != nil {
			handlers.Fail(w, r, log, "Failed to export the comparison", err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			log.Warn("export interrupted", slog.String("error", err.Error()))
		}
	}
}
