package ping

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

type SessionCounter interface {
	Len() int
}

type Response struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func New(log *slog.Logger, sessions SessionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.api.ping.New"

		log := log.With(slog.String("op", op))
		log.Debug("ping request")

		render.JSON(w, r, Response{Status: "ok", Sessions: sessions.Len()})
	}
}
