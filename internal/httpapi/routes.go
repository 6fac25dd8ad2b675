package httpapi

import (
	"net/http"

	"valorant-hub/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func SetupRoutes(h *Handlers, wsHandler http.HandlerFunc, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(logger))

	r.Get("/healthz", h.Healthz)

	r.Route("/queue", func(r chi.Router) {
		r.Get("/", h.GetQueue)
		r.Post("/join", h.JoinQueue)
		r.Post("/leave", h.LeaveQueue)
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", h.GetMatch)
		r.Post("/ready", h.Ready)
		r.Post("/draft-pick", h.DraftPick)
		r.Post("/veto-ban", h.VetoBan)
		r.Post("/report", h.Report)
		r.Post("/force-clock", h.ForceClock)
	})

	r.Get("/users/{id}", h.GetUser)
	r.Get("/ws", wsHandler)

	return r
}
