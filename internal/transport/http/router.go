package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slichti/studio-platform-dev-sub010/internal/metrics"
	"github.com/slichti/studio-platform-dev-sub010/internal/transport/ws"
)

func NewRouter(h *Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(metrics.Middleware)

	// WS endpoint
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Route("/rooms/{id}", func(rr chi.Router) {
		rr.Post("/broadcast", h.BroadcastRoom)
		rr.Get("/presence", h.RoomPresence)
	})

	r.Get("/ratelimit/{partition}", h.CheckRateLimit)
	r.Post("/ratelimit/{partition}", h.CheckRateLimit)

	r.Get("/messages/{id}", h.GetMessage)

	r.Handle("/metrics", promhttp.Handler())

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
