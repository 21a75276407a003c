package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RegisterRoutes mounts every endpoint from onto router.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Use(chimiddleware.RequestID)
	router.Use(Logging(h.logger))
	router.Use(Recovery(h.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Healthz)
	router.Get("/ws", h.ServeWS)
	router.Get("/sessions", h.ListSessions)
	router.Post("/admin/drain", h.Drain)

	router.Route("/queue", func(r chi.Router) {
		r.With(httprate.LimitByIP(20, time.Second)).Post("/enqueue", h.Enqueue)
		r.Get("/status", h.QueueStatus)
		r.Get("/item/{id}", h.GetQueueItem)
		r.Delete("/item/{id}", h.CancelQueueItem)
		r.Get("/dlq", h.ListDLQ)
		r.Post("/dlq/{id}/retry", h.RetryDLQItem)
		r.Delete("/dlq", h.PurgeDLQ)
		r.Post("/process/{id}/complete", h.CompleteProcess)
		r.Post("/process/{id}/fail", h.FailProcess)
	})

	router.Route("/api/images", func(r chi.Router) {
		r.With(httprate.LimitByIP(20, time.Second)).Post("/generate", h.GenerateImage)
		r.Get("/{requestId}/status", h.ImageStatus)
		r.Get("/{requestId}", h.GetImage)
	})
}

// Healthz is a liveness probe; it does not depend on the dispatcher being
// mid-tick, only that the process is up.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
