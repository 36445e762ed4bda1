package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"promo-scheduler/internal/observability"
)

func Router(h *PromotionHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/promotions", h.List)
		r.Get("/promotions/next", h.Next)
		r.Get("/stats", h.Stats)
		r.Get("/stats/balancing", h.BalancingStats)
		r.Get("/context", h.GetContext)
		r.Put("/context", h.PutContext)
		r.Post("/refresh", h.Refresh)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
