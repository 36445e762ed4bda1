package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"promo-scheduler/internal/fetcher"
	"promo-scheduler/internal/promotion"
	"promo-scheduler/internal/scheduler"
)

// Refresher triggers an out-of-band configuration refresh.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

type PromotionHandler struct {
	Sched     *scheduler.Scheduler
	Refresher Refresher // optional
}

func NewPromotionHandler(s *scheduler.Scheduler, r Refresher) *PromotionHandler {
	return &PromotionHandler{Sched: s, Refresher: r}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Next serves the next promotion; 204 when nothing is eligible.
// Optional lang/platform query params target this request only; the stored
// context changes through PUT /v1/context.
func (h *PromotionHandler) Next(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := strings.TrimSpace(q.Get("lang"))
	platform := strings.TrimSpace(q.Get("platform"))

	p, ok := h.Sched.NextPromotionFor(lang, platform)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromotionHandler) List(w http.ResponseWriter, _ *http.Request) {
	ps := h.Sched.Promotions()
	if ps == nil {
		ps = []promotion.Promotion{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// Stats serves cumulative counts per promotion and, for grouped catalogs,
// per campaign.
func (h *PromotionHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]promotion.Stats{
		"promotions": h.Sched.Stats(),
		"campaigns":  h.Sched.CampaignStats(),
	})
}

func (h *PromotionHandler) BalancingStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]promotion.Stats{
		"promotions": h.Sched.BalancingStats(),
		"campaigns":  h.Sched.CampaignBalancingStats(),
	})
}

type targetingContext struct {
	Language string `json:"language"`
	Platform string `json:"platform"`
}

func (h *PromotionHandler) GetContext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, targetingContext{Language: h.Sched.Language(), Platform: h.Sched.Platform()})
}

func (h *PromotionHandler) PutContext(w http.ResponseWriter, r *http.Request) {
	var body targetingContext
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if body.Language != "" {
		h.Sched.SetLanguage(body.Language)
	}
	if body.Platform != "" {
		h.Sched.SetPlatform(body.Platform)
	}
	h.GetContext(w, r)
}

func (h *PromotionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Refresher == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no fetcher configured"})
		return
	}
	wasReset, err := h.Refresher.Refresh(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error(), "kind": fetcher.Kind(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": wasReset})
}
