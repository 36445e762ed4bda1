// Package scheduler picks the next promotion to show and keeps display
// counters in step with the active catalog.
//
// A Scheduler owns two counter horizons. Balancing counters drive the
// weighted rotation and are cleared when the catalog is reset; cumulative
// counters are lifetime totals cleared only by an explicit marker. Every
// state-changing call is serialised by one mutex, so reading the balancing
// counts and incrementing them for a selection never interleaves with
// another mutation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"promo-scheduler/internal/balancer"
	"promo-scheduler/internal/cache"
	"promo-scheduler/internal/counter"
	"promo-scheduler/internal/fetcher"
	"promo-scheduler/internal/observability"
	"promo-scheduler/internal/promotion"
)

const (
	defaultLanguage = "en"
	defaultPlatform = "ios"

	stateWriteTimeout = 2 * time.Second
)

type Scheduler struct {
	mu sync.Mutex

	balancing  counter.Store
	cumulative counter.Store

	policy   ResetPolicy
	now      func() time.Time
	language string
	platform string

	lastBalancingReset  time.Time
	lastCumulativeReset time.Time
	configHash          uint64
	hasConfigHash       bool
	state               StateStore // optional

	// written under mu, readable without it
	catalog cache.Snapshot[catalog]
}

// New creates a Scheduler over the given counter stores. Restored counts in
// the stores are used as-is.
func New(balancing, cumulative counter.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		balancing:  balancing,
		cumulative: cumulative,
		policy:     ResetByDate,
		now:        time.Now,
		language:   defaultLanguage,
		platform:   defaultPlatform,
	}
	for _, o := range opts {
		o(s)
	}
	s.catalog.Store(catalog{})
	return s
}

// Configure installs cfg as the active catalog and applies the reset policy.
// It reports whether any counter horizon was cleared.
func (s *Scheduler) Configure(cfg promotion.Configuration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wasReset bool
	switch s.policy {
	case ResetByContent:
		wasReset = s.applyContentReset(cfg)
	default:
		wasReset = s.applyDateReset(cfg)
	}
	if wasReset {
		s.saveState()
	}

	cat := newCatalog(cfg)
	s.catalog.Store(cat)
	observability.CatalogSize.Set(float64(cat.size()))

	log.Debug().
		Int("promotions", cat.size()).
		Int("campaigns", len(cat.campaigns)).
		Str("policy", s.policy.String()).
		Bool("reset", wasReset).
		Msg("catalog configured")
	return wasReset
}

func (s *Scheduler) applyDateReset(cfg promotion.Configuration) bool {
	now := s.now()
	var wasReset bool

	if d := cfg.ResetBalancingDate; d != nil && d.After(s.lastBalancingReset) {
		s.resetBalancing("balancing marker advanced")
		s.lastBalancingReset = latest(now, *d)
		wasReset = true
	}
	if d := cfg.ResetCumulativeDate; d != nil && d.After(s.lastCumulativeReset) {
		s.cumulative.Reset()
		observability.CounterResets.WithLabelValues("cumulative").Inc()
		log.Info().Time("marker", *d).Msg("cumulative counters reset")
		// balancing counts may never exceed cumulative ones
		s.resetBalancing("cumulative marker advanced")
		s.lastCumulativeReset = latest(now, *d)
		wasReset = true
	}
	return wasReset
}

// latest keeps a marker dated ahead of the local clock from resetting again
// on the next Configure.
func latest(now, marker time.Time) time.Time {
	if marker.After(now) {
		return marker
	}
	return now
}

func (s *Scheduler) applyContentReset(cfg promotion.Configuration) bool {
	h, err := fingerprint(cfg)
	if err != nil {
		log.Error().Err(err).Msg("fingerprint catalog; treating as changed")
		s.hasConfigHash = false
		s.resetBalancing("catalog fingerprint unavailable")
		return true
	}
	if s.hasConfigHash && s.configHash == h {
		return false
	}
	s.configHash, s.hasConfigHash = h, true
	s.resetBalancing("catalog changed")
	return true
}

// saveState persists the reset bookkeeping. Callers hold s.mu.
func (s *Scheduler) saveState() {
	if s.state == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
	defer cancel()

	if err := s.state.Save(ctx, s.resetState()); err != nil {
		observability.PersistErrors.WithLabelValues("resets").Inc()
		log.Error().Err(err).Msg("persist reset state failed; counters may be reset again after restart")
	}
}

func (s *Scheduler) resetState() ResetState {
	return ResetState{
		LastBalancingReset:  s.lastBalancingReset,
		LastCumulativeReset: s.lastCumulativeReset,
		ConfigHash:          s.configHash,
		HasConfigHash:       s.hasConfigHash,
	}
}

func (s *Scheduler) resetBalancing(reason string) {
	s.balancing.Reset()
	observability.CounterResets.WithLabelValues("balancing").Inc()
	log.Info().Str("reason", reason).Msg("balancing counters reset")
}

// UpdateConfig fetches a configuration and configures it. A fetch error
// leaves the scheduler untouched.
func (s *Scheduler) UpdateConfig(ctx context.Context, f fetcher.ConfigFetcher) (bool, error) {
	cfg, err := f.FetchConfig(ctx)
	if err != nil {
		return false, err
	}
	return s.Configure(cfg), nil
}

// NextPromotion selects the promotion to show and records the display in
// both counter horizons. ok is false, with no side effects, when nothing is
// eligible.
func (s *Scheduler) NextPromotion() (promotion.Promotion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next(s.language, s.platform)
}

// NextPromotionFor is NextPromotion under an explicit targeting context. The
// scheduler's own context is left as is; empty values fall back to it.
func (s *Scheduler) NextPromotionFor(language, platform string) (promotion.Promotion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if language == "" {
		language = s.language
	}
	if platform == "" {
		platform = s.platform
	}
	return s.next(language, platform)
}

// next selects and records a display. Callers hold s.mu.
func (s *Scheduler) next(language, platform string) (p promotion.Promotion, ok bool) {
	cat, _ := s.catalog.Load()
	now := s.now()

	if len(cat.campaigns) > 0 {
		p, ok = s.pickGrouped(cat, language, platform, now)
	} else {
		p, ok = s.pickPromotion(cat.promotions, cat.index.Eligible(language, platform, now))
	}
	if !ok {
		observability.Selections.WithLabelValues("none").Inc()
		return promotion.Promotion{}, false
	}

	// cumulative first: a balancing count must never exceed its cumulative count
	s.cumulative.Increment(p.ID)
	s.balancing.Increment(p.ID)
	observability.Selections.WithLabelValues("selected").Inc()
	return p, true
}

// pickPromotion balances over ps[i] for every i in eligible.
func (s *Scheduler) pickPromotion(ps []promotion.Promotion, eligible []int) (promotion.Promotion, bool) {
	entries := make([]balancer.Entry[int], 0, len(eligible))
	for _, i := range eligible {
		entries = append(entries, balancer.Entry[int]{
			Item:     i,
			Weight:   ps[i].EffectiveWeight(),
			Displays: s.balancing.Get(ps[i].ID),
		})
	}
	i, ok := balancer.Pick(entries)
	if !ok {
		return promotion.Promotion{}, false
	}
	return ps[i], true
}

// pickGrouped balances over eligible campaigns, then over the chosen
// campaign's eligible promotions. A campaign's display count is the sum of
// its promotions' balancing counts. Campaigns without a selectable
// promotion do not take part.
func (s *Scheduler) pickGrouped(cat catalog, language, platform string, now time.Time) (promotion.Promotion, bool) {
	type candidate struct {
		campaign int
		eligible []int
	}

	var entries []balancer.Entry[candidate]
	for _, ci := range cat.index.Eligible(language, platform, now) {
		cp := cat.campaigns[ci]
		eligible := cat.inner[ci].Eligible(language, platform, now)
		if !anyPositiveWeight(cp.Promotions, eligible) {
			continue
		}
		entries = append(entries, balancer.Entry[candidate]{
			Item:     candidate{campaign: ci, eligible: eligible},
			Weight:   cp.Weight,
			Displays: campaignDisplays(cp, s.balancing),
		})
	}

	c, ok := balancer.Pick(entries)
	if !ok {
		return promotion.Promotion{}, false
	}
	return s.pickPromotion(cat.campaigns[c.campaign].Promotions, c.eligible)
}

func campaignDisplays(cp promotion.Campaign, st counter.Store) int {
	n := 0
	for _, p := range cp.Promotions {
		n += st.Get(p.ID)
	}
	return n
}

func anyPositiveWeight(ps []promotion.Promotion, eligible []int) bool {
	for _, i := range eligible {
		if ps[i].EffectiveWeight() > 0 {
			return true
		}
	}
	return false
}

// Stats returns cumulative display counts.
func (s *Scheduler) Stats() promotion.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cumulative.All()
}

// BalancingStats returns display counts of the current balancing window.
func (s *Scheduler) BalancingStats() promotion.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balancing.All()
}

// CampaignStats returns cumulative display counts per campaign, each the sum
// of its promotions' counts. It is empty for a flat catalog.
func (s *Scheduler) CampaignStats() promotion.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaignStats(s.cumulative)
}

// CampaignBalancingStats is CampaignStats over the current balancing window.
func (s *Scheduler) CampaignBalancingStats() promotion.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaignStats(s.balancing)
}

func (s *Scheduler) campaignStats(st counter.Store) promotion.Stats {
	cat, _ := s.catalog.Load()
	out := promotion.Stats{}
	for _, cp := range cat.campaigns {
		if n := campaignDisplays(cp, st); n > 0 {
			out[cp.ID] = n
		}
	}
	return out
}

// SetLanguage changes the language used by subsequent selections.
func (s *Scheduler) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// SetPlatform changes the platform used by subsequent selections.
func (s *Scheduler) SetPlatform(platform string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platform = platform
}

func (s *Scheduler) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Scheduler) Platform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform
}

func (s *Scheduler) LastBalancingReset() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBalancingReset
}

func (s *Scheduler) LastCumulativeReset() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCumulativeReset
}

// ResetState returns the reset bookkeeping, e.g. for persisting it elsewhere.
func (s *Scheduler) ResetState() ResetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetState()
}

// ConfigHash returns the fingerprint of the active catalog under
// ResetByContent; ok is false before the first Configure or under ResetByDate.
func (s *Scheduler) ConfigHash() (hash uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configHash, s.hasConfigHash
}

// Promotions returns the flat catalog, or every campaign's promotions in
// order when the catalog is grouped.
func (s *Scheduler) Promotions() []promotion.Promotion {
	cat, _ := s.catalog.Load()
	if len(cat.campaigns) == 0 {
		return append([]promotion.Promotion(nil), cat.promotions...)
	}
	out := make([]promotion.Promotion, 0, cat.size())
	for _, cp := range cat.campaigns {
		out = append(out, cp.Promotions...)
	}
	return out
}

// Campaigns returns the grouping layer of the active catalog, if any.
func (s *Scheduler) Campaigns() []promotion.Campaign {
	cat, _ := s.catalog.Load()
	return append([]promotion.Campaign(nil), cat.campaigns...)
}
