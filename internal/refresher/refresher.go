package refresher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"promo-scheduler/internal/fetcher"
	"promo-scheduler/internal/observability"
	"promo-scheduler/internal/scheduler"
)

// Refresher pulls configurations from a fetcher into a scheduler.
type Refresher struct {
	fetcher fetcher.ConfigFetcher
	sched   *scheduler.Scheduler

	mu sync.Mutex // one refresh at a time
}

func New(f fetcher.ConfigFetcher, s *scheduler.Scheduler) *Refresher {
	return &Refresher{fetcher: f, sched: s}
}

// Refresh fetches once and configures the scheduler. On error the
// scheduler keeps its current catalog.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasReset, err := r.sched.UpdateConfig(ctx, r.fetcher)
	if err != nil {
		observability.FetchErrors.WithLabelValues(fetcher.Kind(err)).Inc()
		return false, err
	}
	log.Info().
		Int("promotions", len(r.sched.Promotions())).
		Bool("reset", wasReset).
		Msg("configuration refreshed")
	return wasReset, nil
}

// Run refreshes immediately, then every interval until ctx is done. A failed
// refresh is retried after a jittered backoff instead of the full interval.
func (r *Refresher) Run(ctx context.Context, interval, backoff time.Duration) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("refresher stopped")
			return
		case <-timer.C:
			next := interval
			if _, err := r.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				next = jitter(backoff)
				log.Error().Err(err).Str("kind", fetcher.Kind(err)).Dur("retry_in", next).Msg("refresh config")
			}
			timer.Reset(next)
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
