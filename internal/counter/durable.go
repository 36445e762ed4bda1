package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"promo-scheduler/internal/observability"
)

// Compile-time interface check.
var _ Store = (*Durable)(nil)

const defaultWriteTimeout = 2 * time.Second

// Durable is a Store whose map is loaded from a Backend at construction and
// written through after every mutation. The in-memory map is authoritative:
// when a write fails the store logs once, stops persisting and keeps
// counting in memory for the rest of the session.
type Durable struct {
	name    string
	backend Backend
	timeout time.Duration

	mu       sync.RWMutex
	counts   map[string]int
	degraded bool
}

// NewDurable loads the persisted map for name from b.
func NewDurable(ctx context.Context, name string, b Backend) (*Durable, error) {
	counts, err := b.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s counters: %w", name, err)
	}
	if counts == nil {
		counts = map[string]int{}
	}
	log.Debug().Str("store", name).Int("entries", len(counts)).Msg("counters restored")
	return &Durable{name: name, backend: b, timeout: defaultWriteTimeout, counts: counts}, nil
}

func (d *Durable) Increment(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts[id]++
	d.persist(func(ctx context.Context) error { return d.backend.Save(ctx, d.counts) })
}

func (d *Durable) Get(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counts[id]
}

func (d *Durable) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts = map[string]int{}
	d.persist(d.backend.Clear)
}

func (d *Durable) All() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyCounts(d.counts)
}

// Degraded reports whether persistence was abandoned after a write failure.
func (d *Durable) Degraded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.degraded
}

// persist runs write with a bounded context. Callers hold d.mu.
func (d *Durable) persist(write func(ctx context.Context) error) {
	if d.degraded {
		return
	}
	// detached from any caller context
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := write(ctx); err != nil {
		d.degraded = true
		observability.PersistErrors.WithLabelValues(d.name).Inc()
		log.Error().Err(err).Str("store", d.name).Msg("persist counters failed; continuing in memory")
	}
}
