package scheduler

import (
	"context"
	"fmt"
	"time"

	"promo-scheduler/internal/counter"
)

// ResetState is the reset bookkeeping of a Scheduler. It has to outlive the
// process whenever the counters do, otherwise the first Configure after a
// restart clears counts for markers that were already applied.
type ResetState struct {
	LastBalancingReset  time.Time
	LastCumulativeReset time.Time
	ConfigHash          uint64
	HasConfigHash       bool
}

// StateStore persists ResetState.
type StateStore interface {
	Load(ctx context.Context) (ResetState, error)
	Save(ctx context.Context, st ResetState) error
}

// Compile-time interface check.
var _ StateStore = (*BackendState)(nil)

const (
	keyBalancingReset  = "balancing_reset_unix_nano"
	keyCumulativeReset = "cumulative_reset_unix_nano"
	keyConfigHash      = "config_hash"
)

// BackendState keeps a ResetState in a counter.Backend namespace of its own,
// next to the counters it describes. Times are stored as Unix nanoseconds.
type BackendState struct {
	backend counter.Backend
}

func NewBackendState(b counter.Backend) *BackendState {
	return &BackendState{backend: b}
}

func (b *BackendState) Load(ctx context.Context) (ResetState, error) {
	m, err := b.backend.Load(ctx)
	if err != nil {
		return ResetState{}, fmt.Errorf("load reset state: %w", err)
	}

	var st ResetState
	if v, ok := m[keyBalancingReset]; ok {
		st.LastBalancingReset = time.Unix(0, int64(v)).UTC()
	}
	if v, ok := m[keyCumulativeReset]; ok {
		st.LastCumulativeReset = time.Unix(0, int64(v)).UTC()
	}
	if v, ok := m[keyConfigHash]; ok {
		st.ConfigHash, st.HasConfigHash = uint64(int64(v)), true
	}
	return st, nil
}

func (b *BackendState) Save(ctx context.Context, st ResetState) error {
	m := make(map[string]int, 3)
	if !st.LastBalancingReset.IsZero() {
		m[keyBalancingReset] = int(st.LastBalancingReset.UnixNano())
	}
	if !st.LastCumulativeReset.IsZero() {
		m[keyCumulativeReset] = int(st.LastCumulativeReset.UnixNano())
	}
	if st.HasConfigHash {
		m[keyConfigHash] = int(int64(st.ConfigHash))
	}
	if err := b.backend.Save(ctx, m); err != nil {
		return fmt.Errorf("save reset state: %w", err)
	}
	return nil
}
