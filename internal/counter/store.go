// Package counter keeps per-promotion display counts.
//
// Two Store implementations exist: Memory, which lives only as long as the
// process, and Durable, which mirrors an in-memory map into a Backend after
// every mutation.
package counter

import "context"

// Store maps promotion ids to display counts. Implementations are safe for
// concurrent use.
type Store interface {
	// Increment adds one to the count of id.
	Increment(id string)

	// Get returns the count of id, 0 when unseen.
	Get(id string) int

	// Reset clears every count.
	Reset()

	// All returns a copy of every non-zero count.
	All() map[string]int
}

// Backend persists a whole counter map. Save must replace the stored map
// atomically so that an interrupted write never leaves a partial map behind.
// Backends do not own their connection; callers close it.
type Backend interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, counts map[string]int) error
	Clear(ctx context.Context) error
}

func copyCounts(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
