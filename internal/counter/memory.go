package counter

import "sync"

// Compile-time interface check.
var _ Store = (*Memory)(nil)

// Memory is an in-memory Store. Counts are lost on process restart.
type Memory struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewMemory() *Memory {
	return &Memory{counts: map[string]int{}}
}

func (m *Memory) Increment(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
}

func (m *Memory) Get(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[id]
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = map[string]int{}
}

func (m *Memory) All() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyCounts(m.counts)
}
