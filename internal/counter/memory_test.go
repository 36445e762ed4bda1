package counter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_IncrementAndReset(t *testing.T) {
	m := NewMemory()

	m.Increment("A1")
	m.Increment("A1")
	m.Increment("B1")

	assert.Equal(t, 2, m.Get("A1"))
	assert.Equal(t, 1, m.Get("B1"))
	assert.Equal(t, 0, m.Get("missing"))
	assert.Equal(t, map[string]int{"A1": 2, "B1": 1}, m.All())

	m.Reset()
	assert.Equal(t, 0, m.Get("A1"))
	assert.Equal(t, 0, m.Get("B1"))
	assert.Empty(t, m.All())
}

func TestMemory_AllIsACopy(t *testing.T) {
	m := NewMemory()
	m.Increment("A")

	all := m.All()
	all["A"] = 100

	assert.Equal(t, 1, m.Get("A"))
}

func TestMemory_ConcurrentIncrements(t *testing.T) {
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Increment("hot")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, m.Get("hot"))
}
