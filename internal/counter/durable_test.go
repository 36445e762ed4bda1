package counter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyBackend struct {
	loaded  map[string]int
	loadErr error
	saveErr error
	saves   int
	clears  int
}

func (f *flakyBackend) Load(context.Context) (map[string]int, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.loaded, nil
}

func (f *flakyBackend) Save(context.Context, map[string]int) error {
	f.saves++
	return f.saveErr
}

func (f *flakyBackend) Clear(context.Context) error {
	f.clears++
	return f.saveErr
}

func TestDurable_RestoresOnConstruction(t *testing.T) {
	b := &flakyBackend{loaded: map[string]int{"A": 3}}
	d, err := NewDurable(context.Background(), "balancing", b)
	require.NoError(t, err)

	assert.Equal(t, 3, d.Get("A"))
	d.Increment("A")
	assert.Equal(t, 4, d.Get("A"))
	assert.Equal(t, 1, b.saves)
}

func TestDurable_LoadError(t *testing.T) {
	b := &flakyBackend{loadErr: errors.New("disk gone")}
	_, err := NewDurable(context.Background(), "cumulative", b)
	require.Error(t, err)
	assert.ErrorIs(t, err, b.loadErr)
}

func TestDurable_DegradesButKeepsCounting(t *testing.T) {
	b := &flakyBackend{saveErr: errors.New("read-only filesystem")}
	d, err := NewDurable(context.Background(), "balancing", b)
	require.NoError(t, err)

	d.Increment("A")
	d.Increment("A")
	d.Increment("B")

	assert.True(t, d.Degraded())
	assert.Equal(t, 2, d.Get("A"))
	assert.Equal(t, 1, d.Get("B"))
	assert.Equal(t, 1, b.saves, "writes stop after the first failure")

	d.Reset()
	assert.Empty(t, d.All())
	assert.Equal(t, 0, b.clears)
}

func TestDurable_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters", "cumulative.json")
	ctx := context.Background()

	b, err := NewFileBackend(path)
	require.NoError(t, err)
	d, err := NewDurable(ctx, "cumulative", b)
	require.NoError(t, err)

	const n = 7
	for i := 0; i < n; i++ {
		d.Increment("promo-1")
	}
	d.Increment("promo-2")
	require.False(t, d.Degraded())

	b2, err := NewFileBackend(path)
	require.NoError(t, err)
	reloaded, err := NewDurable(ctx, "cumulative", b2)
	require.NoError(t, err)

	assert.Equal(t, n, reloaded.Get("promo-1"))
	assert.Equal(t, 1, reloaded.Get("promo-2"))

	reloaded.Reset()
	b3, err := NewFileBackend(path)
	require.NoError(t, err)
	afterReset, err := NewDurable(ctx, "cumulative", b3)
	require.NoError(t, err)
	assert.Empty(t, afterReset.All())
}
