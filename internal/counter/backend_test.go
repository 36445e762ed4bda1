package counter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteBackends(t *testing.T) (balancing, cumulative *SQLiteBackend) {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "counters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteBackend(db, "balancing"), NewSQLiteBackend(db, "cumulative")
}

func newTestRedisBackends(t *testing.T) (balancing, cumulative *RedisBackend) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBackend(client, "balancing"), NewRedisBackend(client, "cumulative")
}

func newTestFileBackends(t *testing.T) (balancing, cumulative *FileBackend) {
	t.Helper()
	dir := t.TempDir()
	b, err := NewFileBackend(filepath.Join(dir, "balancing.json"))
	require.NoError(t, err)
	c, err := NewFileBackend(filepath.Join(dir, "cumulative.json"))
	require.NoError(t, err)
	return b, c
}

// exerciseBackend checks save/load/clear semantics and namespace isolation.
func exerciseBackend(t *testing.T, a, b Backend) {
	ctx := context.Background()

	got, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, a.Save(ctx, map[string]int{"A": 2, "B": 5}))
	require.NoError(t, b.Save(ctx, map[string]int{"A": 9}))

	got, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 2, "B": 5}, got)

	// a save replaces, it does not merge
	require.NoError(t, a.Save(ctx, map[string]int{"C": 1}))
	got, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"C": 1}, got)

	require.NoError(t, a.Clear(ctx))
	got, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 9}, got)

	require.NoError(t, a.Save(ctx, map[string]int{}))
	got, err = a.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackends(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		a, b := newTestFileBackends(t)
		exerciseBackend(t, a, b)
	})
	t.Run("sqlite", func(t *testing.T) {
		a, b := newTestSQLiteBackends(t)
		exerciseBackend(t, a, b)
	})
	t.Run("redis", func(t *testing.T) {
		a, b := newTestRedisBackends(t)
		exerciseBackend(t, a, b)
	})
	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("APP_TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("APP_TEST_POSTGRES_DSN not set")
		}
		pool, err := OpenPostgres(context.Background(), dsn, 2, 1)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		a := NewPostgresBackend(pool, "test-balancing")
		b := NewPostgresBackend(pool, "test-cumulative")
		require.NoError(t, a.Clear(context.Background()))
		require.NoError(t, b.Clear(context.Background()))
		exerciseBackend(t, a, b)
	})
}

func TestDurable_SQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counters.db")
	ctx := context.Background()

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	d, err := NewDurable(ctx, "cumulative", NewSQLiteBackend(db, "cumulative"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		d.Increment("promo")
	}
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	reloaded, err := NewDurable(ctx, "cumulative", NewSQLiteBackend(db, "cumulative"))
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.Get("promo"))
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	b, err := NewFileBackend(path)
	require.NoError(t, err)
	_, err = b.Load(context.Background())
	assert.Error(t, err)
}
