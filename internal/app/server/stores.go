package server

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"promo-scheduler/internal/config"
	"promo-scheduler/internal/counter"
	"promo-scheduler/internal/scheduler"
)

const (
	balancingNamespace  = "balancing"
	cumulativeNamespace = "cumulative"
	resetsNamespace     = "resets"
)

// stores holds both counter horizons, the scheduler's reset bookkeeping and
// the connections behind them.
type stores struct {
	balancing  counter.Store
	cumulative counter.Store

	state      scheduler.StateStore // nil when counting in memory
	resetState scheduler.ResetState

	pool    *pgxpool.Pool // set for the postgres driver; reused by the listener
	closers []func() error
}

// openStores builds the counter stores for cfg.Storage.Driver. Any storage
// failure falls back to in-memory counters so selection keeps working.
func openStores(ctx context.Context, cfg config.Config) *stores {
	st := &stores{}
	driver := strings.ToLower(cfg.Storage.Driver)

	var bal, cum, resets counter.Backend
	switch driver {
	case "memory":
	case "file":
		b, c, r, err := fileBackends(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Msg("file counter storage unavailable")
			break
		}
		bal, cum, resets = b, c, r
	case "sqlite":
		db, err := counter.OpenSQLite(filepath.Join(cfg.Storage.Path, "counters.db"))
		if err != nil {
			log.Error().Err(err).Msg("sqlite counter storage unavailable")
			break
		}
		st.closers = append(st.closers, db.Close)
		bal = counter.NewSQLiteBackend(db, balancingNamespace)
		cum = counter.NewSQLiteBackend(db, cumulativeNamespace)
		resets = counter.NewSQLiteBackend(db, resetsNamespace)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr, DB: cfg.Storage.RedisDB})
		st.closers = append(st.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Str("addr", cfg.Storage.RedisAddr).Msg("redis counter storage unavailable")
			break
		}
		bal = counter.NewRedisBackend(client, balancingNamespace)
		cum = counter.NewRedisBackend(client, cumulativeNamespace)
		resets = counter.NewRedisBackend(client, resetsNamespace)
	case "postgres":
		pool, err := counter.OpenPostgres(ctx, cfg.DSN(), cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
		if err != nil {
			log.Error().Err(err).Msg("postgres counter storage unavailable")
			break
		}
		st.pool = pool
		st.closers = append(st.closers, func() error { pool.Close(); return nil })
		bal = counter.NewPostgresBackend(pool, balancingNamespace)
		cum = counter.NewPostgresBackend(pool, cumulativeNamespace)
		resets = counter.NewPostgresBackend(pool, resetsNamespace)
	default:
		log.Warn().Str("driver", driver).Msg("unknown storage driver; counting in memory")
	}

	st.restore(ctx, bal, cum, resets)
	_, durable := st.cumulative.(*counter.Durable)
	log.Info().Str("driver", driver).Bool("durable", durable).Msg("counter storage ready")
	return st
}

func fileBackends(dir string) (bal, cum, resets *counter.FileBackend, err error) {
	if bal, err = counter.NewFileBackend(filepath.Join(dir, balancingNamespace+".json")); err != nil {
		return nil, nil, nil, err
	}
	if cum, err = counter.NewFileBackend(filepath.Join(dir, cumulativeNamespace+".json")); err != nil {
		return nil, nil, nil, err
	}
	if resets, err = counter.NewFileBackend(filepath.Join(dir, resetsNamespace+".json")); err != nil {
		return nil, nil, nil, err
	}
	return bal, cum, resets, nil
}

// restore loads both horizons and the reset bookkeeping. They are restored
// together or not at all, and restored balancing counts never exceed
// cumulative ones; otherwise everything starts in memory.
func (s *stores) restore(ctx context.Context, bal, cum, resets counter.Backend) {
	s.balancing, s.cumulative = counter.NewMemory(), counter.NewMemory()
	if bal == nil || cum == nil || resets == nil {
		return
	}

	state := scheduler.NewBackendState(resets)
	rs, err := state.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("restore reset state; counting in memory")
		return
	}
	b, err := counter.NewDurable(ctx, balancingNamespace, bal)
	if err != nil {
		log.Error().Err(err).Msg("restore balancing counters; counting in memory")
		return
	}
	c, err := counter.NewDurable(ctx, cumulativeNamespace, cum)
	if err != nil {
		log.Error().Err(err).Msg("restore cumulative counters; counting in memory")
		return
	}

	if id, ok := exceeding(b.All(), c.All()); ok {
		// cumulative persistence stopped early in a previous session
		log.Warn().Str("promotion", id).Msg("restored balancing count exceeds cumulative; clearing balancing counters")
		b.Reset()
	}

	s.balancing, s.cumulative = b, c
	s.state, s.resetState = state, rs
}

func exceeding(balancing, cumulative map[string]int) (string, bool) {
	for id, n := range balancing {
		if n > cumulative[id] {
			return id, true
		}
	}
	return "", false
}

func (s *stores) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	if err != nil {
		return fmt.Errorf("close counter storage: %w", err)
	}
	return nil
}
