package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface check.
var _ Backend = (*PostgresBackend)(nil)

// OpenPostgres creates a pool for dsn and makes sure the counters table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns, minConns int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MinConns = int32(minConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, counterSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create counters table: %w", err)
	}
	return pool, nil
}

// PostgresBackend stores one namespace of counters in the promotion_counters table.
type PostgresBackend struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewPostgresBackend(pool *pgxpool.Pool, namespace string) *PostgresBackend {
	return &PostgresBackend{pool: pool, namespace: namespace}
}

func (p *PostgresBackend) Load(ctx context.Context) (map[string]int, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT promotion_id, count FROM promotion_counters WHERE namespace = $1`, p.namespace)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			id    string
			count int64
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		counts[id] = int(count)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return counts, nil
}

// Save replaces the namespace's rows inside one transaction using COPY.
func (p *PostgresBackend) Save(ctx context.Context, counts map[string]int) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM promotion_counters WHERE namespace = $1`, p.namespace); err != nil {
		return fmt.Errorf("clear counters: %w", err)
	}

	rows := make([][]any, 0, len(counts))
	for id, n := range counts {
		rows = append(rows, []any{p.namespace, id, int64(n)})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"promotion_counters"},
			[]string{"namespace", "promotion_id", "count"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy counters: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresBackend) Clear(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM promotion_counters WHERE namespace = $1`, p.namespace); err != nil {
		return fmt.Errorf("clear counters: %w", err)
	}
	return nil
}
