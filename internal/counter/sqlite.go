package counter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ Backend = (*SQLiteBackend)(nil)

const counterSchema = `
	CREATE TABLE IF NOT EXISTS promotion_counters (
		namespace    TEXT    NOT NULL,
		promotion_id TEXT    NOT NULL,
		count        BIGINT  NOT NULL DEFAULT 0,
		PRIMARY KEY (namespace, promotion_id)
	)`

// OpenSQLite opens (or creates) the database at path and creates the
// counters table. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		clean := filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = clean + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(counterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create counters table: %w", err)
	}
	return db, nil
}

// SQLiteBackend stores one namespace of counters in the promotion_counters table.
type SQLiteBackend struct {
	db        *sql.DB
	namespace string
}

func NewSQLiteBackend(db *sql.DB, namespace string) *SQLiteBackend {
	return &SQLiteBackend{db: db, namespace: namespace}
}

func (s *SQLiteBackend) Load(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT promotion_id, count FROM promotion_counters WHERE namespace = ?`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// Save replaces the namespace's rows inside one transaction.
func (s *SQLiteBackend) Save(ctx context.Context, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM promotion_counters WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("clear counters: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO promotion_counters (namespace, promotion_id, count) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, count := range counts {
		if _, err := stmt.ExecContext(ctx, s.namespace, id, count); err != nil {
			return fmt.Errorf("insert counter %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteBackend) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM promotion_counters WHERE namespace = ?`, s.namespace)
	return err
}
