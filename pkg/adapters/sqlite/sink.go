// Package sqlite persists head-of-trace records to a SQLite database, one
// file per chain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	iteration  INTEGER NOT NULL,
	parameter  TEXT    NOT NULL,
	component  INTEGER NOT NULL,
	value      REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_draws_param ON draws (parameter, iteration, component);
`

// Sink implements ports.TraceSink on a SQLite file.
type Sink struct {
	db   *sql.DB
	path string
}

var _ ports.TraceSink = (*Sink)(nil)

// New opens (or creates) the database at path and runs the migration.
func New(path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Sink{db: db, path: path}, nil
}

// Path returns the backing file path.
func (s *Sink) Path() string { return s.path }

// WriteHead appends one completed iteration, one row per vector component,
// inside a single transaction.
func (s *Sink) WriteHead(ctx context.Context, iteration int, rec domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO draws (iteration, parameter, component, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	names := make([]string, 0, len(rec))
	for name := range rec {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for comp, value := range rec[name] {
			if _, err := stmt.ExecContext(ctx, iteration, name, comp, value); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert %s[%d]: %w", name, comp, err)
			}
		}
	}
	return tx.Commit()
}

// Fork opens an independent sink whose file name gains the chain index
// suffix (trace.db -> trace_0.db).
func (s *Sink) Fork(index int) (ports.TraceSink, error) {
	return New(ForkPath(s.path, index))
}

// Close closes the database connection.
func (s *Sink) Close() error { return s.db.Close() }

// ForkPath derives the per-chain file name used by Fork.
func ForkPath(path string, index int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), index, ext)
}

// ReadSeries loads the appended sequence for one parameter from a sink file,
// in iteration order. Used to replay a persisted run.
func ReadSeries(ctx context.Context, path, param string) ([]domain.Vector, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT iteration, component, value FROM draws WHERE parameter = ? ORDER BY iteration, component",
		param)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", param, err)
	}
	defer rows.Close()

	var out []domain.Vector
	lastIter := -1
	for rows.Next() {
		var iter, comp int
		var value float64
		if err := rows.Scan(&iter, &comp, &value); err != nil {
			return nil, err
		}
		if iter != lastIter {
			out = append(out, domain.Vector{})
			lastIter = iter
		}
		out[len(out)-1] = append(out[len(out)-1], value)
	}
	return out, rows.Err()
}
