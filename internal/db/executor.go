// Package db executes querybuilder.PreparedStatements against Postgres
// through a pgxpool.Pool, the same connection-pool idiom used across the
// pack's pgx-based stores: QueryRow/Query, pgx.ErrNoRows translated to a
// domain error, and every failure wrapped with context via fmt.Errorf.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corisec/cori/internal/querybuilder"
)

// ErrNotFound is returned when a single-row fetch matches no row — either
// the id does not exist or it exists outside the caller's tenant/scope,
// which from the agent's perspective must look identical.
var ErrNotFound = errors.New("db: row not found")

// Executor runs PreparedStatements against a Postgres connection pool.
type Executor struct {
	pool *pgxpool.Pool
}

// NewExecutor wraps an already-constructed pool. Pool lifecycle (Connect,
// Close) is the caller's responsibility: the pool is built once in main and
// injected into every store that needs it.
func NewExecutor(pool *pgxpool.Pool) *Executor {
	return &Executor{pool: pool}
}

// Row is one result row, keyed by projected column name.
type Row map[string]any

// QueryOne runs a StatementReadOne statement and scans its single row.
func (e *Executor) QueryOne(ctx context.Context, stmt querybuilder.PreparedStatement) (Row, error) {
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("db: querying %s: %w", stmt.Table, err)
	}
	defer rows.Close()

	row, err := scanOne(rows, stmt.Columns)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

// QueryMany runs a StatementReadMany statement and scans every row.
func (e *Executor) QueryMany(ctx context.Context, stmt querybuilder.PreparedStatement) ([]Row, error) {
	rows, err := e.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("db: querying %s: %w", stmt.Table, err)
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("db: scanning %s row: %w", stmt.Table, err)
		}
		results = append(results, rowFromValues(stmt.Columns, values))
	}
	return results, rows.Err()
}

// Exec runs a StatementCreate/StatementUpdate/StatementDelete and reports
// the number of rows affected.
func (e *Executor) Exec(ctx context.Context, stmt querybuilder.PreparedStatement) (int64, error) {
	tag, err := e.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, fmt.Errorf("db: executing %s: %w", stmt.Table, err)
	}
	return tag.RowsAffected(), nil
}

func scanOne(rows pgx.Rows, columns []string) (Row, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("db: fetching row: %w", err)
		}
		return nil, ErrNotFound
	}
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("db: scanning row: %w", err)
	}
	return rowFromValues(columns, values), nil
}

func rowFromValues(columns []string, values []any) Row {
	row := make(Row, len(columns))
	for i, c := range columns {
		if i < len(values) {
			row[c] = values[i]
		}
	}
	return row
}
