package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corisec/cori/internal/querybuilder"
)

// ErrRowCapExceeded is returned when a mutation affects more rows than the
// role's configured maximum, per spec.md §4.5's row-cap check. The caller
// (internal/pipeline) translates this into the RowCapExceeded outcome.
var ErrRowCapExceeded = errors.New("db: row cap exceeded")

// MutationResult is the outcome of a committed or dry-run mutation.
type MutationResult struct {
	RowsAffected int64
	Before       []Row
	After        []Row
}

// ExecuteMutation runs stmt inside a single transaction, enforcing the
// row-cap check before commit: spec.md §4.5 requires the transaction to
// roll back, not commit, when rows affected exceeds maxAffectedRows. A nil
// maxAffectedRows means uncapped.
func (e *Executor) ExecuteMutation(ctx context.Context, stmt querybuilder.PreparedStatement, maxAffectedRows *int) (MutationResult, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return MutationResult{}, fmt.Errorf("db: beginning transaction for %s: %w", stmt.Table, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return MutationResult{}, fmt.Errorf("db: executing %s: %w", stmt.Table, err)
	}
	affected := tag.RowsAffected()

	if maxAffectedRows != nil && affected > int64(*maxAffectedRows) {
		return MutationResult{RowsAffected: affected}, ErrRowCapExceeded
	}

	if err := tx.Commit(ctx); err != nil {
		return MutationResult{}, fmt.Errorf("db: committing %s: %w", stmt.Table, err)
	}
	return MutationResult{RowsAffected: affected}, nil
}

// DryRun executes stmt inside a transaction that always rolls back,
// collecting a before/after sample via beforeQuery and afterQuery (both
// read statements scoped identically to stmt's affected row), per spec.md
// §4.5's "no-commit dry-run variant" requirement. Neither query nor stmt
// ever commits; the connection returns to the pool exactly as if the
// mutation never happened.
//
// A create's stmt carries a RETURNING clause instead of a beforeQuery/
// afterQuery pair (there is no row to sample before the insert runs), so
// stmt itself is queried rather than exec'd and its returned row becomes
// the after-sample.
func (e *Executor) DryRun(ctx context.Context, stmt querybuilder.PreparedStatement, beforeQuery, afterQuery *querybuilder.PreparedStatement) (MutationResult, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return MutationResult{}, fmt.Errorf("db: beginning dry-run transaction for %s: %w", stmt.Table, err)
	}
	defer tx.Rollback(ctx)

	var before []Row
	if beforeQuery != nil {
		before, err = queryManyTx(ctx, tx, *beforeQuery)
		if err != nil {
			return MutationResult{}, err
		}
	}

	if len(stmt.Columns) > 0 {
		after, err := queryManyTx(ctx, tx, stmt)
		if err != nil {
			return MutationResult{}, fmt.Errorf("db: executing dry-run %s: %w", stmt.Table, err)
		}
		return MutationResult{RowsAffected: int64(len(after)), Before: before, After: after}, nil
	}

	tag, err := tx.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return MutationResult{}, fmt.Errorf("db: executing dry-run %s: %w", stmt.Table, err)
	}

	var after []Row
	if afterQuery != nil {
		after, err = queryManyTx(ctx, tx, *afterQuery)
		if err != nil {
			return MutationResult{}, err
		}
	}

	// The deferred Rollback above always runs; dry runs never commit.
	return MutationResult{RowsAffected: tag.RowsAffected(), Before: before, After: after}, nil
}

func queryManyTx(ctx context.Context, tx pgx.Tx, stmt querybuilder.PreparedStatement) ([]Row, error) {
	rows, err := tx.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("db: querying dry-run sample for %s: %w", stmt.Table, err)
	}
	defer rows.Close()

	var results []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("db: scanning dry-run sample for %s: %w", stmt.Table, err)
		}
		results = append(results, rowFromValues(stmt.Columns, values))
	}
	return results, rows.Err()
}
