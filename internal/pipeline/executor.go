package pipeline

import (
	"context"

	"github.com/corisec/cori/internal/db"
	"github.com/corisec/cori/internal/querybuilder"
)

// statementExecutor is the subset of *db.Executor's API the pipeline
// needs, abstracted the same way internal/approval depends on a
// requestStore interface rather than *approval.Store directly: it lets
// Handle's control flow be tested against an in-memory fake without a
// live Postgres connection.
type statementExecutor interface {
	QueryOne(ctx context.Context, stmt querybuilder.PreparedStatement) (db.Row, error)
	QueryMany(ctx context.Context, stmt querybuilder.PreparedStatement) ([]db.Row, error)
	ExecuteMutation(ctx context.Context, stmt querybuilder.PreparedStatement, maxAffectedRows *int) (db.MutationResult, error)
	DryRun(ctx context.Context, stmt querybuilder.PreparedStatement, beforeQuery, afterQuery *querybuilder.PreparedStatement) (db.MutationResult, error)
}
