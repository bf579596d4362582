package pipeline

import (
	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/db"
)

// Result is what the pipeline returns to a transport adapter for one tool
// call: exactly one of a row set (reads), a mutation summary (creates,
// updates, deletes), a dry-run preview, an approval handle, or an error.
type Result struct {
	Outcome      audit.Outcome
	Rows         []db.Row
	RowsAffected *int64
	Before       []db.Row
	After        []db.Row
	ApprovalID   string
	Err          *Error
}

func errorResult(outcome audit.Outcome, err *Error) Result {
	return Result{Outcome: outcome, Err: err}
}
