// Package transport implements the two thin agent-facing adapters spec.md
// §6 names: a length-framed stdio stream and an HTTP POST endpoint. Both
// do nothing but frame/unframe one JSON-RPC-style envelope and extract the
// caller's credential, then hand off to pipeline.Pipeline.Handle — neither
// adapter is part of the tested core contract (spec.md §1), but a runnable
// binary needs them.
package transport

import (
	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/db"
	"github.com/corisec/cori/internal/pipeline"
)

// request is the wire envelope a caller sends: a tool name and its
// arguments, exactly as spec.md §6 describes and exactly the shape the
// tool catalog's descriptors document.
type request struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	DryRun    bool           `json:"dry_run,omitempty"`
}

// response is the wire envelope returned: either a result or an error,
// never both.
type response struct {
	Result *wireResult `json:"result,omitempty"`
	Error  *wireError  `json:"error,omitempty"`
}

type wireResult struct {
	Outcome      audit.Outcome `json:"outcome"`
	Rows         []db.Row      `json:"rows,omitempty"`
	RowsAffected *int64        `json:"rows_affected,omitempty"`
	Before       []db.Row      `json:"before,omitempty"`
	After        []db.Row      `json:"after,omitempty"`
	ApprovalID   string        `json:"approval_id,omitempty"`
}

type wireViolation struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type wireError struct {
	Kind       string          `json:"kind"`
	Message    string          `json:"message"`
	Violations []wireViolation `json:"violations,omitempty"`
}

// toResponse translates a pipeline.Result into the wire envelope, per
// spec.md §7's error taxonomy: any outcome carrying an Err becomes
// {error: {kind, message}}, everything else becomes {result}.
func toResponse(result pipeline.Result) response {
	if result.Err != nil {
		werr := &wireError{Kind: string(result.Err.Kind), Message: result.Err.Message}
		for _, v := range result.Err.Violations {
			werr.Violations = append(werr.Violations, wireViolation{Field: v.Field, Kind: string(v.Kind), Message: v.Message})
		}
		return response{Error: werr}
	}
	return response{Result: &wireResult{
		Outcome:      result.Outcome,
		Rows:         result.Rows,
		RowsAffected: result.RowsAffected,
		Before:       result.Before,
		After:        result.After,
		ApprovalID:   result.ApprovalID,
	}}
}
