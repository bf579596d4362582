// Package audit implements the audit event model and delivery paths
// spec.md §6 describes: a structured record emitted for every terminal
// pipeline outcome, delivered best-effort to an external sink (ClickHouse)
// with a local-development log fallback. Digests, not raw values, carry
// the sensitive content (internal/digest).
package audit

import "time"

// Outcome is the terminal disposition an audit event records.
type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeDenied          Outcome = "denied"
	OutcomeApprovalPending Outcome = "approval_pending"
	OutcomeApproved        Outcome = "approved"
	OutcomeExecuted        Outcome = "executed"
	OutcomeFailed          Outcome = "failed"
)

// Event is the audit record spec.md §6 defines. SQLDigest is a pointer
// because it is set only once a statement was built (reads and mutations
// alike); RowsAffected because it is set only for mutation outcomes.
// ParentEventID links every event emitted after an approval detour
// (`approved`, `denied`, `executed`, `failed`) back to the
// `approval_pending` event that suspended it.
type Event struct {
	EventID         string
	OccurredAt      time.Time
	Tenant          string
	Role            string
	Tool            string
	ArgumentsDigest string
	Outcome         Outcome
	SQLDigest       *string
	RowsAffected    *int64
	DurationMS      float64
	ParentEventID   *string
}

// Writer is the audit delivery interface. Write must never block the
// caller — the pipeline's emit-on-terminal-outcome step is fire-and-forget
// (spec.md §6: "failure to emit does not fail the request").
type Writer interface {
	Write(event Event)
	Close()
}
