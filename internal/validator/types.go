// Package validator implements the policy validator (spec.md §4.4): given
// a tool invocation's raw arguments, the compiled per-column constraints,
// and (for updates) the current row, it decides Allowed, NeedsApproval, or
// Denied, evaluating presence, type, pattern, whitelist, state-transition,
// and approval constraints in that strict, short-circuiting order.
package validator

// OutcomeKind is the terminal shape of a validation decision.
type OutcomeKind string

const (
	Allowed      OutcomeKind = "allowed"
	NeedsApproval OutcomeKind = "needs_approval"
	Denied       OutcomeKind = "denied"
)

// ViolationKind names the specific constraint a field failed, surfaced to
// the agent per spec.md §7 (InvalidArgument carries field + constraint
// name so the agent can self-correct).
type ViolationKind string

const (
	UnknownField        ViolationKind = "UnknownField"
	MissingRequiredField ViolationKind = "MissingRequiredField"
	TypeMismatch         ViolationKind = "TypeMismatch"
	PatternViolation     ViolationKind = "PatternViolation"
	NotInWhitelist       ViolationKind = "NotInWhitelist"
	TransitionDisallowed ViolationKind = "TransitionDisallowed"
	SchemaViolation      ViolationKind = "SchemaViolation"
)

// Violation is one failed constraint on one field.
type Violation struct {
	Field   string
	Kind    ViolationKind
	Message string
}

// Result is the outcome of validating one invocation.
type Result struct {
	Outcome         OutcomeKind
	ValidatedArgs   map[string]any
	ApprovalReasons []string
	Violations      []Violation
}

func denied(v ...Violation) Result {
	return Result{Outcome: Denied, Violations: v}
}

func allowed(args map[string]any) Result {
	return Result{Outcome: Allowed, ValidatedArgs: args}
}

func needsApproval(args map[string]any, reasons []string) Result {
	return Result{Outcome: NeedsApproval, ValidatedArgs: args, ApprovalReasons: reasons}
}
