// Package policy compiles parsed configuration (package config) into one
// immutable EffectivePolicy: for each role, a table-by-table permission
// matrix with resolved tenancy plans, column sets, and normalized
// constraints. Compilation either succeeds completely or fails with a list
// of diagnostics; there is no partial policy.
package policy

import "fmt"

// DiagnosticKind classifies one compilation failure or warning.
type DiagnosticKind string

const (
	MissingTable                  DiagnosticKind = "MissingTable"
	MissingColumn                 DiagnosticKind = "MissingColumn"
	UnknownGroup                  DiagnosticKind = "UnknownGroup"
	UnknownType                   DiagnosticKind = "UnknownType"
	TenantColumnMissing            DiagnosticKind = "TenantColumnMissing"
	InheritedTenantCycle           DiagnosticKind = "InheritedTenantCycle"
	InheritedTenantTooDeep         DiagnosticKind = "InheritedTenantTooDeep"
	RequiredNonNullMissing         DiagnosticKind = "RequiredNonNullMissing"
	SoftDeleteInconsistency        DiagnosticKind = "SoftDeleteInconsistency"
	ConstraintRefersUnknownColumn  DiagnosticKind = "ConstraintRefersUnknownColumn"
	GlobalTableTenancyConflict     DiagnosticKind = "GlobalTableTenancyConflict"
)

// Severity distinguishes a hard compilation failure from an advisory
// warning (spec.md §4.2: soft-delete declared but a role deletes hard on
// that table is a warning, not an error).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one compiler finding with a human-addressable pointer,
// e.g. "roles/support_agent.tables.customers.create.email".
type Diagnostic struct {
	Kind     DiagnosticKind
	Severity Severity
	Pointer  string
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s] %s: %s", d.Severity, d.Kind, d.Pointer, d.Message)
}

// CompileError is returned by Compile when at least one error-severity
// diagnostic was produced. Warnings do not prevent compilation and are
// carried on the resulting EffectivePolicy instead.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].String()
	}
	return fmt.Sprintf("policy compilation failed with %d diagnostics (first: %s)", len(e.Diagnostics), e.Diagnostics[0])
}

type diagCollector struct {
	diags []Diagnostic
}

func (c *diagCollector) err(kind DiagnosticKind, pointer, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Kind: kind, Severity: SeverityError, Pointer: pointer, Message: fmt.Sprintf(format, args...)})
}

func (c *diagCollector) warn(kind DiagnosticKind, pointer, format string, args ...any) {
	c.diags = append(c.diags, Diagnostic{Kind: kind, Severity: SeverityWarning, Pointer: pointer, Message: fmt.Sprintf(format, args...)})
}

func (c *diagCollector) hasErrors() bool {
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
