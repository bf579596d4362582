// Package pipeline implements the request pipeline (spec.md §4.6): the
// thin spine that runs on every agent tool call, composing the token
// engine, compiled policy, tool catalog, policy validator, query builder,
// statement executor, and approval subsystem in strict, fail-fast order.
// The first failing stage produces the outcome; no later stage's side
// effects run. Exactly one audit event is emitted per terminal outcome.
package pipeline

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/corisec/cori/internal/approval"
	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/db"
	"github.com/corisec/cori/internal/digest"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/querybuilder"
	"github.com/corisec/cori/internal/token"
	"github.com/corisec/cori/internal/validator"
)

// IDGenerator mints opaque audit event ids. Production wiring uses
// google/uuid, already a pack dependency; tests can substitute a
// deterministic sequence.
type IDGenerator func() string

// Clock returns the current time. Swappable for tests.
type Clock func() time.Time

// Pipeline owns everything request handling needs: the live compiled
// policy, the per-principal tool catalog cache, a statement executor
// bound to the database pool, the approval subsystem, and the audit
// sink. It holds no per-request state — every field here is either
// immutable or independently safe for concurrent use, per spec.md §5.
type Pipeline struct {
	PublicKey       ed25519.PublicKey
	Policy          *policy.Handle
	Catalog         *catalog.Cache
	Executor        statementExecutor
	Approval        *approval.Service
	Audit           audit.Writer
	NewID           IDGenerator
	Now             Clock
	ApprovalTimeout time.Duration
}

// Handle runs one tool call end to end, per spec.md §4.6's ten-step
// sequence. presentedToken is the credential a transport adapter already
// extracted (stdio env var, HTTP bearer header); this function owns
// everything from token verification onward. dryRun requests the
// no-commit preview variant (spec.md §4.5) instead of a committing
// execution; it is only meaningful for create/update/delete tools and
// bypasses the approval detour entirely, since nothing it does ever
// persists.
func (p *Pipeline) Handle(ctx context.Context, presentedToken, toolName string, arguments map[string]any, dryRun bool) Result {
	start := p.Now()
	argsDigest := digest.OfArguments(arguments)

	// Step 2: verify token.
	claims, err := token.Verify(presentedToken, p.PublicKey, p.Now())
	if err != nil {
		return p.finish(ctx, start, "", "", toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errUnauthenticated("token verification failed")))
	}
	if !claims.IsAttenuated() {
		// A base role token carries no tenant and is never usable for an
		// agent request (spec.md §4.1, §9 open question: rejection, not
		// a silent introspection mode).
		return p.finish(ctx, start, claims.Role, "", toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errUnauthenticated("base role tokens are not valid for agent requests")))
	}

	// Step 3: resolve role.
	effectivePolicy := p.Policy.Load()
	role, ok := effectivePolicy.Role(claims.Role)
	if !ok {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errUnauthorized("role not found")))
	}

	if err := ctx.Err(); err != nil {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errDeadlineExceeded()))
	}

	// Step 4: look up the tool descriptor for this principal's catalog.
	descriptors := p.Catalog.Get(role, effectivePolicy.Schema, claims.Tenant, claims.TableAllow)
	desc, ok := findDescriptor(descriptors, toolName)
	if !ok {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errUnauthorized("tool not found")))
	}

	tp, ok := role.Tables[desc.Table]
	if !ok {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errInternal("resolved tool descriptor references a table absent from the compiled policy")))
	}
	schemaTable, ok := effectivePolicy.Schema.Table(desc.Table)
	if !ok {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errInternal("resolved tool descriptor references a table absent from the schema")))
	}

	// Step 5: for update tools, fetch the current row (tenant-scoped,
	// read-column-scoped) before validation runs.
	var oldRow map[string]any
	var updateID string
	if desc.Operation == catalog.OpUpdate {
		updateID, _ = arguments["id"].(string)
		getStmt, err := querybuilder.BuildGet(tp, schemaTable, claims.Tenant, updateID)
		if err != nil {
			return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
		}
		row, err := p.Executor.QueryOne(ctx, getStmt)
		switch {
		case err == db.ErrNotFound:
			return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errUnauthorized("row not found")))
		case err != nil:
			return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errUpstreamUnavailable(err.Error())))
		}
		oldRow = row
	}

	if err := ctx.Err(); err != nil {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errDeadlineExceeded()))
	}

	// Step 6: validate.
	vr := dispatchValidate(desc, tp, schemaTable, arguments, oldRow)
	if vr.Outcome == validator.Denied {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, errInvalidArgument(vr.Violations)))
	}
	if desc.Operation == catalog.OpUpdate {
		// ValidateUpdate's ValidatedArgs carries only the changed columns;
		// the row id it applies to is carried separately until now so the
		// query builder's WHERE clause has it.
		vr.ValidatedArgs["id"] = updateID
	}

	// Step 7: dry-run preview or approval detour.
	if dryRun {
		if !desc.Annotations.DryRunSupported {
			return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeDenied, &Error{Kind: KindInvalidArgument, Message: "dry run is not supported for this tool"}))
		}
		return p.executeDryRun(ctx, start, claims, toolName, argsDigest, desc, tp, schemaTable, vr.ValidatedArgs)
	}
	if vr.Outcome == validator.NeedsApproval {
		return p.handleApproval(ctx, start, claims, toolName, argsDigest, desc, tp, schemaTable, vr)
	}

	// Steps 8-9: build and execute directly (Allowed).
	return p.buildAndExecute(ctx, start, claims, toolName, argsDigest, desc, tp, schemaTable, vr.ValidatedArgs, role, nil)
}

func findDescriptor(descriptors []catalog.ToolDescriptor, name string) (catalog.ToolDescriptor, bool) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return catalog.ToolDescriptor{}, false
}
