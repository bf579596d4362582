package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/db"
	"github.com/corisec/cori/internal/digest"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/querybuilder"
	"github.com/corisec/cori/internal/token"
)

// buildAndExecute implements spec.md §4.6 steps 8-9: render a
// PreparedStatement for validatedArgs and run it, then step 10's audit
// emission. parentEventID is non-nil only when this call resumed after an
// approval, so the executed/failed event can link back to it.
func (p *Pipeline) buildAndExecute(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID *string) Result {
	switch desc.Operation {
	case catalog.OpReadOne:
		return p.executeReadOne(ctx, start, claims, toolName, argsDigest, tp, schemaTable, validatedArgs, parentEventID)
	case catalog.OpReadMany:
		return p.executeReadMany(ctx, start, claims, toolName, argsDigest, tp, schemaTable, validatedArgs, role, parentEventID)
	case catalog.OpCreate:
		return p.executeCreate(ctx, start, claims, toolName, argsDigest, tp, schemaTable, validatedArgs, role, parentEventID)
	case catalog.OpUpdate:
		return p.executeUpdate(ctx, start, claims, toolName, argsDigest, tp, schemaTable, validatedArgs, role, parentEventID)
	case catalog.OpDelete:
		return p.executeDelete(ctx, start, claims, toolName, argsDigest, tp, schemaTable, validatedArgs, role, parentEventID)
	default:
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal("unrecognized tool operation")))
	}
}

func (p *Pipeline) executeReadOne(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, parentEventID *string) Result {
	id, _ := validatedArgs["id"].(string)
	stmt, err := querybuilder.BuildGet(tp, schemaTable, claims.Tenant, id)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	sqlDigest := digest.OfString(stmt.SQL)

	row, err := p.Executor.QueryOne(ctx, stmt)
	switch {
	case err == db.ErrNotFound:
		return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, errorResult(audit.OutcomeDenied, errUnauthorized("row not found")))
	case err != nil:
		return p.readFailure(ctx, start, claims, toolName, argsDigest, sqlDigest, parentEventID, err)
	}
	return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, Result{Outcome: audit.OutcomeAllowed, Rows: []db.Row{row}})
}

func (p *Pipeline) executeReadMany(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID *string) Result {
	filters, _ := validatedArgs["filters"].(map[string]any)
	limit := asIntPtr(validatedArgs["limit"])
	offset := asInt(validatedArgs["offset"])

	stmt, err := querybuilder.BuildList(tp, schemaTable, claims.Tenant, filters, limit, offset, role.DefaultPageSize)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	sqlDigest := digest.OfString(stmt.SQL)

	rows, err := p.Executor.QueryMany(ctx, stmt)
	if err != nil {
		return p.readFailure(ctx, start, claims, toolName, argsDigest, sqlDigest, parentEventID, err)
	}
	return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, Result{Outcome: audit.OutcomeAllowed, Rows: rows})
}

func (p *Pipeline) executeCreate(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID *string) Result {
	stmt, err := querybuilder.BuildCreate(tp, schemaTable, claims.Tenant, validatedArgs)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	return p.executeMutation(ctx, start, claims, toolName, argsDigest, stmt, role, parentEventID)
}

func (p *Pipeline) executeUpdate(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID *string) Result {
	id, _ := validatedArgs["id"].(string)
	data := map[string]any{}
	for k, v := range validatedArgs {
		if k == "id" {
			continue
		}
		data[k] = v
	}
	stmt, err := querybuilder.BuildUpdate(tp, schemaTable, claims.Tenant, id, data)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	return p.executeMutation(ctx, start, claims, toolName, argsDigest, stmt, role, parentEventID)
}

func (p *Pipeline) executeDelete(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID *string) Result {
	id, _ := validatedArgs["id"].(string)
	stmt, err := querybuilder.BuildDelete(tp, schemaTable, claims.Tenant, id)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, parentEventID, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	return p.executeMutation(ctx, start, claims, toolName, argsDigest, stmt, role, parentEventID)
}

// executeDryRun implements the no-commit preview path for create/update/
// delete tools (spec.md §4.5): it renders the same statement a committing
// call would, plus before/after row samples, runs it inside a transaction
// that always rolls back, and reports the result as Allowed since nothing
// persisted — there is no approval or execution to gate on a preview.
func (p *Pipeline) executeDryRun(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any) Result {
	var kind querybuilder.StatementKind
	switch desc.Operation {
	case catalog.OpCreate:
		kind = querybuilder.StatementCreate
	case catalog.OpUpdate:
		kind = querybuilder.StatementUpdate
	case catalog.OpDelete:
		kind = querybuilder.StatementDelete
	default:
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, nil, errorResult(audit.OutcomeFailed, errInternal("dry run requested for an operation that does not support it")))
	}

	id, _ := validatedArgs["id"].(string)
	data := map[string]any{}
	for k, v := range validatedArgs {
		if k == "id" {
			continue
		}
		data[k] = v
	}

	dr, err := querybuilder.BuildDryRun(kind, tp, schemaTable, claims.Tenant, id, data)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, nil, nil, errorResult(audit.OutcomeFailed, errInternal(err.Error())))
	}
	sqlDigest := digest.OfString(dr.Statement.SQL)

	mutation, err := p.Executor.DryRun(ctx, dr.Statement, dr.Before, dr.After)
	if err != nil {
		return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, nil, errorResult(audit.OutcomeFailed, errUpstreamUnavailable(err.Error())))
	}
	affected := mutation.RowsAffected
	return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, nil, Result{
		Outcome:      audit.OutcomeAllowed,
		RowsAffected: &affected,
		Before:       mutation.Before,
		After:        mutation.After,
	})
}

// executeMutation implements the shared create/update/delete tail: run
// stmt inside a transaction with the role's row cap enforced, per
// spec.md §4.5's "row caps" requirement.
func (p *Pipeline) executeMutation(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, stmt querybuilder.PreparedStatement, role policy.EffectiveRole, parentEventID *string) Result {
	sqlDigest := digest.OfString(stmt.SQL)

	mutation, err := p.Executor.ExecuteMutation(ctx, stmt, role.MaxAffectedRows)
	affected := mutation.RowsAffected
	switch {
	case isRowCapExceeded(err):
		return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, Result{Outcome: audit.OutcomeFailed, RowsAffected: &affected, Err: errRowCapExceeded("mutation affected more rows than this role's configured maximum")})
	case err != nil:
		return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, errorResult(audit.OutcomeFailed, errUpstreamUnavailable(err.Error())))
	}
	return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, Result{Outcome: audit.OutcomeExecuted, RowsAffected: &affected})
}

// finishParented is finish with an optional ParentEventID thread-through,
// used by every execute* path since only these can be resuming after an
// approval.
func (p *Pipeline) finishParented(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, sqlDigest *string, parentEventID *string, result Result) Result {
	_ = ctx
	p.emit(audit.Event{
		EventID:         p.NewID(),
		OccurredAt:      p.Now(),
		Tenant:          claims.Tenant,
		Role:            claims.Role,
		Tool:            toolName,
		ArgumentsDigest: argsDigest,
		Outcome:         result.Outcome,
		SQLDigest:       sqlDigest,
		RowsAffected:    result.RowsAffected,
		DurationMS:      durationMS(start, p.Now()),
		ParentEventID:   parentEventID,
	})
	return result
}

func (p *Pipeline) readFailure(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest, sqlDigest string, parentEventID *string, err error) Result {
	return p.finishParented(ctx, start, claims, toolName, argsDigest, &sqlDigest, parentEventID, errorResult(audit.OutcomeFailed, errUpstreamUnavailable(err.Error())))
}

func isRowCapExceeded(err error) bool {
	return errors.Is(err, db.ErrRowCapExceeded)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asIntPtr(v any) *int {
	if v == nil {
		return nil
	}
	n := asInt(v)
	return &n
}
