package pipeline

import (
	"context"
	"time"

	"github.com/corisec/cori/internal/approval"
	"github.com/corisec/cori/internal/audit"
	"github.com/corisec/cori/internal/catalog"
	"github.com/corisec/cori/internal/config"
	"github.com/corisec/cori/internal/policy"
	"github.com/corisec/cori/internal/token"
	"github.com/corisec/cori/internal/validator"
)

// handleApproval implements spec.md §4.6 step 7: file a PendingApproval,
// emit the approval_pending audit event, and return a placeholder result
// to the caller immediately. A detached goroutine then owns the rest of
// this call's lifetime — it waits on the rendezvous (spec.md §9: "do not
// hold a database transaction across the wait") and, once a human
// decision arrives, resumes at step 8 and emits the terminal audit event,
// linked back to the approval_pending event via ParentEventID.
func (p *Pipeline) handleApproval(ctx context.Context, start time.Time, claims token.Claims, toolName, argsDigest string, desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, vr validator.Result) Result {
	req, err := p.Approval.File(ctx, toolName, claims.Role, claims.Tenant, vr.ValidatedArgs, vr.ApprovalReasons)
	if err != nil {
		return p.finish(ctx, start, claims.Role, claims.Tenant, toolName, argsDigest, nil, errorResult(audit.OutcomeFailed, errUpstreamUnavailable(err.Error())))
	}

	pendingEventID := p.NewID()
	p.emit(audit.Event{
		EventID:         pendingEventID,
		OccurredAt:      p.Now(),
		Tenant:          claims.Tenant,
		Role:            claims.Role,
		Tool:            toolName,
		ArgumentsDigest: argsDigest,
		Outcome:         audit.OutcomeApprovalPending,
		DurationMS:      durationMS(start, p.Now()),
	})

	role, _ := p.Policy.Load().Role(claims.Role)
	go p.resumeAfterApproval(req, claims, toolName, argsDigest, desc, tp, schemaTable, vr.ValidatedArgs, role, pendingEventID)

	return Result{Outcome: audit.OutcomeApprovalPending, ApprovalID: req.ID}
}

// resumeAfterApproval runs on its own goroutine, detached from the
// original request's context (which may already have returned to its
// caller by the time a human resolves the request), awaiting resolution
// with the pipeline's configured approval timeout.
func (p *Pipeline) resumeAfterApproval(req approval.Request, claims token.Claims, toolName, argsDigest string, desc catalog.ToolDescriptor, tp policy.EffectiveTablePolicy, schemaTable config.TableSchema, validatedArgs map[string]any, role policy.EffectiveRole, parentEventID string) {
	ctx := context.Background()
	start := p.Now()

	decision, err := p.Approval.Await(ctx, req.ID, p.ApprovalTimeout)
	if err != nil {
		p.emit(audit.Event{
			EventID:         p.NewID(),
			OccurredAt:      p.Now(),
			Tenant:          claims.Tenant,
			Role:            claims.Role,
			Tool:            toolName,
			ArgumentsDigest: argsDigest,
			Outcome:         audit.OutcomeFailed,
			DurationMS:      durationMS(start, p.Now()),
			ParentEventID:   &parentEventID,
		})
		return
	}

	if decision == approval.DecisionDenied {
		p.emit(audit.Event{
			EventID:         p.NewID(),
			OccurredAt:      p.Now(),
			Tenant:          claims.Tenant,
			Role:            claims.Role,
			Tool:            toolName,
			ArgumentsDigest: argsDigest,
			Outcome:         audit.OutcomeDenied,
			DurationMS:      durationMS(start, p.Now()),
			ParentEventID:   &parentEventID,
		})
		return
	}

	p.emit(audit.Event{
		EventID:         p.NewID(),
		OccurredAt:      p.Now(),
		Tenant:          claims.Tenant,
		Role:            claims.Role,
		Tool:            toolName,
		ArgumentsDigest: argsDigest,
		Outcome:         audit.OutcomeApproved,
		DurationMS:      durationMS(start, p.Now()),
		ParentEventID:   &parentEventID,
	})

	p.buildAndExecute(ctx, start, claims, toolName, argsDigest, desc, tp, schemaTable, validatedArgs, role, &parentEventID)
}
