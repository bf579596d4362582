package pipeline

import (
	"context"
	"time"

	"github.com/corisec/cori/internal/audit"
)

// finish emits the terminal audit event for result and returns result
// unchanged, so every return path in Handle funnels through one place
// that guarantees "every terminal outcome emits one audit event"
// (spec.md §2). ctx is accepted for symmetry with the rest of the
// pipeline even though emission itself never blocks on it — audit
// delivery is fire-and-forget (spec.md §6).
func (p *Pipeline) finish(ctx context.Context, start time.Time, role, tenant, tool, argsDigest string, sqlDigest *string, result Result) Result {
	_ = ctx
	p.emit(audit.Event{
		EventID:         p.NewID(),
		OccurredAt:      p.Now(),
		Tenant:          tenant,
		Role:            role,
		Tool:            tool,
		ArgumentsDigest: argsDigest,
		Outcome:         result.Outcome,
		SQLDigest:       sqlDigest,
		RowsAffected:    result.RowsAffected,
		DurationMS:      durationMS(start, p.Now()),
	})
	return result
}

func (p *Pipeline) emit(event audit.Event) {
	if p.Audit == nil {
		return
	}
	p.Audit.Write(event)
}

func durationMS(start, end time.Time) float64 {
	return float64(end.Sub(start)) / float64(time.Millisecond)
}
