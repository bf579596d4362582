package approval

import (
	"context"
	"sync"
	"time"
)

// Rendezvous is the in-process, message-passing wait/notify point spec.md
// §9 calls for: the pipeline stage that files a PendingApproval blocks on
// AwaitResolution without holding any database transaction open, and a
// separate resolver goroutine (driven by an external approval action)
// wakes it with Resolve. Built on sync.Map the same way internal/cachekit
// guards concurrent access to per-key state, specialized here to a
// one-shot notification channel instead of a cached value.
type Rendezvous struct {
	waiters sync.Map // id -> chan Decision
}

// NewRendezvous constructs an empty wait table.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{}
}

// AwaitResolution blocks until Resolve(id, ...) is called, ctx is
// cancelled, or timeout elapses, whichever comes first. It registers the
// wait channel itself, so callers do not need a separate Register step.
func (r *Rendezvous) AwaitResolution(ctx context.Context, id string, timeout time.Duration) (Decision, error) {
	ch := make(chan Decision, 1)
	actual, loaded := r.waiters.LoadOrStore(id, ch)
	if loaded {
		ch = actual.(chan Decision)
	}
	defer r.waiters.Delete(id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case decision := <-ch:
		return decision, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", context.DeadlineExceeded
	}
}

// Resolve wakes whatever goroutine is waiting on id, if any. It is a no-op
// if nothing is currently waiting — the decision has already been
// persisted by Store.Resolve, so a late or duplicate Resolve call loses
// nothing; the pipeline just won't be listening anymore.
func (r *Rendezvous) Resolve(id string, decision Decision) {
	v, ok := r.waiters.Load(id)
	if !ok {
		return
	}
	ch := v.(chan Decision)
	select {
	case ch <- decision:
	default:
	}
}
