package approval

import (
	"context"
	"testing"
	"time"
)

func TestRendezvousResolveWakesWaiter(t *testing.T) {
	r := NewRendezvous()
	done := make(chan Decision, 1)
	go func() {
		d, err := r.AwaitResolution(context.Background(), "req-1", time.Second)
		if err != nil {
			t.Errorf("AwaitResolution: %v", err)
		}
		done <- d
	}()

	time.Sleep(10 * time.Millisecond)
	r.Resolve("req-1", DecisionApproved)

	select {
	case d := <-done:
		if d != DecisionApproved {
			t.Fatalf("expected DecisionApproved, got %v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitResolution never returned")
	}
}

func TestRendezvousTimesOutWithoutResolve(t *testing.T) {
	r := NewRendezvous()
	_, err := r.AwaitResolution(context.Background(), "req-2", 20*time.Millisecond)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestRendezvousResolveWithNoWaiterIsNoop(t *testing.T) {
	r := NewRendezvous()
	r.Resolve("nobody-waiting", DecisionDenied) // must not panic or block
}

func TestRendezvousCancellationUnblocks(t *testing.T) {
	r := NewRendezvous()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.AwaitResolution(ctx, "req-3", time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitResolution did not observe cancellation")
	}
}
