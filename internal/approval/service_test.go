package approval

import (
	"context"
	"testing"
	"time"
)

type fakeStore struct {
	requests     map[string]Request
	deviceTokens map[string][]DeviceToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: map[string]Request{}, deviceTokens: map[string][]DeviceToken{}}
}

func (f *fakeStore) Create(_ context.Context, req Request) (Request, error) {
	req.Status = StatusPending
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeStore) Resolve(_ context.Context, id string, decision Decision, resolvedBy string, now time.Time) (Request, error) {
	req, ok := f.requests[id]
	if !ok || req.Status != StatusPending {
		return Request{}, ErrNotFound
	}
	req.Status = StatusDenied
	if decision == DecisionApproved {
		req.Status = StatusApproved
	}
	req.ResolvedAt = &now
	req.ResolvedBy = resolvedBy
	f.requests[id] = req
	return req, nil
}

func (f *fakeStore) CreateDeviceToken(_ context.Context, tok DeviceToken) (DeviceToken, error) {
	f.deviceTokens[tok.UserID] = append(f.deviceTokens[tok.UserID], tok)
	return tok, nil
}

func (f *fakeStore) DeviceTokensForUser(_ context.Context, userID string, now time.Time) ([]DeviceToken, error) {
	var live []DeviceToken
	for _, t := range f.deviceTokens[userID] {
		if t.ExpiresAt.After(now) {
			live = append(live, t)
		}
	}
	return live, nil
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func TestServiceFileThenResolveWakesAwait(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, sequentialIDs("req"), fixedClock(time.Unix(0, 0)), time.Hour)

	req, err := svc.File(context.Background(), "updateTicket", "support_agent", "acme", map[string]any{"priority": "high"}, []string{"priority requires approval"})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if req.Status != StatusPending {
		t.Fatalf("expected pending, got %v", req.Status)
	}

	awaitDone := make(chan Decision, 1)
	go func() {
		d, err := svc.Await(context.Background(), req.ID, time.Second)
		if err != nil {
			t.Errorf("Await: %v", err)
		}
		awaitDone <- d
	}()

	time.Sleep(10 * time.Millisecond)
	resolved, err := svc.Resolve(context.Background(), req.ID, DecisionApproved, "approver-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != StatusApproved {
		t.Fatalf("expected StatusApproved, got %v", resolved.Status)
	}

	select {
	case d := <-awaitDone:
		if d != DecisionApproved {
			t.Fatalf("expected DecisionApproved, got %v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("Await never woke up")
	}
}

func TestServiceResolveTwiceFailsSecondTime(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, sequentialIDs("req"), fixedClock(time.Unix(0, 0)), time.Hour)

	req, _ := svc.File(context.Background(), "deleteCustomer", "support_agent", "acme", map[string]any{"id": "42"}, nil)
	if _, err := svc.Resolve(context.Background(), req.ID, DecisionApproved, "approver-1"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), req.ID, DecisionDenied, "approver-2"); err == nil {
		t.Fatal("expected second Resolve on an already-resolved request to fail")
	}
}

func TestServiceDeviceTokenRoundTrip(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, sequentialIDs("tok"), fixedClock(time.Unix(0, 0)), time.Hour)

	raw, err := svc.IssueDeviceToken(context.Background(), "user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}
	if err := svc.VerifyDeviceToken(context.Background(), "user-1", raw); err != nil {
		t.Fatalf("VerifyDeviceToken: %v", err)
	}
	if err := svc.VerifyDeviceToken(context.Background(), "user-1", "wrong-token"); err != ErrDeviceTokenInvalid {
		t.Fatalf("expected ErrDeviceTokenInvalid, got %v", err)
	}
}

func TestServiceDeviceTokenExpired(t *testing.T) {
	store := newFakeStore()
	start := time.Unix(0, 0)
	now := start
	svc := NewService(store, sequentialIDs("tok"), func() time.Time { return now }, time.Hour)

	raw, err := svc.IssueDeviceToken(context.Background(), "user-1", time.Minute)
	if err != nil {
		t.Fatalf("IssueDeviceToken: %v", err)
	}
	now = start.Add(2 * time.Minute)
	if err := svc.VerifyDeviceToken(context.Background(), "user-1", raw); err != ErrDeviceTokenInvalid {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
