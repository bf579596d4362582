package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/corisec/cori/internal/digest"
)

// ErrDeviceTokenInvalid is returned when a presented device token matches
// no live, unexpired hash for the user.
var ErrDeviceTokenInvalid = errors.New("approval: device token invalid or expired")

// IDGenerator mints opaque request/token identifiers. Swappable for tests;
// production wiring uses google/uuid (already a pack dependency).
type IDGenerator func() string

// Clock returns the current time. Swappable for tests.
type Clock func() time.Time

// requestStore is the subset of *Store's API Service needs, abstracted
// behind an interface rather than *Store directly so Service is testable
// against an in-memory fake instead of a live Postgres connection.
type requestStore interface {
	Create(ctx context.Context, req Request) (Request, error)
	Resolve(ctx context.Context, id string, decision Decision, resolvedBy string, now time.Time) (Request, error)
	CreateDeviceToken(ctx context.Context, tok DeviceToken) (DeviceToken, error)
	DeviceTokensForUser(ctx context.Context, userID string, now time.Time) ([]DeviceToken, error)
}

// Service ties the persisted Store to the in-process Rendezvous, giving
// the pipeline a single create/await/resolve surface, per spec.md §9's
// "approval as a suspended computation" design note.
type Service struct {
	store      requestStore
	rendezvous *Rendezvous
	newID      IDGenerator
	now        Clock
	ttl        time.Duration
}

// NewService constructs a Service. ttl is the default expiry applied to a
// newly filed approval request when the caller doesn't specify one.
func NewService(store requestStore, newID IDGenerator, now Clock, ttl time.Duration) *Service {
	return &Service{store: store, rendezvous: NewRendezvous(), newID: newID, now: now, ttl: ttl}
}

// File persists a new pending approval request and returns its id. The
// pipeline returns this id to the agent as the NeedsApproval outcome's
// opaque approval_id (spec.md §7) and then calls Await to suspend.
func (s *Service) File(ctx context.Context, tool, role, tenant string, args map[string]any, reasons []string) (Request, error) {
	now := s.now()
	req := Request{
		ID:              s.newID(),
		Tool:            tool,
		Role:            role,
		Tenant:          tenant,
		ArgumentsDigest: digest.OfArguments(args),
		Reasons:         reasons,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	return s.store.Create(ctx, req)
}

// Await blocks until id is resolved or timeout elapses, without holding
// any database handle across the wait — Rendezvous.AwaitResolution is
// pure in-memory channel coordination.
func (s *Service) Await(ctx context.Context, id string, timeout time.Duration) (Decision, error) {
	return s.rendezvous.AwaitResolution(ctx, id, timeout)
}

// Resolve records a human decision in Store and wakes any pipeline
// goroutine waiting on id. Once a request is resolved it can never be
// resolved again (spec.md §8 "approval monotonicity"): Store.Resolve's
// conditional UPDATE enforces this even if Resolve is called twice
// concurrently.
func (s *Service) Resolve(ctx context.Context, id string, decision Decision, resolvedBy string) (Request, error) {
	req, err := s.store.Resolve(ctx, id, decision, resolvedBy, s.now())
	if err != nil {
		return Request{}, err
	}
	s.rendezvous.Resolve(id, decision)
	return req, nil
}

// IssueDeviceToken mints a new device token for userID, returning the raw
// token (shown to the approver exactly once) while persisting only its
// bcrypt hash — the store can verify a presented token but never recover
// the original.
func (s *Service) IssueDeviceToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	raw := s.newID() + s.newID()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("approval: hashing device token: %w", err)
	}
	now := s.now()
	_, err = s.store.CreateDeviceToken(ctx, DeviceToken{
		ID:        s.newID(),
		UserID:    userID,
		TokenHash: string(hash),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// VerifyDeviceToken checks raw against every live token hash for userID,
// mirroring PostgresAuthenticator.authenticateFromDB's
// bcrypt.CompareHashAndPassword call.
func (s *Service) VerifyDeviceToken(ctx context.Context, userID, raw string) error {
	toks, err := s.store.DeviceTokensForUser(ctx, userID, s.now())
	if err != nil {
		return err
	}
	for _, t := range toks {
		if bcrypt.CompareHashAndPassword([]byte(t.TokenHash), []byte(raw)) == nil {
			return nil
		}
	}
	return ErrDeviceTokenInvalid
}
