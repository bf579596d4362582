package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no request/user/device-token exists for the
// given id.
var ErrNotFound = errors.New("approval: not found")

// Store persists the three tables spec.md §6 names for the approval
// subsystem. It is the only persistent state the core owns; the
// config/schema/rules/roles/groups documents are operator-managed files,
// never written by the core.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already-connected pool (internal/db.Connect constructs
// it); Store never manages connection lifecycle itself.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Create inserts a new pending approval request.
func (s *Store) Create(ctx context.Context, req Request) (Request, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO approval_requests
			(id, tool, role, tenant, arguments_digest, reasons, status, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, expires_at`,
		req.ID, req.Tool, req.Role, req.Tenant, req.ArgumentsDigest, req.Reasons, StatusPending, req.CreatedAt, req.ExpiresAt,
	).Scan(&req.ID, &req.CreatedAt, &req.ExpiresAt)
	if err != nil {
		return Request{}, fmt.Errorf("approval: creating request: %w", err)
	}
	req.Status = StatusPending
	return req, nil
}

// LoadByID fetches a request by its opaque id.
func (s *Store) LoadByID(ctx context.Context, id string) (Request, error) {
	var req Request
	var resolvedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, tool, role, tenant, arguments_digest, reasons, status, created_at, expires_at, resolved_at, resolved_by
		 FROM approval_requests WHERE id = $1`,
		id,
	).Scan(&req.ID, &req.Tool, &req.Role, &req.Tenant, &req.ArgumentsDigest, &req.Reasons, &req.Status, &req.CreatedAt, &req.ExpiresAt, &resolvedAt, &req.ResolvedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("approval: loading request %s: %w", id, err)
	}
	req.ResolvedAt = resolvedAt
	return req, nil
}

// Resolve records a human decision against a pending request. It is a
// no-op error if the request is not currently pending — a resolved or
// expired request cannot be resolved again, matching spec.md §8's
// "approval monotonicity" property.
func (s *Store) Resolve(ctx context.Context, id string, decision Decision, resolvedBy string, now time.Time) (Request, error) {
	status := StatusDenied
	if decision == DecisionApproved {
		status = StatusApproved
	}

	var req Request
	var resolvedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`UPDATE approval_requests
		 SET status = $1, resolved_at = $2, resolved_by = $3
		 WHERE id = $4 AND status = $5 AND expires_at > $2
		 RETURNING id, tool, role, tenant, arguments_digest, reasons, status, created_at, expires_at, resolved_at, resolved_by`,
		status, now, resolvedBy, id, StatusPending,
	).Scan(&req.ID, &req.Tool, &req.Role, &req.Tenant, &req.ArgumentsDigest, &req.Reasons, &req.Status, &req.CreatedAt, &req.ExpiresAt, &resolvedAt, &req.ResolvedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("approval: request %s is not pending: %w", id, ErrNotFound)
		}
		return Request{}, fmt.Errorf("approval: resolving request %s: %w", id, err)
	}
	req.ResolvedAt = resolvedAt
	return req, nil
}

// CreateUser inserts a local approver identity.
func (s *Store) CreateUser(ctx context.Context, user LocalUser) (LocalUser, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO approval_users (id, username, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return LocalUser{}, fmt.Errorf("approval: creating user: %w", err)
	}
	return user, nil
}

// UserByUsername looks up a local approver by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (LocalUser, error) {
	var user LocalUser
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM approval_users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocalUser{}, ErrNotFound
		}
		return LocalUser{}, fmt.Errorf("approval: loading user %s: %w", username, err)
	}
	return user, nil
}

// CreateDeviceToken inserts a transient device token record. The caller
// passes tokenHash (already bcrypt-hashed) — Store never sees a raw token.
func (s *Store) CreateDeviceToken(ctx context.Context, tok DeviceToken) (DeviceToken, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO approval_device_tokens (id, user_id, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		tok.ID, tok.UserID, tok.TokenHash, tok.CreatedAt, tok.ExpiresAt,
	).Scan(&tok.ID, &tok.CreatedAt)
	if err != nil {
		return DeviceToken{}, fmt.Errorf("approval: creating device token: %w", err)
	}
	return tok, nil
}

// DeviceTokensForUser returns every non-expired device token hash for
// userID, so the caller can bcrypt-compare a presented token against each.
func (s *Store) DeviceTokensForUser(ctx context.Context, userID string, now time.Time) ([]DeviceToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, token_hash, created_at, expires_at
		 FROM approval_device_tokens WHERE user_id = $1 AND expires_at > $2`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("approval: listing device tokens: %w", err)
	}
	defer rows.Close()

	var toks []DeviceToken
	for rows.Next() {
		var t DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("approval: scanning device token: %w", err)
		}
		toks = append(toks, t)
	}
	return toks, rows.Err()
}
