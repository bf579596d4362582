// Package approval implements the approval subsystem (spec.md §6/§9): a
// persisted three-table model — local users, approval requests, device
// tokens — plus an in-process, channel-based rendezvous that lets the
// request pipeline suspend on a NeedsApproval outcome without holding a
// database transaction open across the wait.
package approval

import "time"

// Decision is a human approver's verdict on a pending request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
)

// Status is the lifecycle state of a Request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// Request is one pending-or-resolved approval, keyed by an opaque ID
// (spec.md §6: "each keyed by an opaque identifier and carrying an
// expiry"). ArgumentsDigest, not raw arguments, is persisted — the store
// never holds onto agent-supplied values longer than the audit trail
// needs them hashed.
type Request struct {
	ID              string
	Tool            string
	Role            string
	Tenant          string
	ArgumentsDigest string
	Reasons         []string
	Status          Status
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ResolvedAt      *time.Time
	ResolvedBy      string
}

// LocalUser is an optional operator-managed approver identity (spec.md §6:
// "local users (optional)").
type LocalUser struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// DeviceToken is a transient, bcrypt-hashed credential minted for an
// approver's device so a resolution action can be authenticated without a
// full login.
type DeviceToken struct {
	ID         string
	UserID     string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}
