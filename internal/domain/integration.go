package domain

import "time"

// Integration token payload sources.
const (
	TokenSourceSignup = "signup"
	TokenSourceLogin  = "login"
)

// Pending signup states.
const (
	SignupStatusPending   = "pending"
	SignupStatusCompleted = "completed"
)

// IntegrationToken is a single-use handoff credential transferring an
// in-progress signup or login from an external origin into this service.
// Used and expired tokens are retained until swept so that replay attempts
// are distinguishable from unknown tokens.
type IntegrationToken struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
	Used      bool                   `json:"used"`
	CreatedAt time.Time              `json:"created_at"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *IntegrationToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// PendingSignup is a draft account awaiting completion via token redemption.
// Once expired it is never resurrected.
type PendingSignup struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Plan         string    `json:"plan,omitempty"`
	ReferralCode string    `json:"referral_code,omitempty"`
	Status       string    `json:"status"`
	UserID       string    `json:"user_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the draft is past its expiry at the given time.
func (p *PendingSignup) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
