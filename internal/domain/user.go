package domain

import "time"

// User is the authoritative identity record. Users are never hard-deleted;
// deactivation clears the Active flag.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Company       string     `json:"company,omitempty"`
	Role          string     `json:"role"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"email_verified"`
	LoginCount    int64      `json:"login_count"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Sanitized returns a copy safe for API responses. The password hash is
// already excluded from JSON, but callers hand out copies so later mutations
// of the stored record do not leak into in-flight responses.
func (u *User) Sanitized() *User {
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

// Profile extends a User with preferences, per-feature usage counters and UI
// settings. Created lazily on first write; maps are never nil once created.
type Profile struct {
	UserID      string                 `json:"user_id"`
	Avatar      string                 `json:"avatar,omitempty"`
	Bio         string                 `json:"bio,omitempty"`
	Preferences map[string]interface{} `json:"preferences"`
	Usage       map[string]int64       `json:"usage"`
	Settings    map[string]interface{} `json:"settings"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewProfile returns an empty profile with all maps initialized.
func NewProfile(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:      userID,
		Preferences: map[string]interface{}{},
		Usage:       map[string]int64{},
		Settings:    map[string]interface{}{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ProfileUpdate is a partial profile change. Nil pointer fields leave the
// corresponding scalar untouched; map fields are merged key-by-key into the
// stored profile, never wholesale-replaced.
type ProfileUpdate struct {
	Avatar      *string                `json:"avatar,omitempty"`
	Bio         *string                `json:"bio,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
	Usage       map[string]int64       `json:"usage,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
}

// Session is a live login context. Multiple sessions per user may coexist.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Active         bool      `json:"active"`
	IP             string    `json:"ip,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// RefreshToken maps a hashed opaque token to its user. Each login issues an
// independent token; each is independently revocable.
type RefreshToken struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
