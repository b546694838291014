package session

import "time"

// Role is the closed set of principal roles a dashboard session can carry.
type Role string

const (
	// RoleOwner is the account owner. Owners see privileged panels.
	RoleOwner Role = "owner"
	// RoleAdmin is an operator account. Admins see privileged panels.
	RoleAdmin Role = "admin"
	// RoleSystemAgent is a non-human agent identity.
	RoleSystemAgent Role = "system"
)

// ParseRole maps a wire role string onto the closed [Role] set.
func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleOwner, RoleAdmin, RoleSystemAgent:
		return Role(v), true
	default:
		return "", false
	}
}

// Privileged reports whether the role unlocks privileged-only panels.
func (r Role) Privileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Identity is the authenticated principal behind a [Session].
type Identity struct {
	UserID   string
	Username string
	Email    string
	Role     Role
	Avatar   string
	DeviceID string
}

// Session is the authenticated state of one client. A Session with
// PinVerified=false grants access to the second-factor step only.
type Session struct {
	ID       string
	Identity Identity

	// Token is an opaque bearer credential attached to protected calls.
	Token string

	PinVerified bool
	CreatedAt   time.Time
}

// Clone returns an independent copy of s. Clone of nil is nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
