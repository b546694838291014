package flows

import (
	"strings"
	"unicode/utf8"

	"github.com/hyphae-os/hyphae/session"
)

// ValidateCredentials applies the minimum-length rule to both fields. Lengths
// are counted in runes.
func ValidateCredentials(username, password string, minUsername, minPassword int) bool {
	return utf8.RuneCountInString(username) >= minUsername &&
		utf8.RuneCountInString(password) >= minPassword
}

// DeriveRole maps a username onto a role by naming convention.
func DeriveRole(username string) session.Role {
	switch {
	case strings.HasPrefix(username, "owner_"):
		return session.RoleOwner
	case strings.HasPrefix(username, "sys_"):
		return session.RoleSystemAgent
	default:
		return session.RoleAdmin
	}
}

// ResolveRole prefers a role reported by the backend when it belongs to the
// closed set and falls back to [DeriveRole] otherwise.
func ResolveRole(reported, username string) session.Role {
	if role, ok := session.ParseRole(reported); ok {
		return role
	}
	return DeriveRole(username)
}

// WellFormedPin reports whether pin is exactly four ASCII digits.
func WellFormedPin(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
