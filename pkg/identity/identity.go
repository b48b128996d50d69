// Package identity holds the account domain model and the request
// authentication layer. Credentials live with the external identity
// provider; this service only resolves bearer tokens to accounts.
package identity

import (
	"strings"
	"time"
)

// User represents an account in the domain layer
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	Tokens         int64      `json:"tokens"`
	IsAdmin        bool       `json:"is_admin"`
	IsBanned       bool       `json:"is_banned"`
	IsTrusted      bool       `json:"is_trusted"`
	LastDailyClaim *time.Time `json:"last_daily_claim,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// NormalizeEmail lowercases and trims an email address for storage and
// lookup. The users table carries a unique index on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsAdminFor reports whether the user may access admin endpoints: either
// the is_admin flag is set or the email appears on the configured
// allowlist.
func (u *User) IsAdminFor(adminEmails []string) bool {
	if u.IsAdmin {
		return true
	}
	email := NormalizeEmail(u.Email)
	for _, allowed := range adminEmails {
		if NormalizeEmail(allowed) == email {
			return true
		}
	}
	return false
}
