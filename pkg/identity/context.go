package identity

import (
	"context"
)

// Context keys for authentication data
type contextKey string

const (
	// ContextKeyUser is the context key for the authenticated user
	ContextKeyUser contextKey = "user"
)

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, usr *User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, usr)
}

// UserFromContext retrieves the authenticated user from the context
func UserFromContext(ctx context.Context) (*User, bool) {
	usr, ok := ctx.Value(ContextKeyUser).(*User)
	return usr, ok
}
