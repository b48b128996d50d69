package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
)

// ErrUserNotFound is returned when a user lookup finds no matching record.
var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientTokens is returned by DebitTokens when the locked balance
// cannot cover the requested amount.
var ErrInsufficientTokens = errors.New("insufficient tokens")

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already registered")

// BalanceStore defines the balance mutations. Callers must invoke these
// inside the same transaction that appends the matching ledger events;
// the idb argument is the transaction handle.
type BalanceStore interface {
	GetUserForUpdate(ctx context.Context, idb bun.IDB, id int64) (*identity.User, error)
	CreditTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
	DebitTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
	SetLastDailyClaim(ctx context.Context, idb bun.IDB, id int64, at time.Time) error
}

// Store defines the interface for user data persistence
type Store interface {
	BalanceStore
	CreateUser(ctx context.Context, idb bun.IDB, usr *identity.User) error
	GetUserByID(ctx context.Context, id int64) (*identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*identity.User, error)
	SetLastLogin(ctx context.Context, idb bun.IDB, id int64, at time.Time) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	SetTrusted(ctx context.Context, id int64, trusted bool) error
	ListUsersWithTotals(ctx context.Context, q ListQuery) ([]*UserWithTotals, error)
}

// ListQuery filters and orders the admin user listing.
type ListQuery struct {
	// Filter is one of "all", "sus", "banned".
	Filter string
	// Search matches a substring of the email, case-insensitively.
	Search string
	// Sort is one of "created", "tokens", "spent", "email".
	Sort string
}

// UserWithTotals is an admin listing row: the account plus its ledger sums.
type UserWithTotals struct {
	User   *identity.User
	Totals ledger.UserTotals
}

// Suspicious applies the overspend rule to the row.
func (r *UserWithTotals) Suspicious() bool {
	return ledger.Suspicious(r.Totals, r.User.IsTrusted)
}
