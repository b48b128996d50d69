package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
)

func isIntegrityViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.IntegrityViolation()
}

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the user store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateUser(ctx context.Context, idb bun.IDB, usr *identity.User) error {
	if idb == nil {
		idb = s.db
	}

	dao := toUserDao(usr)
	_, err := idb.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isIntegrityViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	usr.ID = dao.ID
	usr.Email = dao.Email
	return nil
}

func (s *pgStore) GetUserByID(ctx context.Context, id int64) (*identity.User, error) {
	dao := new(UserDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(dao), nil
}

func (s *pgStore) GetUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	dao := new(UserDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("u.email = ?", identity.NormalizeEmail(email)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return toUser(dao), nil
}

// GetUserForUpdate loads the user row with a FOR UPDATE lock. Every
// balance-changing unit of work starts here so concurrent mutations of the
// same account serialize.
func (s *pgStore) GetUserForUpdate(ctx context.Context, idb bun.IDB, id int64) (*identity.User, error) {
	dao := new(UserDao)
	err := idb.NewSelect().
		Model(dao).
		Where("u.id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	return toUser(dao), nil
}

func (s *pgStore) CreditTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("credit must be positive, got %d", delta)
	}
	return s.addTokens(ctx, idb, id, delta)
}

func (s *pgStore) DebitTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, fmt.Errorf("debit must be positive, got %d", delta)
	}

	// The guard in the WHERE clause backstops the caller's sufficiency
	// check under the row lock.
	var balance int64
	err := idb.NewUpdate().
		Model((*UserDao)(nil)).
		Set("tokens = tokens - ?", delta).
		Where("id = ?", id).
		Where("tokens >= ?", delta).
		Returning("tokens").
		Scan(ctx, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInsufficientTokens
		}
		return 0, fmt.Errorf("failed to debit tokens: %w", err)
	}
	return balance, nil
}

func (s *pgStore) addTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error) {
	var balance int64
	err := idb.NewUpdate().
		Model((*UserDao)(nil)).
		Set("tokens = tokens + ?", delta).
		Where("id = ?", id).
		Returning("tokens").
		Scan(ctx, &balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit tokens: %w", err)
	}
	return balance, nil
}

func (s *pgStore) SetLastDailyClaim(ctx context.Context, idb bun.IDB, id int64, at time.Time) error {
	_, err := idb.NewUpdate().
		Model((*UserDao)(nil)).
		Set("last_daily_claim = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set last daily claim: %w", err)
	}
	return nil
}

func (s *pgStore) SetLastLogin(ctx context.Context, idb bun.IDB, id int64, at time.Time) error {
	if idb == nil {
		idb = s.db
	}
	_, err := idb.NewUpdate().
		Model((*UserDao)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set last login: %w", err)
	}
	return nil
}

func (s *pgStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	return s.setFlag(ctx, id, "is_banned", banned)
}

func (s *pgStore) SetTrusted(ctx context.Context, id int64, trusted bool) error {
	return s.setFlag(ctx, id, "is_trusted", trusted)
}

func (s *pgStore) setFlag(ctx context.Context, id int64, column string, value bool) error {
	res, err := s.db.NewUpdate().
		Model((*UserDao)(nil)).
		Set(column+" = ?", value).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// userTotalsRow carries one admin listing row out of the aggregate query.
type userTotalsRow struct {
	ID             int64      `bun:"id"`
	Email          string     `bun:"email"`
	Tokens         int64      `bun:"tokens"`
	IsAdmin        bool       `bun:"is_admin"`
	IsBanned       bool       `bun:"is_banned"`
	IsTrusted      bool       `bun:"is_trusted"`
	LastDailyClaim *time.Time `bun:"last_daily_claim"`
	CreatedAt      time.Time  `bun:"created_at"`
	LastLoginAt    *time.Time `bun:"last_login_at"`
	Spent          int64      `bun:"spent"`
	Purchased      int64      `bun:"purchased"`
	Claims         int64      `bun:"claims"`
	Rewards        int64      `bun:"rewards"`
}

// metaSum sums an integer metadata field over events of one kind. The
// regex guard skips malformed values instead of failing the query.
func metaSum(kind ledger.Kind, field string) string {
	return fmt.Sprintf(
		"COALESCE(SUM(CASE WHEN e.kind = '%s' AND e.meta->>'%s' ~ '^[0-9]+$' THEN (e.meta->>'%s')::bigint ELSE 0 END), 0)",
		kind, field, field,
	)
}

func (s *pgStore) ListUsersWithTotals(ctx context.Context, q ListQuery) ([]*UserWithTotals, error) {
	query := s.db.NewSelect().
		TableExpr("users AS u").
		ColumnExpr("u.id, u.email, u.tokens, u.is_admin, u.is_banned, u.is_trusted").
		ColumnExpr("u.last_daily_claim, u.created_at, u.last_login_at").
		ColumnExpr(metaSum(ledger.KindTokenSpent, "tokens") + " AS spent").
		ColumnExpr(metaSum(ledger.KindTokenPurchase, "tokens") + " AS purchased").
		ColumnExpr("COUNT(e.id) FILTER (WHERE e.kind = ?) AS claims", string(ledger.KindDailyClaim)).
		ColumnExpr(metaSum(ledger.KindRewardClaim, "tokens") + " AS rewards").
		Join("LEFT JOIN ledger_events AS e ON e.user_id = u.id").
		GroupExpr("u.id")

	if q.Filter == "banned" {
		query = query.Where("u.is_banned")
	}
	if q.Search != "" {
		query = query.Where("u.email ILIKE ?", "%"+q.Search+"%")
	}

	switch q.Sort {
	case "tokens":
		query = query.OrderExpr("u.tokens DESC")
	case "spent":
		query = query.OrderExpr("spent DESC")
	case "email":
		query = query.OrderExpr("u.email ASC")
	default:
		query = query.OrderExpr("u.created_at DESC")
	}

	var rows []userTotalsRow
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	results := make([]*UserWithTotals, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		entry := &UserWithTotals{
			User: &identity.User{
				ID:             row.ID,
				Email:          row.Email,
				Tokens:         row.Tokens,
				IsAdmin:        row.IsAdmin,
				IsBanned:       row.IsBanned,
				IsTrusted:      row.IsTrusted,
				LastDailyClaim: row.LastDailyClaim,
				CreatedAt:      row.CreatedAt,
				LastLoginAt:    row.LastLoginAt,
			},
			Totals: ledger.UserTotals{
				Spent:     row.Spent,
				Purchased: row.Purchased,
				Claims:    row.Claims,
				Rewards:   row.Rewards,
			},
		}
		if q.Filter == "sus" && !entry.Suspicious() {
			continue
		}
		results = append(results, entry)
	}
	return results, nil
}
