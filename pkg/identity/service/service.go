package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/userstore"
)

// tokenTTL bounds how long an issued session token stays valid.
const tokenTTL = 7 * 24 * time.Hour

var (
	ErrEmailTaken = errors.New("email already registered")
	ErrBanned     = errors.New("account suspended")
)

// DB is the transactional boundary account provisioning runs in.
// *bun.DB satisfies it.
type DB interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// UserStore is the narrow user interface for the identity service.
type UserStore interface {
	CreateUser(ctx context.Context, idb bun.IDB, usr *identity.User) error
	GetUserByEmail(ctx context.Context, email string) (*identity.User, error)
	SetLastLogin(ctx context.Context, idb bun.IDB, id int64, at time.Time) error
}

// EventStore is the narrow event log interface for the identity service.
type EventStore interface {
	Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error
}

// Session is an authenticated account plus its bearer token.
type Session struct {
	User  *identity.User `json:"user"`
	Token string         `json:"token"`
}

// Service defines the interface for account provisioning and login
// recording. The upstream identity provider verifies the email before
// these endpoints are reached.
type Service interface {
	// Register provisions a new account with the signup grant.
	Register(ctx context.Context, email string) (*Session, error)
	// Login records a login for an existing account and issues a token.
	Login(ctx context.Context, email string) (*Session, error)
}

type identityService struct {
	db          DB
	users       UserStore
	events      EventStore
	tokens      *identity.JWTValidator
	adminEmails []string
	logger      *zap.Logger
}

// NewService creates a new identity service
func NewService(db DB, users UserStore, events EventStore, tokens *identity.JWTValidator, adminEmails []string, logger *zap.Logger) Service {
	return &identityService{
		db:          db,
		users:       users,
		events:      events,
		tokens:      tokens,
		adminEmails: adminEmails,
		logger:      logger,
	}
}

// Register creates the account and its register event in one transaction,
// so the signup grant is replayable from the log.
func (s *identityService) Register(ctx context.Context, email string) (*Session, error) {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return nil, apperrors.BadRequestError(nil, "email is required")
	}

	usr := &identity.User{
		Email:  normalized,
		Tokens: ledger.InitialGrant,
	}
	usr.IsAdmin = usr.IsAdminFor(s.adminEmails)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.users.CreateUser(ctx, tx, usr); err != nil {
			if errors.Is(err, userstore.ErrDuplicateEmail) {
				return apperrors.ConflictError(ErrEmailTaken, "email already registered")
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		uid := usr.ID
		event := &ledger.Event{
			UserID: &uid,
			Kind:   ledger.KindRegister,
			Meta:   ledger.Meta{Tokens: ledger.InitialGrant},
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to append register event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueToken(usr.ID, usr.Email, tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: usr, Token: token}, nil
}

func (s *identityService) Login(ctx context.Context, email string) (*Session, error) {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return nil, apperrors.BadRequestError(nil, "email is required")
	}

	usr, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, userstore.ErrUserNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "account not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if usr.IsBanned {
		return nil, apperrors.ForbiddenError(ErrBanned, "account suspended")
	}

	now := time.Now().UTC()
	if err := s.users.SetLastLogin(ctx, nil, usr.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	usr.LastLoginAt = &now

	uid := usr.ID
	event := &ledger.Event{UserID: &uid, Kind: ledger.KindLogin}
	if err := s.events.Append(ctx, nil, event); err != nil {
		// The login succeeded; a missing activity row only skews the
		// admin metrics.
		s.logger.Warn("failed to append login event",
			zap.Int64("user_id", usr.ID),
			zap.Error(err))
	}

	token, err := s.tokens.IssueToken(usr.ID, usr.Email, tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{User: usr, Token: token}, nil
}
