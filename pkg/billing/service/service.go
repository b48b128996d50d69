package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/picturescaler/server/internal/metrics"
	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/billing"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/userstore"
)

// DefaultDedupeWindow is how many newest token_purchase events are
// scanned per user when checking for a duplicate payment reference.
// Duplicates older than the window re-credit; accepted trade-off for
// keeping the scan bounded.
const DefaultDedupeWindow = 200

var (
	ErrInvalidGrant = errors.New("invalid token grant")
	ErrInvalidJob   = errors.New("invalid job debit")
)

// DB is the transactional boundary every balance-changing unit of work
// runs in. *bun.DB satisfies it.
type DB interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// UserStore is the narrow balance-mutation interface for the billing service.
// Defined here to keep the service decoupled from userstore implementation details.
type UserStore interface {
	GetUserForUpdate(ctx context.Context, idb bun.IDB, id int64) (*identity.User, error)
	CreditTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
	DebitTokens(ctx context.Context, idb bun.IDB, id, delta int64) (int64, error)
}

// EventStore is the narrow event log interface for the billing service.
type EventStore interface {
	Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error
	ListByUser(ctx context.Context, idb bun.IDB, userID int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error)
}

// Service defines the interface for the billing business logic
type Service interface {
	// GrantTokens credits purchased tokens, exactly once per payment
	// reference inside the dedupe window. Redelivery is a success.
	GrantTokens(ctx context.Context, req *billing.GrantRequest) (*billing.GrantResult, error)

	// DebitForJob charges one token per file for a processing job, or
	// fails with a payment-required error carrying the shortfall.
	DebitForJob(ctx context.Context, userID int64, job billing.JobDebit) (*billing.DebitResult, error)
}

type billingService struct {
	db           DB
	users        UserStore
	events       EventStore
	dedupeWindow int
	logger       *zap.Logger
}

// NewService creates a new billing service
func NewService(db DB, users UserStore, events EventStore, dedupeWindow int, logger *zap.Logger) Service {
	if dedupeWindow <= 0 {
		dedupeWindow = DefaultDedupeWindow
	}
	return &billingService{
		db:           db,
		users:        users,
		events:       events,
		dedupeWindow: dedupeWindow,
		logger:       logger,
	}
}

func (s *billingService) GrantTokens(ctx context.Context, req *billing.GrantRequest) (*billing.GrantResult, error) {
	if req.UserID <= 0 {
		return nil, apperrors.BadRequestError(ErrInvalidGrant, "user_id is required")
	}
	if req.Tokens <= 0 {
		return nil, apperrors.BadRequestError(ErrInvalidGrant, "tokens must be positive")
	}
	if req.Provider == "" {
		return nil, apperrors.BadRequestError(ErrInvalidGrant, "provider is required")
	}

	result := &billing.GrantResult{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		usr, err := s.users.GetUserForUpdate(ctx, tx, req.UserID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return apperrors.ResourceNotFoundError(err, "user not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		// The duplicate scan runs under the user row lock, so two
		// deliveries of the same payment serialize and the second one
		// sees the first one's event.
		if req.OrderID != "" || req.TxnID != "" {
			recent, err := s.events.ListByUser(ctx, tx, usr.ID, s.dedupeWindow, ledger.KindTokenPurchase)
			if err != nil {
				return fmt.Errorf("failed to scan purchase history: %w", err)
			}
			if prior := ledger.FindPurchaseRef(recent, req.OrderID, req.TxnID); prior != nil {
				result.AlreadyProcessed = true
				result.Balance = usr.Tokens
				return nil
			}
		}

		balance, err := s.users.CreditTokens(ctx, tx, usr.ID, req.Tokens)
		if err != nil {
			return fmt.Errorf("failed to credit tokens: %w", err)
		}

		userID := usr.ID
		event := &ledger.Event{
			UserID: &userID,
			Kind:   ledger.KindTokenPurchase,
			Meta: ledger.Meta{
				Tokens:   req.Tokens,
				Provider: req.Provider,
				Amount:   req.Amount,
				Currency: req.Currency,
				OrderID:  req.OrderID,
				TxnID:    req.TxnID,
			},
		}
		if err := s.events.Append(ctx, tx, event); err != nil {
			return fmt.Errorf("failed to append purchase event: %w", err)
		}

		result.TokensAdded = req.Tokens
		result.Balance = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyProcessed {
		metrics.DuplicateGrants.Inc()
		s.logger.Info("duplicate purchase delivery ignored",
			zap.Int64("user_id", req.UserID),
			zap.String("order_id", req.OrderID),
			zap.String("txn_id", req.TxnID))
	} else {
		metrics.TokensGranted.WithLabelValues(req.Provider).Add(float64(req.Tokens))
	}
	return result, nil
}

func (s *billingService) DebitForJob(ctx context.Context, userID int64, job billing.JobDebit) (*billing.DebitResult, error) {
	if job.Files <= 0 {
		return nil, apperrors.BadRequestError(ErrInvalidJob, "no billable files")
	}
	job.Normalize()

	result := &billing.DebitResult{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		usr, err := s.users.GetUserForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, userstore.ErrUserNotFound) {
				return apperrors.ResourceNotFoundError(err, "user not found")
			}
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if usr.Tokens < job.Files {
			return apperrors.WithDetails(
				apperrors.PaymentRequiredError(nil, "insufficient tokens"),
				map[string]any{
					"required":  job.Files,
					"available": usr.Tokens,
				})
		}

		balance, err := s.users.DebitTokens(ctx, tx, usr.ID, job.Files)
		if err != nil {
			return fmt.Errorf("failed to debit tokens: %w", err)
		}

		uid := usr.ID
		uploadEvent := &ledger.Event{
			UserID: &uid,
			Kind:   ledger.KindUpload,
			Meta: ledger.Meta{
				Files:       job.Files,
				Orientation: job.Orientation,
				Scale:       job.Scale,
			},
		}
		spentEvent := &ledger.Event{
			UserID: &uid,
			Kind:   ledger.KindTokenSpent,
			Meta: ledger.Meta{
				Tokens: job.Files,
				Reason: "upload",
				Files:  job.Files,
			},
		}
		if err := s.events.Append(ctx, tx, uploadEvent, spentEvent); err != nil {
			return fmt.Errorf("failed to append job events: %w", err)
		}

		result.Charged = job.Files
		result.Remaining = balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TokensSpent.Add(float64(result.Charged))
	return result, nil
}
