package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/billing"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/userstore"
)

// mockDB runs the transaction body directly, without a database.
type mockDB struct {
	err error
}

func (m *mockDB) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, bun.Tx{})
}

type mockUserStore struct {
	user *identity.User

	lockErr   error
	creditErr error
	debitErr  error

	credited int64
	debited  int64
}

func (m *mockUserStore) GetUserForUpdate(_ context.Context, _ bun.IDB, id int64) (*identity.User, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, userstore.ErrUserNotFound
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserStore) CreditTokens(_ context.Context, _ bun.IDB, _, delta int64) (int64, error) {
	if m.creditErr != nil {
		return 0, m.creditErr
	}
	m.credited += delta
	m.user.Tokens += delta
	return m.user.Tokens, nil
}

func (m *mockUserStore) DebitTokens(_ context.Context, _ bun.IDB, _, delta int64) (int64, error) {
	if m.debitErr != nil {
		return 0, m.debitErr
	}
	if m.user.Tokens < delta {
		return 0, userstore.ErrInsufficientTokens
	}
	m.debited += delta
	m.user.Tokens -= delta
	return m.user.Tokens, nil
}

type mockEventStore struct {
	history  []ledger.Event
	appended []*ledger.Event

	appendErr error
	listErr   error
}

func (m *mockEventStore) Append(_ context.Context, _ bun.IDB, events ...*ledger.Event) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appended = append(m.appended, events...)
	return nil
}

func (m *mockEventStore) ListByUser(_ context.Context, _ bun.IDB, _ int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []ledger.Event
	for _, e := range m.history {
		for _, k := range kinds {
			if e.Kind == k {
				out = append(out, e)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newBillingService(users *mockUserStore, events *mockEventStore) Service {
	return NewService(&mockDB{}, users, events, 0, zap.NewNop())
}

func TestGrantTokens_Validation(t *testing.T) {
	svc := newBillingService(&mockUserStore{}, &mockEventStore{})

	tests := []struct {
		name string
		req  billing.GrantRequest
	}{
		{"missing user", billing.GrantRequest{Tokens: 10, Provider: "stripe"}},
		{"zero tokens", billing.GrantRequest{UserID: 1, Provider: "stripe"}},
		{"negative tokens", billing.GrantRequest{UserID: 1, Tokens: -5, Provider: "stripe"}},
		{"missing provider", billing.GrantRequest{UserID: 1, Tokens: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GrantTokens(context.Background(), &tt.req)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !apperrors.Is(err, apperrors.CategoryDataError) {
				t.Fatalf("expected CategoryDataError, got %v", err)
			}
		})
	}
}

func TestGrantTokens_CreditsAndAppends(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 3}}
	events := &mockEventStore{}
	svc := newBillingService(users, events)

	resp, err := svc.GrantTokens(context.Background(), &billing.GrantRequest{
		UserID:   7,
		Tokens:   100,
		Provider: "stripe",
		OrderID:  "ord-1",
	})
	if err != nil {
		t.Fatalf("GrantTokens() failed: %v", err)
	}

	if resp.AlreadyProcessed {
		t.Fatal("fresh grant reported as duplicate")
	}
	if resp.TokensAdded != 100 || resp.Balance != 103 {
		t.Fatalf("got added=%d balance=%d, want 100/103", resp.TokensAdded, resp.Balance)
	}
	if users.credited != 100 {
		t.Fatalf("credited %d, want 100", users.credited)
	}
	if len(events.appended) != 1 {
		t.Fatalf("appended %d events, want 1", len(events.appended))
	}
	e := events.appended[0]
	if e.Kind != ledger.KindTokenPurchase || e.Meta.Tokens != 100 || e.Meta.OrderID != "ord-1" {
		t.Fatalf("unexpected purchase event: %+v", e)
	}
}

func TestGrantTokens_DuplicateOrderIsIdempotent(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 103}}
	events := &mockEventStore{history: []ledger.Event{
		{Kind: ledger.KindTokenPurchase, Meta: ledger.Meta{Tokens: 100, OrderID: "ord-1"}},
	}}
	svc := newBillingService(users, events)

	resp, err := svc.GrantTokens(context.Background(), &billing.GrantRequest{
		UserID:   7,
		Tokens:   100,
		Provider: "stripe",
		OrderID:  "ord-1",
	})
	if err != nil {
		t.Fatalf("GrantTokens() redelivery failed: %v", err)
	}

	if !resp.AlreadyProcessed {
		t.Fatal("redelivery not detected as duplicate")
	}
	if resp.Balance != 103 {
		t.Fatalf("balance = %d, want unchanged 103", resp.Balance)
	}
	if users.credited != 0 {
		t.Fatalf("duplicate credited %d tokens", users.credited)
	}
	if len(events.appended) != 0 {
		t.Fatalf("duplicate appended %d events", len(events.appended))
	}
}

func TestGrantTokens_MatchesOnTxnID(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 53}}
	events := &mockEventStore{history: []ledger.Event{
		{Kind: ledger.KindTokenPurchase, Meta: ledger.Meta{Tokens: 50, TxnID: "txn-9"}},
	}}
	svc := newBillingService(users, events)

	resp, err := svc.GrantTokens(context.Background(), &billing.GrantRequest{
		UserID:   7,
		Tokens:   50,
		Provider: "paypal",
		TxnID:    "txn-9",
	})
	if err != nil {
		t.Fatalf("GrantTokens() failed: %v", err)
	}
	if !resp.AlreadyProcessed {
		t.Fatal("txn_id redelivery not detected")
	}
}

func TestGrantTokens_NoRefsAlwaysCredits(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 3}}
	events := &mockEventStore{history: []ledger.Event{
		{Kind: ledger.KindTokenPurchase, Meta: ledger.Meta{Tokens: 100}},
	}}
	svc := newBillingService(users, events)

	resp, err := svc.GrantTokens(context.Background(), &billing.GrantRequest{
		UserID:   7,
		Tokens:   100,
		Provider: "manual",
	})
	if err != nil {
		t.Fatalf("GrantTokens() failed: %v", err)
	}
	if resp.AlreadyProcessed {
		t.Fatal("grant without references must not dedupe")
	}
	if users.credited != 100 {
		t.Fatalf("credited %d, want 100", users.credited)
	}
}

func TestGrantTokens_UserNotFound(t *testing.T) {
	svc := newBillingService(&mockUserStore{}, &mockEventStore{})

	_, err := svc.GrantTokens(context.Background(), &billing.GrantRequest{
		UserID:   42,
		Tokens:   10,
		Provider: "stripe",
	})
	if err == nil {
		t.Fatal("expected not-found error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected CategoryResourceNotFound, got %v", err)
	}
}

func TestDebitForJob_Success(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 10}}
	events := &mockEventStore{}
	svc := newBillingService(users, events)

	resp, err := svc.DebitForJob(context.Background(), 7, billing.JobDebit{
		Files:       4,
		Orientation: "landscape",
		Scale:       2,
	})
	if err != nil {
		t.Fatalf("DebitForJob() failed: %v", err)
	}

	if resp.Charged != 4 || resp.Remaining != 6 {
		t.Fatalf("got charged=%d remaining=%d, want 4/6", resp.Charged, resp.Remaining)
	}
	if len(events.appended) != 2 {
		t.Fatalf("appended %d events, want upload + token_spent", len(events.appended))
	}

	upload, spent := events.appended[0], events.appended[1]
	if upload.Kind != ledger.KindUpload || upload.Meta.Files != 4 || upload.Meta.Orientation != "landscape" {
		t.Fatalf("unexpected upload event: %+v", upload)
	}
	if spent.Kind != ledger.KindTokenSpent || spent.Meta.Tokens != 4 || spent.Meta.Reason != "upload" {
		t.Fatalf("unexpected token_spent event: %+v", spent)
	}
}

func TestDebitForJob_InsufficientBalance(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Tokens: 2}}
	events := &mockEventStore{}
	svc := newBillingService(users, events)

	_, err := svc.DebitForJob(context.Background(), 7, billing.JobDebit{Files: 5})
	if err == nil {
		t.Fatal("expected payment-required error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryPaymentRequired) {
		t.Fatalf("expected CategoryPaymentRequired, got %v", err)
	}

	var svcErr *apperrors.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if svcErr.Details["required"] != int64(5) || svcErr.Details["available"] != int64(2) {
		t.Fatalf("unexpected details: %+v", svcErr.Details)
	}

	if users.debited != 0 || len(events.appended) != 0 {
		t.Fatal("failed debit must leave no trace")
	}
}

func TestDebitForJob_NoFiles(t *testing.T) {
	svc := newBillingService(&mockUserStore{}, &mockEventStore{})

	_, err := svc.DebitForJob(context.Background(), 7, billing.JobDebit{})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected CategoryDataError, got %v", err)
	}
}
