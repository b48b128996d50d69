package service

import (
	"context"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apperrors "github.com/picturescaler/server/pkg/app/errors"
	"github.com/picturescaler/server/pkg/identity"
	"github.com/picturescaler/server/pkg/ledger"
	"github.com/picturescaler/server/pkg/ledgerstore"
	"github.com/picturescaler/server/pkg/userstore"
)

type mockUserStore struct {
	user *identity.User
	rows []*userstore.UserWithTotals

	bannedSet  map[int64]bool
	trustedSet map[int64]bool
}

func (m *mockUserStore) GetUserByID(_ context.Context, id int64) (*identity.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, userstore.ErrUserNotFound
	}
	u := *m.user
	return &u, nil
}

func (m *mockUserStore) ListUsersWithTotals(_ context.Context, _ userstore.ListQuery) ([]*userstore.UserWithTotals, error) {
	return m.rows, nil
}

func (m *mockUserStore) SetBanned(_ context.Context, id int64, banned bool) error {
	if m.user == nil || m.user.ID != id {
		return userstore.ErrUserNotFound
	}
	if m.bannedSet == nil {
		m.bannedSet = map[int64]bool{}
	}
	m.bannedSet[id] = banned
	return nil
}

func (m *mockUserStore) SetTrusted(_ context.Context, id int64, trusted bool) error {
	if m.user == nil || m.user.ID != id {
		return userstore.ErrUserNotFound
	}
	if m.trustedSet == nil {
		m.trustedSet = map[int64]bool{}
	}
	m.trustedSet[id] = trusted
	return nil
}

type mockEventStore struct {
	events []ledger.Event
	totals ledger.UserTotals
	points []ledgerstore.SeriesPoint

	seriesCalls []seriesCall
}

type seriesCall struct {
	unit string
	from time.Time
	to   time.Time
}

func (m *mockEventStore) ListByUser(_ context.Context, _ bun.IDB, _ int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error) {
	if len(kinds) == 0 {
		if limit > 0 && len(m.events) > limit {
			return m.events[:limit], nil
		}
		return m.events, nil
	}
	var out []ledger.Event
	for _, e := range m.events {
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

func (m *mockEventStore) UserTotals(_ context.Context, _ int64) (ledger.UserTotals, error) {
	return m.totals, nil
}

func (m *mockEventStore) Series(_ context.Context, unit string, from, to time.Time) ([]ledgerstore.SeriesPoint, error) {
	m.seriesCalls = append(m.seriesCalls, seriesCall{unit: unit, from: from, to: to})
	if m.points != nil {
		return m.points, nil
	}
	return []ledgerstore.SeriesPoint{{Bucket: from}}, nil
}

func TestMe(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Email: "a@b.c", Tokens: 53}}
	events := &mockEventStore{
		totals: ledger.UserTotals{Spent: 50, Purchased: 400, Claims: 5, Rewards: 95},
		events: []ledger.Event{
			{Kind: ledger.KindTierClaim, Meta: ledger.Meta{Tier: 1, Reward: 50}},
		},
	}
	svc := NewService(users, events, zap.NewNop())

	profile, err := svc.Me(context.Background(), 7)
	if err != nil {
		t.Fatalf("Me() failed: %v", err)
	}

	if profile.Balance != 53 {
		t.Fatalf("balance = %d, want 53", profile.Balance)
	}
	if profile.FreeAllowance != 3+5+95 {
		t.Fatalf("free allowance = %d, want %d", profile.FreeAllowance, 3+5+95)
	}
	if profile.SpendLimit != 3+5+95+400 {
		t.Fatalf("spend limit = %d, want %d", profile.SpendLimit, 3+5+95+400)
	}
	if len(profile.Tiers) != 3 {
		t.Fatalf("got %d tiers, want 3", len(profile.Tiers))
	}
	if !profile.Tiers[0].Claimed || !profile.Tiers[0].Eligible {
		t.Fatalf("tier 1 should be claimed and eligible: %+v", profile.Tiers[0])
	}
	// 400 purchased clears tier 1 (300) but not tier 2 (750).
	if profile.Tiers[1].Eligible {
		t.Fatalf("tier 2 should not be eligible: %+v", profile.Tiers[1])
	}
}

func TestMe_UserNotFound(t *testing.T) {
	svc := NewService(&mockUserStore{}, &mockEventStore{}, zap.NewNop())

	_, err := svc.Me(context.Background(), 42)
	if err == nil {
		t.Fatal("expected not-found error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected CategoryResourceNotFound, got %v", err)
	}
}

func TestListUsers_FlagsSuspicious(t *testing.T) {
	users := &mockUserStore{rows: []*userstore.UserWithTotals{
		{
			User:   &identity.User{ID: 1, Email: "honest@x.y"},
			Totals: ledger.UserTotals{Spent: 3},
		},
		{
			User:   &identity.User{ID: 2, Email: "shady@x.y"},
			Totals: ledger.UserTotals{Spent: 4},
		},
		{
			User:   &identity.User{ID: 3, Email: "vip@x.y", IsTrusted: true},
			Totals: ledger.UserTotals{Spent: 1000},
		},
	}}
	svc := NewService(users, &mockEventStore{}, zap.NewNop())

	rows, err := svc.ListUsers(context.Background(), userstore.ListQuery{})
	if err != nil {
		t.Fatalf("ListUsers() failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Suspicious || !rows[1].Suspicious || rows[2].Suspicious {
		t.Fatalf("suspicious flags wrong: %v %v %v",
			rows[0].Suspicious, rows[1].Suspicious, rows[2].Suspicious)
	}
}

func TestUserDetail(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7, Email: "a@b.c", Tokens: 10}}
	events := &mockEventStore{
		totals: ledger.UserTotals{Spent: 4},
		events: []ledger.Event{
			{ID: 3, Kind: ledger.KindTokenPurchase, Meta: ledger.Meta{Tokens: 100, Provider: "stripe"}},
			{ID: 2, Kind: ledger.KindTokenSpent, Meta: ledger.Meta{Tokens: 4, Reason: "upload"}},
			{ID: 1, Kind: ledger.KindLogin},
		},
	}
	svc := NewService(users, events, zap.NewNop())

	detail, err := svc.UserDetail(context.Background(), 7)
	if err != nil {
		t.Fatalf("UserDetail() failed: %v", err)
	}

	if detail.Suspicious {
		t.Fatal("user within allowance flagged suspicious")
	}
	if len(detail.Purchases) != 1 {
		t.Fatalf("got %d purchases, want 1", len(detail.Purchases))
	}
	if detail.Purchases[0].Detail != "Purchased 100 tokens via stripe" {
		t.Fatalf("unexpected purchase detail: %q", detail.Purchases[0].Detail)
	}
	if len(detail.Activities) != 3 {
		t.Fatalf("got %d activities, want 3", len(detail.Activities))
	}
	if detail.Activities[1].Detail != "Spent 4 token(s) on upload" {
		t.Fatalf("unexpected activity detail: %q", detail.Activities[1].Detail)
	}
}

func TestMetrics_DailyRange(t *testing.T) {
	events := &mockEventStore{}
	svc := NewService(&mockUserStore{}, events, zap.NewNop())

	report, err := svc.Metrics(context.Background(), "30d")
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if report.Range != "30d" {
		t.Fatalf("range = %q, want 30d", report.Range)
	}
	if len(events.seriesCalls) != 2 {
		t.Fatalf("got %d series calls, want day + hour", len(events.seriesCalls))
	}
	if events.seriesCalls[0].unit != "day" || events.seriesCalls[1].unit != "hour" {
		t.Fatalf("unexpected units: %+v", events.seriesCalls)
	}
	if span := events.seriesCalls[0].to.Sub(events.seriesCalls[0].from); span < 29*24*time.Hour {
		t.Fatalf("daily window too short: %v", span)
	}
}

func TestMetrics_ZeroFillsDailyGaps(t *testing.T) {
	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Only yesterday has events; the report must still carry every day of
	// the window with zeroed buckets around it.
	events := &mockEventStore{points: []ledgerstore.SeriesPoint{
		{Bucket: midnight.AddDate(0, 0, -1), Uploads: 2, Files: 6},
	}}
	svc := NewService(&mockUserStore{}, events, zap.NewNop())

	report, err := svc.Metrics(context.Background(), "3d")
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if len(report.Points) != 3 {
		t.Fatalf("got %d daily points, want 3", len(report.Points))
	}
	if !report.Points[0].Bucket.Equal(midnight.AddDate(0, 0, -2)) {
		t.Fatalf("first bucket = %v", report.Points[0].Bucket)
	}
	if report.Points[0].Uploads != 0 || report.Points[2].Uploads != 0 {
		t.Fatalf("empty days not zeroed: %+v", report.Points)
	}
	if report.Points[1].Uploads != 2 || report.Points[1].Files != 6 {
		t.Fatalf("active day lost its counts: %+v", report.Points[1])
	}
	if !report.Points[2].Bucket.Equal(midnight) {
		t.Fatalf("last bucket = %v, want today", report.Points[2].Bucket)
	}
}

func TestMetrics_ClampsDays(t *testing.T) {
	events := &mockEventStore{}
	svc := NewService(&mockUserStore{}, events, zap.NewNop())

	report, err := svc.Metrics(context.Background(), "99999d")
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if report.Range != "1825d" {
		t.Fatalf("range = %q, want clamped 1825d", report.Range)
	}
}

func TestMetrics_YearlyRange(t *testing.T) {
	events := &mockEventStore{}
	svc := NewService(&mockUserStore{}, events, zap.NewNop())

	report, err := svc.Metrics(context.Background(), "5y")
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if len(report.Today) != 0 {
		t.Fatal("yearly range must not include an hourly breakdown")
	}
	if len(events.seriesCalls) != 1 || events.seriesCalls[0].unit != "year" {
		t.Fatalf("unexpected series calls: %+v", events.seriesCalls)
	}
}

func TestMetrics_InvalidRange(t *testing.T) {
	svc := NewService(&mockUserStore{}, &mockEventStore{}, zap.NewNop())

	_, err := svc.Metrics(context.Background(), "yesterday")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryDataError) {
		t.Fatalf("expected CategoryDataError, got %v", err)
	}
}

func TestModerationFlags(t *testing.T) {
	users := &mockUserStore{user: &identity.User{ID: 7}}
	svc := NewService(users, &mockEventStore{}, zap.NewNop())

	if err := svc.SetBanned(context.Background(), 7, true); err != nil {
		t.Fatalf("SetBanned() failed: %v", err)
	}
	if !users.bannedSet[7] {
		t.Fatal("ban flag not set")
	}

	if err := svc.SetTrusted(context.Background(), 7, true); err != nil {
		t.Fatalf("SetTrusted() failed: %v", err)
	}
	if !users.trustedSet[7] {
		t.Fatal("trusted flag not set")
	}

	err := svc.SetBanned(context.Background(), 99, true)
	if err == nil {
		t.Fatal("expected not-found error, got nil")
	}
	if !apperrors.Is(err, apperrors.CategoryResourceNotFound) {
		t.Fatalf("expected CategoryResourceNotFound, got %v", err)
	}
}
