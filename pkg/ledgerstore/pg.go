package ledgerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/ledger"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the event log store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error {
	if len(events) == 0 {
		return nil
	}
	if idb == nil {
		idb = s.db
	}

	daos := make([]*EventDao, len(events))
	for i, e := range events {
		daos[i] = toEventDao(e)
	}

	_, err := idb.NewInsert().
		Model(&daos).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}

	for i, dao := range daos {
		events[i].ID = dao.ID
		events[i].CreatedAt = dao.CreatedAt
	}
	return nil
}

func (s *pgStore) ListByUser(ctx context.Context, idb bun.IDB, userID int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error) {
	if idb == nil {
		idb = s.db
	}

	var daos []EventDao
	query := idb.NewSelect().
		Model(&daos).
		Where("e.user_id = ?", userID).
		OrderExpr("e.id DESC")

	if len(kinds) > 0 {
		kindStrs := make([]string, len(kinds))
		for i, k := range kinds {
			kindStrs[i] = string(k)
		}
		query = query.Where("e.kind IN (?)", bun.In(kindStrs))
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]ledger.Event, len(daos))
	for i := range daos {
		events[i] = toEvent(&daos[i])
	}
	return events, nil
}

// metaSum sums an integer metadata field over events of one kind,
// skipping malformed values.
func metaSum(kind ledger.Kind, field string) string {
	return fmt.Sprintf(
		"COALESCE(SUM(CASE WHEN e.kind = '%s' AND e.meta->>'%s' ~ '^[0-9]+$' THEN (e.meta->>'%s')::bigint ELSE 0 END), 0)",
		kind, field, field,
	)
}

func (s *pgStore) UserTotals(ctx context.Context, userID int64) (ledger.UserTotals, error) {
	var totals ledger.UserTotals
	err := s.db.NewSelect().
		TableExpr("ledger_events AS e").
		ColumnExpr(metaSum(ledger.KindTokenSpent, "tokens") + " AS spent").
		ColumnExpr(metaSum(ledger.KindTokenPurchase, "tokens") + " AS purchased").
		ColumnExpr("COUNT(*) FILTER (WHERE e.kind = ?) AS claims", string(ledger.KindDailyClaim)).
		ColumnExpr(metaSum(ledger.KindRewardClaim, "tokens") + " AS rewards").
		Where("e.user_id = ?", userID).
		Scan(ctx, &totals.Spent, &totals.Purchased, &totals.Claims, &totals.Rewards)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.UserTotals{}, nil
		}
		return ledger.UserTotals{}, fmt.Errorf("failed to compute user totals: %w", err)
	}
	return totals, nil
}

func (s *pgStore) Series(ctx context.Context, unit string, from, to time.Time) ([]SeriesPoint, error) {
	switch unit {
	case "hour", "day", "year":
	default:
		return nil, fmt.Errorf("unsupported series unit %q", unit)
	}

	tokensSold := metaSum(ledger.KindTokenPurchase, "tokens")
	filesSum := metaSum(ledger.KindUpload, "files")

	var points []SeriesPoint
	err := s.db.NewSelect().
		TableExpr("ledger_events AS e").
		ColumnExpr(fmt.Sprintf("date_trunc('%s', e.created_at) AS bucket", unit)).
		ColumnExpr("COUNT(*) FILTER (WHERE e.kind = ?) AS registers", string(ledger.KindRegister)).
		ColumnExpr("COUNT(*) FILTER (WHERE e.kind = ?) AS logins", string(ledger.KindLogin)).
		ColumnExpr("COUNT(*) FILTER (WHERE e.kind = ?) AS uploads", string(ledger.KindUpload)).
		ColumnExpr(filesSum + " AS files").
		ColumnExpr(tokensSold + " AS tokens_sold").
		ColumnExpr("COUNT(DISTINCT e.user_id) FILTER (WHERE e.kind = ?) AS buyers", string(ledger.KindTokenPurchase)).
		Where("e.created_at >= ?", from).
		Where("e.created_at < ?", to).
		GroupExpr("bucket").
		OrderExpr("bucket ASC").
		Scan(ctx, &points)
	if err != nil {
		return nil, fmt.Errorf("failed to compute %s series: %w", unit, err)
	}
	return points, nil
}
