// Package ledgerstore persists the append-only event log. Rows are only
// ever inserted; there is deliberately no update or delete operation.
package ledgerstore

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/ledger"
)

// Store defines the interface for event log persistence
type Store interface {
	// Append inserts events. Balance-affecting events must be appended on
	// the same transaction handle that mutated the balance.
	Append(ctx context.Context, idb bun.IDB, events ...*ledger.Event) error

	// ListByUser returns a user's newest events, optionally restricted to
	// the given kinds. Results are newest first.
	ListByUser(ctx context.Context, idb bun.IDB, userID int64, limit int, kinds ...ledger.Kind) ([]ledger.Event, error)

	// UserTotals computes the per-user ledger sums in SQL.
	UserTotals(ctx context.Context, userID int64) (ledger.UserTotals, error)

	// Series buckets platform activity between from (inclusive) and to
	// (exclusive). Unit is "hour", "day" or "year".
	Series(ctx context.Context, unit string, from, to time.Time) ([]SeriesPoint, error)
}

// SeriesPoint is one time bucket of platform activity.
type SeriesPoint struct {
	Bucket     time.Time `json:"bucket"`
	Registers  int64     `json:"registers"`
	Logins     int64     `json:"logins"`
	Uploads    int64     `json:"uploads"`
	Files      int64     `json:"files"`
	TokensSold int64     `json:"tokens_sold"`
	Buyers     int64     `json:"token_buyers"`
}
