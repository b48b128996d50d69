package ledgerstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/ledger"
)

// EventDao is a data access object that maps directly to the 'ledger_events' table in PostgreSQL.
type EventDao struct {
	bun.BaseModel `bun:"table:ledger_events,alias:e"`
	ID            int64       `bun:"id,pk,autoincrement"`
	UserID        *int64      `bun:"user_id"`
	Kind          string      `bun:"kind,notnull,type:varchar(32)"`
	Meta          ledger.Meta `bun:"meta,type:jsonb"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,default:current_timestamp"`
}

// toEventDao converts a ledger.Event to EventDao.
func toEventDao(e *ledger.Event) *EventDao {
	dao := &EventDao{
		UserID: e.UserID,
		Kind:   string(e.Kind),
		Meta:   e.Meta,
	}
	if !e.CreatedAt.IsZero() {
		dao.CreatedAt = e.CreatedAt
	}
	return dao
}

// toEvent converts an EventDao to ledger.Event.
func toEvent(dao *EventDao) ledger.Event {
	return ledger.Event{
		ID:        dao.ID,
		UserID:    dao.UserID,
		Kind:      ledger.Kind(dao.Kind),
		Meta:      dao.Meta,
		CreatedAt: dao.CreatedAt,
	}
}
