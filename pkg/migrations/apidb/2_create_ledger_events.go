package apidb

import (
	"context"
	"log"

	"github.com/picturescaler/server/pkg/ledgerstore"
	mghelper "github.com/picturescaler/server/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating ledger_events table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.EventDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &ledgerstore.EventDao{}, "user_id", "kind", "created_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping ledger_events table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.EventDao{})
	})
}
