package apidb

import (
	"context"
	"log"

	"github.com/picturescaler/server/pkg/couponstore"
	mghelper "github.com/picturescaler/server/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating coupons table...")
		if err := mghelper.CreateSchema(ctx, db, &couponstore.CouponDao{}); err != nil {
			return err
		}
		// Create indexes
		return mghelper.CreateModelIndexes(ctx, db, &couponstore.CouponDao{}, "expires_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping coupons table...")
		return mghelper.DropTables(ctx, db, &couponstore.CouponDao{})
	})
}
