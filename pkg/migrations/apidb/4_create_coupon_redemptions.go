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
		log.Println("creating coupon_redemptions table...")
		if err := mghelper.CreateSchema(ctx, db, &couponstore.RedemptionDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &couponstore.RedemptionDao{}, "redeemed_at"); err != nil {
			return err
		}
		// One redemption per (coupon, user), enforced at the database
		// level so racing transactions cannot both commit.
		_, err := db.NewCreateIndex().
			Model(&couponstore.RedemptionDao{}).
			Index("idx_coupon_redemptions_coupon_id_user_id").
			Column("coupon_id", "user_id").
			Unique().
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping coupon_redemptions table...")
		return mghelper.DropTables(ctx, db, &couponstore.RedemptionDao{})
	})
}
