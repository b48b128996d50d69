package userstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/picturescaler/server/pkg/identity"
)

// UserDao is a data access object that maps directly to the 'users' table in PostgreSQL.
type UserDao struct {
	bun.BaseModel  `bun:"table:users,alias:u"`
	ID             int64      `bun:"id,pk,autoincrement"`
	Email          string     `bun:"email,unique,notnull,type:varchar(255)"`
	Tokens         int64      `bun:"tokens,notnull,default:0"`
	IsAdmin        bool       `bun:"is_admin,notnull,default:false"`
	IsBanned       bool       `bun:"is_banned,notnull,default:false"`
	IsTrusted      bool       `bun:"is_trusted,notnull,default:false"`
	LastDailyClaim *time.Time `bun:"last_daily_claim"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	LastLoginAt    *time.Time `bun:"last_login_at"`
}

// toUserDao converts an identity.User to UserDao.
func toUserDao(usr *identity.User) *UserDao {
	return &UserDao{
		ID:             usr.ID,
		Email:          identity.NormalizeEmail(usr.Email),
		Tokens:         usr.Tokens,
		IsAdmin:        usr.IsAdmin,
		IsBanned:       usr.IsBanned,
		IsTrusted:      usr.IsTrusted,
		LastDailyClaim: usr.LastDailyClaim,
		CreatedAt:      usr.CreatedAt,
		LastLoginAt:    usr.LastLoginAt,
	}
}

// toUser converts a UserDao to identity.User.
func toUser(dao *UserDao) *identity.User {
	return &identity.User{
		ID:             dao.ID,
		Email:          dao.Email,
		Tokens:         dao.Tokens,
		IsAdmin:        dao.IsAdmin,
		IsBanned:       dao.IsBanned,
		IsTrusted:      dao.IsTrusted,
		LastDailyClaim: dao.LastDailyClaim,
		CreatedAt:      dao.CreatedAt,
		LastLoginAt:    dao.LastLoginAt,
	}
}
