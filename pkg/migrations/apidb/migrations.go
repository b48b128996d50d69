// Package apidb holds all the migrations for the API database
package apidb

import "github.com/uptrace/bun/migrate"

// Migrations is the collection each numbered migration file registers into.
var Migrations = migrate.NewMigrations()
