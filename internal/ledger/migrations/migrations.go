package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/tokenbay/p2p-ledger/internal/db"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

//go:embed 001_initial.sql
var mig0001 string

// Migrations returns the ledger schema migrations.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			ID:  "001_initial.sql",
			SQL: mig0001,
		},
	}
}

// RunMigrations runs all migrations for the ledger tables.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	return db.RunMigrationsDB(log, database, Migrations())
}
