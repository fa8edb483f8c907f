package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/tokenbay/p2p-ledger/internal/db"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

//go:embed 001_sync_state.sql
var mig0001 string

// Migrations returns the sync checkpoint schema migrations.
func Migrations() []db.Migration {
	return []db.Migration{
		{
			ID:  "001_sync_state.sql",
			SQL: mig0001,
		},
	}
}

// RunMigrations runs all migrations for the sync checkpoint table.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	return db.RunMigrationsDB(log, database, Migrations())
}
