package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/tokenbay/p2p-ledger/internal/logger"
)

const (
	upSeparator   = "-- +migrate Up"
	downSeparator = "-- +migrate Down"
)

// Migration is one embedded SQL migration. The SQL carries both directions,
// separated by the sql-migrate Up/Down markers.
type Migration struct {
	ID  string
	SQL string
}

// RunMigrationsDB applies all pending up migrations to the database.
// Already-applied migrations are tracked by sql-migrate and skipped.
func RunMigrationsDB(log *logger.Logger, db *sql.DB, migrations []Migration) error {
	source := &migrate.MemoryMigrationSource{}

	for _, m := range migrations {
		parsed, err := splitMigration(m)
		if err != nil {
			return err
		}

		source.Migrations = append(source.Migrations, parsed)
	}

	applied, err := migrate.Exec(db, "sqlite3", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if applied > 0 {
		log.Infow("applied migrations", "count", applied, "total", len(migrations))
	}

	return nil
}

// splitMigration separates a migration's SQL into its up and down statements.
func splitMigration(m Migration) (*migrate.Migration, error) {
	parts := strings.Split(m.SQL, upSeparator)
	if len(parts) < 2 {
		return nil, fmt.Errorf("migration %s missing '%s' separator", m.ID, upSeparator)
	}

	down := parts[0]
	if idx := strings.Index(down, downSeparator); idx != -1 {
		down = down[idx+len(downSeparator):]
	}

	return &migrate.Migration{
		Id:   m.ID,
		Up:   []string{strings.TrimSpace(parts[1])},
		Down: []string{strings.TrimSpace(down)},
	}, nil
}
