package db

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokenbay/p2p-ledger/pkg/config"
)

func setupTestDB(t *testing.T, journal string) (*sql.DB, string, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "ledger_db_test_*.db")
	require.NoError(t, err)
	tmpFile.Close()

	dbPath := tmpFile.Name()

	dbConfig := config.DatabaseConfig{Path: dbPath, JournalMode: journal}
	dbConfig.ApplyDefaults()

	sqlDB, err := NewSQLiteDBFromConfig(dbConfig)
	require.NoError(t, err)

	_, err = sqlDB.Exec(`CREATE TABLE IF NOT EXISTS test_table (id INTEGER PRIMARY KEY, value TEXT);`)
	require.NoError(t, err)

	for i := range 5000 {
		_, err = sqlDB.Exec(`INSERT INTO test_table (value) VALUES (?);`, fmt.Sprintf("value_%d", i))
		require.NoError(t, err)
	}

	cleanup := func() {
		sqlDB.Close()
		os.Remove(dbPath)
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")
	}

	return sqlDB, dbPath, cleanup
}

func TestVacuum_Modes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		journalMode string
	}{
		{name: "WAL", journalMode: "WAL"},
		{name: "NonWAL", journalMode: "TRUNCATE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db, dbPath, cleanup := setupTestDB(t, tc.journalMode)
			defer cleanup()

			initialSize, err := DBTotalSize(dbPath)
			require.NoError(t, err)

			require.NoError(t, Vacuum(db))

			finalSize, err := DBTotalSize(dbPath)
			require.NoError(t, err)

			require.LessOrEqual(t, finalSize, initialSize)
		})
	}
}

func TestDBTotalSize(t *testing.T) {
	tmpDir := t.TempDir()
	mainPath := tmpDir + "/main.db"

	t.Run("MissingFiles", func(t *testing.T) {
		size, err := DBTotalSize(tmpDir + "/does-not-exist.db")
		require.NoError(t, err)
		require.Zero(t, size)
	})

	t.Run("MainOnly", func(t *testing.T) {
		require.NoError(t, os.WriteFile(mainPath, []byte("main-db-content"), 0o644))

		size, err := DBTotalSize(mainPath)
		require.NoError(t, err)
		require.Equal(t, int64(len("main-db-content")), size)
	})

	t.Run("WithWALAndSHM", func(t *testing.T) {
		require.NoError(t, os.WriteFile(mainPath, []byte("main-db"), 0o644))
		require.NoError(t, os.WriteFile(mainPath+"-wal", []byte("wal-content"), 0o644))
		require.NoError(t, os.WriteFile(mainPath+"-shm", []byte("shm-content"), 0o644))

		size, err := DBTotalSize(mainPath)
		require.NoError(t, err)
		require.Equal(t, int64(len("main-db")+len("wal-content")+len("shm-content")), size)
	})
}

func TestRunMigrationsDB(t *testing.T) {
	db, err := NewSQLiteDB(t.TempDir() + "/migrations_test.db")
	require.NoError(t, err)
	defer db.Close()

	migrations := []Migration{
		{
			ID: "001_test",
			SQL: `
-- +migrate Down
DROP TABLE IF EXISTS things;

-- +migrate Up
CREATE TABLE things (id TEXT NOT NULL PRIMARY KEY, name TEXT);
`,
		},
	}

	require.NoError(t, RunMigrationsDB(setupTestLogger(t), db, migrations))

	// Table exists and accepts writes
	_, err = db.Exec(`INSERT INTO things (id, name) VALUES ('a', 'thing-a')`)
	require.NoError(t, err)

	// Re-running is a no-op
	require.NoError(t, RunMigrationsDB(setupTestLogger(t), db, migrations))
}

func TestRunMigrationsDB_MissingSeparator(t *testing.T) {
	db, err := NewSQLiteDB(t.TempDir() + "/migrations_bad.db")
	require.NoError(t, err)
	defer db.Close()

	err = RunMigrationsDB(setupTestLogger(t), db, []Migration{{ID: "001_bad", SQL: "CREATE TABLE x (id TEXT);"}})
	require.ErrorContains(t, err, "missing '-- +migrate Up' separator")
}
