package db

import (
	"database/sql"
	"math/big"
	"testing"

	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

type bigintRow struct {
	ID     int64    `meddler:"id,pk"`
	Amount *big.Int `meddler:"amount,bigint"`
}

func setupBigintTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := NewSQLiteDB(t.TempDir() + "/bigint_test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE amounts (id INTEGER PRIMARY KEY AUTOINCREMENT, amount TEXT)`)
	require.NoError(t, err)

	return db
}

func TestBigIntMeddler_RoundTrip(t *testing.T) {
	db := setupBigintTestDB(t)

	// 2^200, far beyond int64 range
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	tests := []struct {
		name   string
		amount *big.Int
	}{
		{name: "zero", amount: big.NewInt(0)},
		{name: "small", amount: big.NewInt(42)},
		{name: "uint256 scale", amount: huge},
		{name: "nil stored as NULL", amount: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &bigintRow{Amount: tt.amount}
			require.NoError(t, meddler.Insert(db, "amounts", row))

			var got bigintRow
			err := meddler.QueryRow(db, &got, `SELECT * FROM amounts WHERE id = ?`, row.ID)
			require.NoError(t, err)

			if tt.amount == nil {
				require.Nil(t, got.Amount)
				return
			}
			require.NotNil(t, got.Amount)
			require.Zero(t, tt.amount.Cmp(got.Amount))
		})
	}
}

func TestBigIntMeddler_RejectsGarbage(t *testing.T) {
	db := setupBigintTestDB(t)

	_, err := db.Exec(`INSERT INTO amounts (amount) VALUES ('not-a-number')`)
	require.NoError(t, err)

	var got bigintRow
	err = meddler.QueryRow(db, &got, `SELECT * FROM amounts ORDER BY id DESC LIMIT 1`)
	require.ErrorContains(t, err, "invalid big integer value")
}
