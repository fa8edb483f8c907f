package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/russross/meddler"
)

// Compile-time check that SQLStore implements the Store port.
var _ Store = (*SQLStore)(nil)

// SQLStore is the SQLite-backed Store. It works over either a *sql.DB or a
// *sql.Tx, which is how a transition's writes are made atomic: the indexer
// opens one transaction per event and hands the store a *sql.Tx.
type SQLStore struct {
	db meddler.DB
}

// NewSQLStore creates a store over the given connection or transaction.
func NewSQLStore(db meddler.DB) *SQLStore {
	return &SQLStore{db: db}
}

// isUniqueViolation reports whether err is a SQLite primary key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLStore) FindProduct(id string) (*Product, error) {
	var p Product
	err := meddler.QueryRow(s.db, &p, `SELECT * FROM product WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLStore) InsertProduct(p *Product) error {
	if err := meddler.Insert(s.db, TableProduct, p); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s: %w", p.ID, ErrProductExists)
		}
		return fmt.Errorf("failed to insert product %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateProduct(p *Product) error {
	_, err := s.db.Exec(
		`UPDATE product SET total_supply = ?, holder_count = ? WHERE id = ?`,
		p.TotalSupply.String(), p.HolderCount, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLStore) FindOwnership(id string) (*Ownership, error) {
	var o Ownership
	err := meddler.QueryRow(s.db, &o, `SELECT * FROM ownership WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ownership %s: %w", id, err)
	}
	return &o, nil
}

func (s *SQLStore) InsertOwnership(o *Ownership) error {
	if err := meddler.Insert(s.db, TableOwnership, o); err != nil {
		return fmt.Errorf("failed to insert ownership %s: %w", o.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateOwnership(o *Ownership) error {
	_, err := s.db.Exec(
		`UPDATE ownership SET balance = ?, updated_at = ?, block_number = ? WHERE id = ?`,
		o.Balance.String(), o.UpdatedAt, o.BlockNumber, o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ownership %s: %w", o.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteOwnership(id string) error {
	if _, err := s.db.Exec(`DELETE FROM ownership WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete ownership %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) FindManager(id string) (*Manager, error) {
	var m Manager
	err := meddler.QueryRow(s.db, &m, `SELECT * FROM manager WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query manager %s: %w", id, err)
	}
	return &m, nil
}

func (s *SQLStore) InsertManager(m *Manager) error {
	if err := meddler.Insert(s.db, TableManager, m); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("manager %s: %w", m.ID, ErrManagerExists)
		}
		return fmt.Errorf("failed to insert manager %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateManager(m *Manager) error {
	_, err := s.db.Exec(
		`UPDATE manager SET total_funds_managed = ? WHERE id = ?`,
		m.TotalFundsManaged.String(), m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update manager %s: %w", m.ID, err)
	}
	return nil
}

func (s *SQLStore) FindAllocation(id string) (*Allocation, error) {
	var a Allocation
	err := meddler.QueryRow(s.db, &a, `SELECT * FROM manager_allocation WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLStore) InsertAllocation(a *Allocation) error {
	if err := meddler.Insert(s.db, TableAllocation, a); err != nil {
		return fmt.Errorf("failed to insert allocation %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateAllocation(a *Allocation) error {
	_, err := s.db.Exec(
		`UPDATE manager_allocation SET token_balance = ?, updated_at = ? WHERE id = ?`,
		a.TokenBalance.String(), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update allocation %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLStore) InsertTransactionLog(entry *TransactionLog) error {
	if err := meddler.Insert(s.db, TableTransactionLog, entry); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction log %s: %w", entry.ID, ErrDuplicateLog)
		}
		return fmt.Errorf("failed to insert transaction log %s: %w", entry.ID, err)
	}
	return nil
}
