package ledger

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/russross/meddler"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// TransactionFilter narrows transaction log listings. Zero values mean "no
// filter". Addresses are matched against their lower-cased key form.
type TransactionFilter struct {
	User     string
	Contract string
	Type     string
	Limit    int
	Offset   int
}

// Stats summarizes the derived state for the stats endpoint.
type Stats struct {
	Products     int64 `json:"products"`
	Managers     int64 `json:"managers"`
	Holders      int64 `json:"holders"`
	Transactions int64 `json:"transactions"`
}

// Queries is the read-only view over the derived tables, used by the API.
// It runs against the live connection, not per-event transactions.
type Queries struct {
	db *sql.DB
}

// NewQueries creates a read-only query layer over the ledger database.
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListProducts returns products ordered by creation block.
func (q *Queries) ListProducts(limit, offset int) ([]*Product, error) {
	limit, offset = clampPage(limit, offset)

	var products []*Product
	err := meddler.QueryAll(q.db, &products,
		`SELECT * FROM product ORDER BY block_number ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one product by its lower-cased address key, or nil.
func (q *Queries) GetProduct(id string) (*Product, error) {
	return NewSQLStore(q.db).FindProduct(strings.ToLower(id))
}

// ListProductHolders returns the current positive P2P_TOKEN balances for a product.
func (q *Queries) ListProductHolders(productID string, limit, offset int) ([]*Ownership, error) {
	limit, offset = clampPage(limit, offset)

	var holders []*Ownership
	err := meddler.QueryAll(q.db, &holders,
		`SELECT * FROM ownership WHERE product_id = ? AND asset_type = ?
		 ORDER BY user_address ASC LIMIT ? OFFSET ?`,
		strings.ToLower(productID), AssetP2PToken, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list holders for product %s: %w", productID, err)
	}
	return holders, nil
}

// ListManagers returns managers ordered by creation block.
func (q *Queries) ListManagers(limit, offset int) ([]*Manager, error) {
	limit, offset = clampPage(limit, offset)

	var managers []*Manager
	err := meddler.QueryAll(q.db, &managers,
		`SELECT * FROM manager ORDER BY block_number ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	return managers, nil
}

// GetManager returns one manager by its lower-cased address key, or nil.
func (q *Queries) GetManager(id string) (*Manager, error) {
	return NewSQLStore(q.db).FindManager(strings.ToLower(id))
}

// ListManagerAllocations returns a manager's project token allocations.
func (q *Queries) ListManagerAllocations(managerID string) ([]*Allocation, error) {
	var allocations []*Allocation
	err := meddler.QueryAll(q.db, &allocations,
		`SELECT * FROM manager_allocation WHERE manager_address = ? ORDER BY project_token ASC`,
		strings.ToLower(managerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations for manager %s: %w", managerID, err)
	}
	return allocations, nil
}

// ListFundBalances returns the current positive FUND balances for a manager.
func (q *Queries) ListFundBalances(managerID string, limit, offset int) ([]*Ownership, error) {
	limit, offset = clampPage(limit, offset)

	var balances []*Ownership
	err := meddler.QueryAll(q.db, &balances,
		`SELECT * FROM ownership WHERE product_id = ? AND asset_type = ?
		 ORDER BY user_address ASC LIMIT ? OFFSET ?`,
		strings.ToLower(managerID), AssetFund, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list fund balances for manager %s: %w", managerID, err)
	}
	return balances, nil
}

// transactionWhere builds the WHERE clause and args for a filter.
func transactionWhere(f TransactionFilter) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)

	if f.User != "" {
		conditions = append(conditions, "user_address = ?")
		args = append(args, strings.ToLower(f.User))
	}
	if f.Contract != "" {
		conditions = append(conditions, "contract_address = ?")
		args = append(args, strings.ToLower(f.Contract))
	}
	if f.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, strings.ToUpper(f.Type))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListTransactions returns audit rows newest first, honoring the filter.
func (q *Queries) ListTransactions(f TransactionFilter) ([]*TransactionLog, error) {
	where, args := transactionWhere(f)
	limit, offset := clampPage(f.Limit, f.Offset)
	args = append(args, limit, offset)

	var entries []*TransactionLog
	err := meddler.QueryAll(q.db, &entries,
		`SELECT * FROM transaction_logs`+where+
			` ORDER BY block_number DESC, log_index DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return entries, nil
}

// CountTransactions returns the total number of audit rows matching the filter.
func (q *Queries) CountTransactions(f TransactionFilter) (int64, error) {
	where, args := transactionWhere(f)

	var count int64
	err := q.db.QueryRow(`SELECT COUNT(*) FROM transaction_logs`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// GetStats returns row counts across the derived tables.
func (q *Queries) GetStats() (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM product`, &stats.Products},
		{`SELECT COUNT(*) FROM manager`, &stats.Managers},
		{`SELECT COUNT(*) FROM ownership WHERE asset_type = '` + AssetP2PToken + `'`, &stats.Holders},
		{`SELECT COUNT(*) FROM transaction_logs`, &stats.Transactions},
	}

	for _, c := range counts {
		if err := q.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
	}

	return stats, nil
}
