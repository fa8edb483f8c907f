package ledger

import "errors"

// Store errors surfaced to the reducer and dispatcher.
var (
	// ErrDuplicateLog signals a transaction-log insert with an already seen
	// (txHash, logIndex) key. The transition must be abandoned without side
	// effects.
	ErrDuplicateLog = errors.New("duplicate transaction log entry")

	// ErrProductExists signals a deployment event for an address that already
	// has a product row. Deploy events are unique per address, so this is fatal.
	ErrProductExists = errors.New("product already exists")

	// ErrManagerExists is the manager analogue of ErrProductExists.
	ErrManagerExists = errors.New("manager already exists")
)

// Store is the narrow persistence port the reducer operates through. Find
// methods return (nil, nil) when no record exists. Implementations must map
// primary key violations to the sentinel errors above.
type Store interface {
	FindProduct(id string) (*Product, error)
	InsertProduct(p *Product) error
	UpdateProduct(p *Product) error

	FindOwnership(id string) (*Ownership, error)
	InsertOwnership(o *Ownership) error
	UpdateOwnership(o *Ownership) error
	DeleteOwnership(id string) error

	FindManager(id string) (*Manager, error)
	InsertManager(m *Manager) error
	UpdateManager(m *Manager) error

	FindAllocation(id string) (*Allocation, error)
	InsertAllocation(a *Allocation) error
	UpdateAllocation(a *Allocation) error

	InsertTransactionLog(entry *TransactionLog) error
}
