package ledger

import "fmt"

// Compile-time check that MemStore implements the Store port.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used for reducer unit tests. Records are
// copied on the way in and out so tests cannot alias internal state.
// It is not safe for concurrent use.
type MemStore struct {
	Products        map[string]*Product
	Ownerships      map[string]*Ownership
	Managers        map[string]*Manager
	Allocations     map[string]*Allocation
	TransactionLogs map[string]*TransactionLog
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		Products:        make(map[string]*Product),
		Ownerships:      make(map[string]*Ownership),
		Managers:        make(map[string]*Manager),
		Allocations:     make(map[string]*Allocation),
		TransactionLogs: make(map[string]*TransactionLog),
	}
}

func (s *MemStore) FindProduct(id string) (*Product, error) {
	p, ok := s.Products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) InsertProduct(p *Product) error {
	if _, ok := s.Products[p.ID]; ok {
		return fmt.Errorf("product %s: %w", p.ID, ErrProductExists)
	}
	cp := *p
	s.Products[p.ID] = &cp
	return nil
}

func (s *MemStore) UpdateProduct(p *Product) error {
	cp := *p
	s.Products[p.ID] = &cp
	return nil
}

func (s *MemStore) FindOwnership(id string) (*Ownership, error) {
	o, ok := s.Ownerships[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *MemStore) InsertOwnership(o *Ownership) error {
	cp := *o
	s.Ownerships[o.ID] = &cp
	return nil
}

func (s *MemStore) UpdateOwnership(o *Ownership) error {
	cp := *o
	s.Ownerships[o.ID] = &cp
	return nil
}

func (s *MemStore) DeleteOwnership(id string) error {
	delete(s.Ownerships, id)
	return nil
}

func (s *MemStore) FindManager(id string) (*Manager, error) {
	m, ok := s.Managers[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *MemStore) InsertManager(m *Manager) error {
	if _, ok := s.Managers[m.ID]; ok {
		return fmt.Errorf("manager %s: %w", m.ID, ErrManagerExists)
	}
	cp := *m
	s.Managers[m.ID] = &cp
	return nil
}

func (s *MemStore) UpdateManager(m *Manager) error {
	cp := *m
	s.Managers[m.ID] = &cp
	return nil
}

func (s *MemStore) FindAllocation(id string) (*Allocation, error) {
	a, ok := s.Allocations[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) InsertAllocation(a *Allocation) error {
	cp := *a
	s.Allocations[a.ID] = &cp
	return nil
}

func (s *MemStore) UpdateAllocation(a *Allocation) error {
	cp := *a
	s.Allocations[a.ID] = &cp
	return nil
}

func (s *MemStore) InsertTransactionLog(entry *TransactionLog) error {
	if _, ok := s.TransactionLogs[entry.ID]; ok {
		return fmt.Errorf("transaction log %s: %w", entry.ID, ErrDuplicateLog)
	}
	cp := *entry
	s.TransactionLogs[entry.ID] = &cp
	return nil
}
