// internal/payment/store.go
package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// Store persists transactions. Update is an optimistic guarded write: it
// persists the given state only if the stored status still equals expected,
// otherwise it fails with fault.ErrInvalidTransition. That guard is what
// makes every transition safe under concurrent callers without a lock.
type Store interface {
	Insert(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByOrigin(ctx context.Context, origin Origin, originID uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, tx *Transaction, expected Status) error
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*Transaction
	byOrigin     map[Origin]map[uuid.UUID]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[uuid.UUID]*Transaction),
		byOrigin:     make(map[Origin]map[uuid.UUID]uuid.UUID),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[tx.ID]; ok {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	if origins, ok := s.byOrigin[tx.Origin]; ok {
		if _, dup := origins[tx.OriginID]; dup {
			return fmt.Errorf("transaction for %s %s already exists", tx.Origin, tx.OriginID)
		}
	} else {
		s.byOrigin[tx.Origin] = make(map[uuid.UUID]uuid.UUID)
	}

	copied := *tx
	s.transactions[tx.ID] = &copied
	s.byOrigin[tx.Origin][tx.OriginID] = tx.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, fault.ErrNotFound)
	}
	copied := *tx
	return &copied, nil
}

func (s *MemoryStore) GetByOrigin(ctx context.Context, origin Origin, originID uuid.UUID) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byOrigin[origin][originID]
	if !ok {
		return nil, fmt.Errorf("transaction for %s %s: %w", origin, originID, fault.ErrNotFound)
	}
	copied := *s.transactions[id]
	return &copied, nil
}

func (s *MemoryStore) Update(ctx context.Context, tx *Transaction, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.transactions[tx.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, fault.ErrNotFound)
	}
	if current.Status != expected {
		return fmt.Errorf("transaction %s is %s, expected %s: %w",
			tx.ID, current.Status, expected, fault.ErrInvalidTransition)
	}
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}
