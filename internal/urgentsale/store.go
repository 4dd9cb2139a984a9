// internal/urgentsale/store.go
package urgentsale

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// Store persists urgent sales and their purchases. Update is guarded by the
// status the caller read, so concurrent terminal flips surface as
// fault.ErrInvalidTransition instead of silently overwriting each other.
type Store interface {
	Insert(ctx context.Context, sale *UrgentSale) error
	Get(ctx context.Context, id uuid.UUID) (*UrgentSale, error)
	Update(ctx context.Context, sale *UrgentSale, expected Status) error
	List(ctx context.Context) ([]*UrgentSale, error)
	InsertPurchase(ctx context.Context, p *Purchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error)
	DeletePurchase(ctx context.Context, id uuid.UUID) error
}

type MemoryStore struct {
	mu        sync.RWMutex
	sales     map[uuid.UUID]*UrgentSale
	purchases map[uuid.UUID]*Purchase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sales:     make(map[uuid.UUID]*UrgentSale),
		purchases: make(map[uuid.UUID]*Purchase),
	}
}

func (s *MemoryStore) Insert(_ context.Context, sale *UrgentSale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[sale.ID]; ok {
		return fmt.Errorf("urgent sale %s already exists", sale.ID)
	}
	cp := *sale
	s.sales[sale.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*UrgentSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("urgent sale %s: %w", id, fault.ErrNotFound)
	}
	cp := *sale
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, sale *UrgentSale, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sales[sale.ID]
	if !ok {
		return fmt.Errorf("urgent sale %s: %w", sale.ID, fault.ErrNotFound)
	}
	if stored.Status != expected {
		return fmt.Errorf("urgent sale %s moved to %s: %w", sale.ID, stored.Status, fault.ErrInvalidTransition)
	}
	cp := *sale
	s.sales[sale.ID] = &cp
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*UrgentSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*UrgentSale, 0, len(s.sales))
	for _, sale := range s.sales {
		cp := *sale
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertPurchase(_ context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.purchases[p.ID]; ok {
		return fmt.Errorf("purchase %s already exists", p.ID)
	}
	cp := *p
	s.purchases[p.ID] = &cp
	return nil
}

// DeletePurchase undoes an insert whose transaction never materialized.
// Deleting an absent purchase is a no-op.
func (s *MemoryStore) DeletePurchase(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.purchases, id)
	return nil
}

func (s *MemoryStore) GetPurchase(_ context.Context, id uuid.UUID) (*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.purchases[id]
	if !ok {
		return nil, fmt.Errorf("purchase %s: %w", id, fault.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}
