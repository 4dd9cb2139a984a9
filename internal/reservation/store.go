// internal/reservation/store.go
package reservation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// Store persists reservations. Update is an optimistic guarded write: it
// persists the given state only if the stored status still equals expected,
// failing with fault.ErrInvalidTransition otherwise.
type Store interface {
	Insert(ctx context.Context, res *Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	Update(ctx context.Context, res *Reservation, expected Status) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Reservation, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Reservation, error)
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]*Reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reservations: make(map[uuid.UUID]*Reservation)}
}

func (s *MemoryStore) Insert(ctx context.Context, res *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[res.ID]; ok {
		return fmt.Errorf("reservation %s already exists", res.ID)
	}
	copied := *res
	s.reservations[res.ID] = &copied
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, fault.ErrNotFound)
	}
	copied := *res
	return &copied, nil
}

func (s *MemoryStore) Update(ctx context.Context, res *Reservation, expected Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.reservations[res.ID]
	if !ok {
		return fmt.Errorf("reservation %s: %w", res.ID, fault.ErrNotFound)
	}
	if current.Status != expected {
		return fmt.Errorf("reservation %s is %s, expected %s: %w",
			res.ID, current.Status, expected, fault.ErrInvalidTransition)
	}
	copied := *res
	s.reservations[res.ID] = &copied
	return nil
}

func (s *MemoryStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Reservation, error) {
	return s.list(func(r *Reservation) bool { return r.BuyerID == buyerID })
}

func (s *MemoryStore) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Reservation, error) {
	return s.list(func(r *Reservation) bool { return r.FarmerID == farmerID })
}

func (s *MemoryStore) list(keep func(*Reservation) bool) ([]*Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Reservation
	for _, res := range s.reservations {
		if keep(res) {
			copied := *res
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
