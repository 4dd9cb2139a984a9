// internal/catalog/memory.go
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// MemoryCatalog is an in-process Service implementation. It backs tests and
// single-binary deployments where the catalog collaborator is not split out.
type MemoryCatalog struct {
	mu       sync.RWMutex
	listings map[uuid.UUID]*Listing
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{listings: make(map[uuid.UUID]*Listing)}
}

// Add registers a listing. Open reservations reference listings by ID, so a
// listing is never hard-deleted; Remove below marks it removed instead.
func (c *MemoryCatalog) Add(listing *Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings[listing.ID] = listing
}

func (c *MemoryCatalog) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	listing, ok := c.listings[id]
	if !ok || listing.Removed {
		return nil, fmt.Errorf("listing %s: %w", id, fault.ErrNotFound)
	}
	copied := *listing
	return &copied, nil
}

func (c *MemoryCatalog) SetStatus(ctx context.Context, id uuid.UUID, status ListingStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	listing, ok := c.listings[id]
	if !ok {
		return fmt.Errorf("listing %s: %w", id, fault.ErrNotFound)
	}
	listing.Status = status
	return nil
}

// Remove soft-removes a listing so it no longer resolves, without breaking
// the back-references held by reservations already in flight.
func (c *MemoryCatalog) Remove(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	listing, ok := c.listings[id]
	if !ok {
		return fmt.Errorf("listing %s: %w", id, fault.ErrNotFound)
	}
	listing.Removed = true
	return nil
}
