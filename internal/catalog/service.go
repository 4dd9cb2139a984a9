// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service is the narrow boundary the engine uses to talk to the listing
// catalog. Listing CRUD itself lives outside the engine; the engine only
// reads listings and asks for status flips when stock runs out or returns.
type Service interface {
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	SetStatus(ctx context.Context, id uuid.UUID, status ListingStatus) error
}
