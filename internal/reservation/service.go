// internal/reservation/service.go
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"farmmarket/internal/payment"
)

// Service drives the reservation lifecycle. Creation and the inventory hold
// are one atomic unit; no code path decrements stock without recording the
// reservation that owns the hold.
type Service interface {
	// Create claims quantity on a listing: the ledger hold and the Pending
	// reservation are committed together or not at all.
	Create(ctx context.Context, buyerID, listingID uuid.UUID, quantity int, method payment.Method, notes string) (*Reservation, error)

	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Reservation, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Reservation, error)

	// Approve moves Pending to Approved and spawns the payment obligation.
	// Only the listing's owning farmer may call it.
	Approve(ctx context.Context, id, farmerID uuid.UUID, notes string) (*Reservation, error)

	// Reject moves Pending to Rejected and returns the held quantity to
	// the ledger. A reason is required.
	Reject(ctx context.Context, id, farmerID uuid.UUID, reason string) (*Reservation, error)

	// CancelByBuyer cancels from Pending, or from Approved while the
	// linked transaction is not yet verified.
	CancelByBuyer(ctx context.Context, id, buyerID uuid.UUID) (*Reservation, error)

	// ExpireIfStale administratively cancels a Pending reservation created
	// before the cutoff. The engine has no implicit TTL; staleness is the
	// caller's policy. Returns true if the reservation was expired.
	ExpireIfStale(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error)

	// CompleteFromPayment finalizes an Approved reservation once its
	// transaction is verified. Invoked by the payment verifier only.
	CompleteFromPayment(ctx context.Context, id uuid.UUID) error
}
