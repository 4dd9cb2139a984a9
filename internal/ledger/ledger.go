// internal/ledger/ledger.go
package ledger

import (
	"context"

	"github.com/google/uuid"
)

// StatusHook is invoked after a pool transitions to or from empty, so the
// owning catalog can flip listing status. The hook runs outside the pool's
// critical section and its failure never undoes the adjustment.
type StatusHook func(ctx context.Context, poolID uuid.UUID, soldOut bool)

// Ledger is the single owner of available-quantity mutation. Every component
// that needs stock adjusted goes through one of these operations; nothing
// else touches the quantity fields.
//
// TryReserve is atomic per pool: two concurrent calls whose combined demand
// exceeds availability cannot both succeed.
type Ledger interface {
	// Register adopts a pool with its starting available quantity.
	Register(ctx context.Context, poolID uuid.UUID, available int) error

	// TryReserve atomically checks and decrements available quantity,
	// recording the amount as held. Fails closed with
	// fault.ErrInsufficientStock; available never goes negative.
	TryReserve(ctx context.Context, poolID uuid.UUID, quantity int) (remaining int, err error)

	// Release returns previously held units to the pool, e.g. on
	// rejection, cancellation or expiry.
	Release(ctx context.Context, poolID uuid.UUID, quantity int) (remaining int, err error)

	// Commit makes a provisional hold permanent. Stock was already removed
	// at TryReserve time; this is bookkeeping only, plus the sold-out
	// status flip when available reaches zero.
	Commit(ctx context.Context, poolID uuid.UUID, quantity int) error

	// Available reports the current available quantity of a pool.
	Available(ctx context.Context, poolID uuid.UUID) (int, error)
}
