// internal/payment/service.go
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Completer finalizes the origin entity once its transaction is verified.
// The reservation service implements this; registering it here keeps the
// package dependency one-way.
type Completer interface {
	CompleteFromPayment(ctx context.Context, originID uuid.UUID) error
}

// Service tracks payment obligations from creation through receipt
// verification.
type Service interface {
	// Create spawns the obligation for an approved reservation or an
	// urgent sale purchase, in AwaitingPayment.
	Create(ctx context.Context, origin Origin, originID, buyerID, farmerID uuid.UUID, amount decimal.Decimal, method Method) (*Transaction, error)

	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByOrigin(ctx context.Context, origin Origin, originID uuid.UUID) (*Transaction, error)

	// SubmitReceipt stores the buyer's proof-of-payment reference. Legal
	// from AwaitingPayment, and from Disputed as the explicit re-open path.
	SubmitReceipt(ctx context.Context, id, buyerID uuid.UUID, receiptRef, notes string) (*Transaction, error)

	// Verify records the farmer's decision on a submitted receipt.
	// Approval finalizes the origin through its registered Completer.
	Verify(ctx context.Context, id, farmerID uuid.UUID, decision Decision, notes string) (*Transaction, error)

	// CancelForOrigin voids an unverified obligation when its origin is
	// cancelled. Fails with fault.ErrAlreadyFinalized once Verified.
	CancelForOrigin(ctx context.Context, origin Origin, originID uuid.UUID) error

	// RegisterCompleter wires the finalizer invoked when a transaction
	// of the given origin is verified.
	RegisterCompleter(origin Origin, c Completer)
}
