// internal/reservation/domain.go
package reservation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmmarket/internal/catalog"
	"farmmarket/internal/payment"
)

// Status is the lifecycle state of a reservation.
//
//	Pending  -> {Approved, Rejected, Cancelled}
//	Approved -> {Completed, Cancelled}
//
// Rejected, Completed and Cancelled are terminal. The transition table below
// is the sole authority for legal moves.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Reservation is a buyer's provisional claim on listing quantity. The unit
// price is snapshotted at creation and immune to later listing price edits;
// the held quantity stays removed from available stock for the reservation's
// non-terminal lifetime.
type Reservation struct {
	ID              uuid.UUID       `json:"id"`
	ListingID       uuid.UUID       `json:"listing_id"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	FarmerID        uuid.UUID       `json:"farmer_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Total           decimal.Decimal `json:"total_amount"`
	PaymentMethod   payment.Method  `json:"payment_method"`
	BuyerNotes      string          `json:"buyer_notes,omitempty"`
	FarmerNotes     string          `json:"farmer_notes,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// NewReservation snapshots the listing price and enforces the construction
// invariants: positive quantity, positive unit price, positive total.
func NewReservation(buyerID uuid.UUID, listing *catalog.Listing, quantity int, method payment.Method, notes string) (*Reservation, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be at least 1")
	}
	if !listing.Price.IsPositive() {
		return nil, errors.New("listing price must be greater than zero")
	}
	if method == "" {
		method = payment.MethodCash
	}
	if !method.Valid() {
		return nil, errors.New("unknown payment method")
	}
	return &Reservation{
		ID:            uuid.New(),
		ListingID:     listing.ID,
		BuyerID:       buyerID,
		FarmerID:      listing.FarmerID,
		Quantity:      quantity,
		UnitPrice:     listing.Price,
		Total:         listing.Price.Mul(decimal.NewFromInt(int64(quantity))),
		PaymentMethod: method,
		BuyerNotes:    notes,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
