// internal/payment/domain.go
package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payment obligation.
//
//	AwaitingPayment -> ReceiptSubmitted -> {Verified, Disputed}
//
// Verified is terminal. Disputed can be re-opened to ReceiptSubmitted by the
// buyer submitting a fresh receipt (a manual override, never auto-retried).
// Cancelled is reached only through the owning reservation being cancelled
// before verification.
type Status string

const (
	StatusAwaitingPayment  Status = "AwaitingPayment"
	StatusReceiptSubmitted Status = "ReceiptSubmitted"
	StatusVerified         Status = "Verified"
	StatusDisputed         Status = "Disputed"
	StatusCancelled        Status = "Cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusCancelled
}

// Origin says which flow spawned the transaction.
type Origin string

const (
	OriginReservation Origin = "reservation"
	OriginUrgentSale  Origin = "urgent_sale"
)

// Method tags how the buyer paid. The engine never processes the payment
// itself; the tag travels with the obligation for the farmer's records.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
	MethodOther        Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoney, MethodOther:
		return true
	}
	return false
}

// Decision is the farmer's verdict on a submitted receipt.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDispute Decision = "dispute"
)

// Transaction is the payment obligation spawned by an approved reservation
// or an urgent sale purchase. Amount is copied from its origin at creation
// and never edited afterward; renegotiation means a new pair, preserving the
// audit trail.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	Origin            Origin          `json:"origin"`
	OriginID          uuid.UUID       `json:"origin_id"`
	BuyerID           uuid.UUID       `json:"buyer_id"`
	FarmerID          uuid.UUID       `json:"farmer_id"`
	Amount            decimal.Decimal `json:"amount"`
	Method            Method          `json:"payment_method"`
	ReceiptRef        string          `json:"receipt_ref,omitempty"`
	ReceiptNotes      string          `json:"receipt_notes,omitempty"`
	VerificationNotes string          `json:"verification_notes,omitempty"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	VerifiedAt        *time.Time      `json:"verified_at,omitempty"`
}

// NewTransaction enforces the construction invariants: positive amount,
// known method, distinct known parties.
func NewTransaction(origin Origin, originID, buyerID, farmerID uuid.UUID, amount decimal.Decimal, method Method) (*Transaction, error) {
	if originID == uuid.Nil || buyerID == uuid.Nil || farmerID == uuid.Nil {
		return nil, errors.New("transaction references must not be empty")
	}
	if !amount.IsPositive() {
		return nil, errors.New("transaction amount must be greater than zero")
	}
	if !method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", method)
	}
	return &Transaction{
		ID:        uuid.New(),
		Origin:    origin,
		OriginID:  originID,
		BuyerID:   buyerID,
		FarmerID:  farmerID,
		Amount:    amount,
		Method:    method,
		Status:    StatusAwaitingPayment,
		CreatedAt: time.Now().UTC(),
	}, nil
}
