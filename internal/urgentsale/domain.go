// internal/urgentsale/domain.go
package urgentsale

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an urgent sale.
//
//	Active -> {SoldOut, Expired}
//
// Both targets are terminal. Expired is reached lazily on access once the
// best-before timestamp passes, even with stock remaining; there is no
// background sweep.
type Status string

const (
	StatusActive  Status = "Active"
	StatusSoldOut Status = "SoldOut"
	StatusExpired Status = "Expired"
)

func (s Status) Terminal() bool {
	return s == StatusSoldOut || s == StatusExpired
}

// UrgentSale is a discounted, time-boxed offer for perishable goods. The
// remaining quantity is owned by the inventory ledger; Remaining mirrors it
// on reads.
type UrgentSale struct {
	ID            uuid.UUID       `json:"id"`
	FarmerID      uuid.UUID       `json:"farmer_id"`
	ProductName   string          `json:"product_name"`
	Description   string          `json:"description,omitempty"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	ReducedPrice  decimal.Decimal `json:"reduced_price"`
	Quantity      int             `json:"quantity"`
	Remaining     int             `json:"remaining_quantity"`
	Unit          string          `json:"unit"`
	BestBefore    time.Time       `json:"best_before"`
	Reason        string          `json:"reason"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Purchase records one buyer's claim on urgent sale quantity. There is no
// approval gate; a purchase spawns its payment obligation immediately.
type Purchase struct {
	ID        uuid.UUID       `json:"id"`
	SaleID    uuid.UUID       `json:"sale_id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewUrgentSale enforces the construction invariants, chiefly
// 0 < reduced_price < original_price.
func NewUrgentSale(farmerID uuid.UUID, name string, original, reduced decimal.Decimal, quantity int, unit string, bestBefore time.Time, reason string) (*UrgentSale, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("product name must not be empty")
	}
	if !reduced.IsPositive() {
		return nil, errors.New("reduced price must be greater than zero")
	}
	if reduced.GreaterThanOrEqual(original) {
		return nil, errors.New("reduced price must be below the original price")
	}
	if quantity <= 0 {
		return nil, errors.New("quantity must be at least 1")
	}
	if bestBefore.IsZero() {
		return nil, errors.New("best-before timestamp is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("a reason for the urgent sale is required")
	}
	if unit == "" {
		unit = "kg"
	}
	return &UrgentSale{
		ID:            uuid.New(),
		FarmerID:      farmerID,
		ProductName:   name,
		OriginalPrice: original,
		ReducedPrice:  reduced,
		Quantity:      quantity,
		Remaining:     quantity,
		Unit:          unit,
		BestBefore:    bestBefore,
		Reason:        reason,
		Status:        StatusActive,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
