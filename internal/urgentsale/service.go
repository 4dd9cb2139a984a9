// internal/urgentsale/service.go
package urgentsale

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmmarket/internal/payment"
)

// CreateParams carries the farmer-supplied fields of a new urgent sale.
type CreateParams struct {
	ProductName   string
	Description   string
	OriginalPrice decimal.Decimal
	ReducedPrice  decimal.Decimal
	Quantity      int
	Unit          string
	BestBefore    time.Time
	Reason        string
}

// Service manages the urgent sale pool. Purchases are immediate: there is no
// farmer approval gate, the stock hold is committed as soon as the payment
// obligation exists.
type Service interface {
	// Create opens a new urgent sale and registers its inventory pool.
	Create(ctx context.Context, farmerID uuid.UUID, params CreateParams) (*UrgentSale, error)

	// Get returns a sale, flipping it to Expired first if its best-before
	// timestamp has passed.
	Get(ctx context.Context, id uuid.UUID) (*UrgentSale, error)

	// List returns all sales, newest first, with lazy expiry applied.
	List(ctx context.Context) ([]*UrgentSale, error)

	// Purchase claims quantity from an active sale and spawns its payment
	// transaction. Expiry is checked before stock: a purchase against an
	// expired sale reports ErrExpired even when units remain.
	Purchase(ctx context.Context, saleID, buyerID uuid.UUID, quantity int, method payment.Method) (*Purchase, *payment.Transaction, error)
}
