// internal/catalog/domain.go
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusAvailable ListingStatus = "Available"
	StatusReserved  ListingStatus = "Reserved"
	StatusSold      ListingStatus = "Sold"
)

// Unit tags for divisible and countable goods.
const (
	UnitKilogram = "kg"
	UnitGram     = "g"
	UnitBasket   = "basket"
	UnitBag      = "bag"
	UnitPiece    = "piece"
	UnitBunch    = "bunch"
	UnitLiter    = "liter"
)

// Listing is a farmer's sellable product entry. Available quantity is owned
// by the inventory ledger once the listing is registered there; the catalog
// tracks the descriptive fields and the status flips the ledger requests.
type Listing struct {
	ID          uuid.UUID       `json:"id"`
	FarmerID    uuid.UUID       `json:"farmer_id"`
	ProductName string          `json:"product_name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Unit        string          `json:"unit"`
	ImageURL    string          `json:"image_url,omitempty"`
	Status      ListingStatus   `json:"status"`
	Removed     bool            `json:"removed,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewListing validates the listing invariants at construction so an invalid
// listing cannot exist: positive price, non-negative quantity, non-empty name.
func NewListing(farmerID uuid.UUID, name string, price decimal.Decimal, quantity int, unit string) (*Listing, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("product name must not be empty")
	}
	if !price.IsPositive() {
		return nil, errors.New("price must be greater than zero")
	}
	if quantity < 0 {
		return nil, errors.New("quantity must not be negative")
	}
	if unit == "" {
		unit = UnitKilogram
	}
	return &Listing{
		ID:          uuid.New(),
		FarmerID:    farmerID,
		ProductName: name,
		Price:       price,
		Quantity:    quantity,
		Unit:        unit,
		Status:      StatusAvailable,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
