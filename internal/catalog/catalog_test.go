// internal/catalog/catalog_test.go
package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmmarket/internal/fault"
)

func TestNewListingValidation(t *testing.T) {
	farmer := uuid.New()

	_, err := NewListing(farmer, "", decimal.NewFromInt(5), 10, "kg")
	assert.Error(t, err)

	_, err = NewListing(farmer, "Carrots", decimal.Zero, 10, "kg")
	assert.Error(t, err)

	_, err = NewListing(farmer, "Carrots", decimal.NewFromInt(5), -1, "kg")
	assert.Error(t, err)

	listing, err := NewListing(farmer, "Carrots", decimal.NewFromInt(5), 10, "bunch")
	require.NoError(t, err)
	assert.Equal(t, StatusAvailable, listing.Status)
	assert.Equal(t, "bunch", listing.Unit)
}

func TestMemoryCatalogLookupAndStatus(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	listing, err := NewListing(uuid.New(), "Eggs", decimal.NewFromInt(3), 30, "piece")
	require.NoError(t, err)
	cat.Add(listing)

	got, err := cat.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, got.ID)

	require.NoError(t, cat.SetStatus(ctx, listing.ID, StatusSold))
	got, err = cat.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, got.Status)

	_, err = cat.GetListing(ctx, uuid.New())
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestRemovedListingDoesNotResolve(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog()

	listing, err := NewListing(uuid.New(), "Basil", decimal.NewFromInt(2), 12, "bunch")
	require.NoError(t, err)
	cat.Add(listing)
	require.NoError(t, cat.Remove(listing.ID))

	_, err = cat.GetListing(ctx, listing.ID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	// Status flips still land, keeping in-flight reservations coherent.
	assert.NoError(t, cat.SetStatus(ctx, listing.ID, StatusAvailable))
}
