// tests/integration/main_test.go
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"farmmarket/internal/catalog"
	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/ledger"
	"farmmarket/internal/payment"
	"farmmarket/internal/reservation"
	"farmmarket/internal/urgentsale"
)

type suite struct {
	server  *httptest.Server
	catalog *catalog.MemoryCatalog
	ledger  ledger.Ledger
	farmer  uuid.UUID
	buyer   uuid.UUID
}

func setup(t *testing.T) *suite {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := log.WithField("test", true)

	dispatcher := event.NewDispatcher(event.LogSink{Log: entry}, entry)
	journal := eventlog.NewMemoryJournal()
	cat := catalog.NewMemoryCatalog()
	ldg := ledger.NewMemoryLedger(func(ctx context.Context, poolID uuid.UUID, soldOut bool) {
		status := catalog.StatusAvailable
		if soldOut {
			status = catalog.StatusSold
		}
		_ = cat.SetStatus(ctx, poolID, status)
	})

	payments := payment.NewService(payment.NewMemoryStore(), journal, dispatcher, entry)
	reservations := reservation.NewService(reservation.NewMemoryStore(), ldg, cat, payments, journal, dispatcher, entry)
	payments.RegisterCompleter(payment.OriginReservation, reservations)
	urgentSales := urgentsale.NewService(urgentsale.NewMemoryStore(), ldg, payments, journal, dispatcher,
		rate.NewLimiter(rate.Inf, 0), entry)

	r := chi.NewRouter()
	r.Mount("/reservations", reservation.NewHandler(reservations).Routes())
	r.Mount("/transactions", payment.NewHandler(payments).Routes())
	r.Mount("/urgent-sales", urgentsale.NewHandler(urgentSales).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &suite{
		server:  server,
		catalog: cat,
		ledger:  ldg,
		farmer:  uuid.New(),
		buyer:   uuid.New(),
	}
}

func (s *suite) addListing(t *testing.T, quantity int) *catalog.Listing {
	t.Helper()
	// Only the catalog knows the listing; the engine adopts its pool on
	// the first reserve, as in production.
	listing, err := catalog.NewListing(s.farmer, "Sweet corn", decimal.NewFromInt(6), quantity, "piece")
	require.NoError(t, err)
	s.catalog.Add(listing)
	return listing
}

func (s *suite) do(t *testing.T, method, path string, caller uuid.UUID, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", caller.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &out)
	}
	return resp, out
}

func TestFullReservationFlow(t *testing.T) {
	s := setup(t)
	listing := s.addListing(t, 10)

	// Buyer reserves four units.
	resp, res := s.do(t, http.MethodPost, "/reservations", s.buyer, map[string]any{
		"listing_id":     listing.ID.String(),
		"quantity":       4,
		"payment_method": "mobile_money",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resID := res["id"].(string)
	assert.Equal(t, "Pending", res["status"])

	// Farmer approves; a transaction appears for the reservation.
	resp, res = s.do(t, http.MethodPost, "/reservations/"+resID+"/approve", s.farmer, map[string]any{
		"notes": "pickup saturday",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Approved", res["status"])

	resp, tx := s.do(t, http.MethodGet, "/transactions/origin/reservation/"+resID, s.buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	txID := tx["id"].(string)
	assert.Equal(t, "AwaitingPayment", tx["status"])

	// Buyer submits the receipt, farmer verifies it.
	resp, _ = s.do(t, http.MethodPost, "/transactions/"+txID+"/receipt", s.buyer, map[string]any{
		"receipt_ref": "MM-10021",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, tx = s.do(t, http.MethodPost, "/transactions/"+txID+"/verify", s.farmer, map[string]any{
		"decision": "approve",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Verified", tx["status"])

	// Verification completed the reservation.
	resp, res = s.do(t, http.MethodGet, "/reservations/"+resID, s.buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Completed", res["status"])

	remaining, err := s.ledger.Available(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)
}

func TestReservationRejectionRestoresStock(t *testing.T) {
	s := setup(t)
	listing := s.addListing(t, 5)

	resp, res := s.do(t, http.MethodPost, "/reservations", s.buyer, map[string]any{
		"listing_id": listing.ID.String(),
		"quantity":   5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resID := res["id"].(string)

	resp, res = s.do(t, http.MethodPost, "/reservations/"+resID+"/reject", s.farmer, map[string]any{
		"reason": "already promised to a restaurant",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Rejected", res["status"])

	remaining, err := s.ledger.Available(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestOversellReturnsConflict(t *testing.T) {
	s := setup(t)
	listing := s.addListing(t, 3)

	resp, _ := s.do(t, http.MethodPost, "/reservations", s.buyer, map[string]any{
		"listing_id": listing.ID.String(),
		"quantity":   3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/reservations", uuid.New(), map[string]any{
		"listing_id": listing.ID.String(),
		"quantity":   1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUrgentSaleFlowOverHTTP(t *testing.T) {
	s := setup(t)

	resp, sale := s.do(t, http.MethodPost, "/urgent-sales", s.farmer, map[string]any{
		"product_name":   "Ripe avocados",
		"original_price": "9.50",
		"reduced_price":  "4.00",
		"quantity":       6,
		"unit":           "kg",
		"best_before":    time.Now().UTC().Add(4 * time.Hour).Format(time.RFC3339),
		"reason":         "soft spots forming",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saleID := sale["id"].(string)

	resp, out := s.do(t, http.MethodPost, fmt.Sprintf("/urgent-sales/%s/purchase", saleID), s.buyer, map[string]any{
		"quantity":       6,
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	tx := out["transaction"].(map[string]any)
	assert.Equal(t, "AwaitingPayment", tx["status"])

	// Sold out after the last unit went.
	resp, sale = s.do(t, http.MethodGet, "/urgent-sales/"+saleID, s.buyer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SoldOut", sale["status"])

	resp, _ = s.do(t, http.MethodPost, fmt.Sprintf("/urgent-sales/%s/purchase", saleID), uuid.New(), map[string]any{
		"quantity": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestExpiredUrgentSaleRefusesPurchase(t *testing.T) {
	s := setup(t)

	resp, sale := s.do(t, http.MethodPost, "/urgent-sales", s.farmer, map[string]any{
		"product_name":   "Leaf lettuce",
		"original_price": "3.00",
		"reduced_price":  "1.00",
		"quantity":       10,
		"best_before":    time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		"reason":         "wilting",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	saleID := sale["id"].(string)

	resp, _ = s.do(t, http.MethodPost, fmt.Sprintf("/urgent-sales/%s/purchase", saleID), s.buyer, map[string]any{
		"quantity": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
