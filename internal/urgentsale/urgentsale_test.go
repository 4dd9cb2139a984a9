// internal/urgentsale/urgentsale_test.go
package urgentsale

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
	"farmmarket/internal/ledger"
	"farmmarket/internal/payment"
)

type fixture struct {
	svc      Service
	payments payment.Service
	ledger   ledger.Ledger
	farmer   uuid.UUID
}

func newFixture(t *testing.T, limiter *rate.Limiter) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := log.WithField("test", true)

	dispatcher := event.NewDispatcher(event.LogSink{Log: entry}, entry)
	journal := eventlog.NewMemoryJournal()
	ldg := ledger.NewMemoryLedger(nil)
	payments := payment.NewService(payment.NewMemoryStore(), journal, dispatcher, entry)

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	svc := NewService(NewMemoryStore(), ldg, payments, journal, dispatcher, limiter, entry)

	return &fixture{svc: svc, payments: payments, ledger: ldg, farmer: uuid.New()}
}

func (f *fixture) createSale(t *testing.T, quantity int, bestBefore time.Time) *UrgentSale {
	t.Helper()
	sale, err := f.svc.Create(context.Background(), f.farmer, CreateParams{
		ProductName:   "Ripe mangoes",
		OriginalPrice: decimal.NewFromInt(10),
		ReducedPrice:  decimal.NewFromInt(4),
		Quantity:      quantity,
		Unit:          "kg",
		BestBefore:    bestBefore,
		Reason:        "overripe by the weekend",
	})
	require.NoError(t, err)
	return sale
}

func soon() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

func TestNewUrgentSalePriceInvariant(t *testing.T) {
	farmer := uuid.New()
	bestBefore := soon()

	// Reduced must sit strictly between zero and the original price.
	_, err := NewUrgentSale(farmer, "Mangoes", decimal.NewFromInt(10), decimal.NewFromInt(10), 5, "kg", bestBefore, "ripening")
	assert.Error(t, err)

	_, err = NewUrgentSale(farmer, "Mangoes", decimal.NewFromInt(10), decimal.NewFromInt(12), 5, "kg", bestBefore, "ripening")
	assert.Error(t, err)

	_, err = NewUrgentSale(farmer, "Mangoes", decimal.NewFromInt(10), decimal.Zero, 5, "kg", bestBefore, "ripening")
	assert.Error(t, err)

	sale, err := NewUrgentSale(farmer, "Mangoes", decimal.NewFromInt(10), decimal.NewFromInt(4), 5, "kg", bestBefore, "ripening")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, sale.Status)
	assert.Equal(t, 5, sale.Remaining)
}

func TestNewUrgentSaleRequiresReason(t *testing.T) {
	_, err := NewUrgentSale(uuid.New(), "Mangoes", decimal.NewFromInt(10), decimal.NewFromInt(4), 5, "kg", soon(), "  ")
	assert.Error(t, err)
}

func TestCreateRegistersPool(t *testing.T) {
	f := newFixture(t, nil)
	sale := f.createSale(t, 8, soon())

	available, err := f.ledger.Available(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, available)
}

func TestPurchaseSpawnsTransactionAndConsumesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 8, soon())
	buyer := uuid.New()

	purchase, tx, err := f.svc.Purchase(ctx, sale.ID, buyer, 3, payment.MethodMobileMoney)
	require.NoError(t, err)

	assert.Equal(t, 3, purchase.Quantity)
	assert.True(t, purchase.Amount.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, payment.StatusAwaitingPayment, tx.Status)
	assert.Equal(t, payment.OriginUrgentSale, tx.Origin)
	assert.Equal(t, purchase.ID, tx.OriginID)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Remaining)
	assert.Equal(t, StatusActive, got.Status)
}

func TestPurchaseLastUnitsMarksSoldOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 3, soon())

	_, _, err := f.svc.Purchase(ctx, sale.ID, uuid.New(), 3, payment.MethodCash)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSoldOut, got.Status)
	assert.Equal(t, 0, got.Remaining)

	_, _, err = f.svc.Purchase(ctx, sale.ID, uuid.New(), 1, payment.MethodCash)
	assert.ErrorIs(t, err, fault.ErrInsufficientStock)
}

func TestPurchaseInsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 2, soon())

	_, _, err := f.svc.Purchase(ctx, sale.ID, uuid.New(), 5, payment.MethodCash)
	require.ErrorIs(t, err, fault.ErrInsufficientStock)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Remaining)
}

func TestExpiryWinsOverStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 5, time.Now().UTC().Add(-time.Minute))

	// Units remain, but the clock has run out.
	_, _, err := f.svc.Purchase(ctx, sale.ID, uuid.New(), 1, payment.MethodCash)
	require.ErrorIs(t, err, fault.ErrExpired)

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Equal(t, 5, got.Remaining)
}

func TestGetFlipsExpiredLazily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 5, time.Now().UTC().Add(-time.Minute))

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestListAppliesLazyExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.createSale(t, 5, time.Now().UTC().Add(-time.Minute))
	fresh := f.createSale(t, 5, soon())

	sales, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	byID := map[uuid.UUID]Status{}
	for _, s := range sales {
		byID[s.ID] = s.Status
	}
	assert.Equal(t, StatusActive, byID[fresh.ID])
	delete(byID, fresh.ID)
	for _, status := range byID {
		assert.Equal(t, StatusExpired, status)
	}
}

func TestPurchaseThrottled(t *testing.T) {
	f := newFixture(t, rate.NewLimiter(0, 0))
	sale := f.createSale(t, 5, soon())

	_, _, err := f.svc.Purchase(context.Background(), sale.ID, uuid.New(), 1, payment.MethodCash)
	assert.ErrorIs(t, err, fault.ErrThrottled)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 5, soon())

	const buyers = 40
	var wins atomic.Int32
	var wg sync.WaitGroup
	wg.Add(buyers)
	for i := 0; i < buyers; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := f.svc.Purchase(ctx, sale.ID, uuid.New(), 1, payment.MethodCash); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), wins.Load())

	got, err := f.svc.Get(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Remaining)
	assert.Equal(t, StatusSoldOut, got.Status)
}

// failingPayments refuses to spawn transactions, capturing the origin ID it
// was handed so the test can look for leftovers.
type failingPayments struct {
	originID uuid.UUID
}

func (f *failingPayments) Create(_ context.Context, _ payment.Origin, originID, _, _ uuid.UUID, _ decimal.Decimal, _ payment.Method) (*payment.Transaction, error) {
	f.originID = originID
	return nil, errors.New("payment backend down")
}

func (f *failingPayments) Get(context.Context, uuid.UUID) (*payment.Transaction, error) {
	return nil, fault.ErrNotFound
}

func (f *failingPayments) GetByOrigin(context.Context, payment.Origin, uuid.UUID) (*payment.Transaction, error) {
	return nil, fault.ErrNotFound
}

func (f *failingPayments) SubmitReceipt(context.Context, uuid.UUID, uuid.UUID, string, string) (*payment.Transaction, error) {
	return nil, fault.ErrNotFound
}

func (f *failingPayments) Verify(context.Context, uuid.UUID, uuid.UUID, payment.Decision, string) (*payment.Transaction, error) {
	return nil, fault.ErrNotFound
}

func (f *failingPayments) CancelForOrigin(context.Context, payment.Origin, uuid.UUID) error {
	return nil
}

func (f *failingPayments) RegisterCompleter(payment.Origin, payment.Completer) {}

func TestFailedTransactionLeavesNoPurchaseBehind(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := log.WithField("test", true)

	dispatcher := event.NewDispatcher(event.LogSink{Log: entry}, entry)
	store := NewMemoryStore()
	ldg := ledger.NewMemoryLedger(nil)
	payments := &failingPayments{}
	svc := NewService(store, ldg, payments, eventlog.NewMemoryJournal(), dispatcher,
		rate.NewLimiter(rate.Inf, 0), entry)

	sale, err := svc.Create(ctx, uuid.New(), CreateParams{
		ProductName:   "Strawberries",
		OriginalPrice: decimal.NewFromInt(12),
		ReducedPrice:  decimal.NewFromInt(5),
		Quantity:      6,
		BestBefore:    soon(),
		Reason:        "picked yesterday",
	})
	require.NoError(t, err)

	_, _, err = svc.Purchase(ctx, sale.ID, uuid.New(), 2, payment.MethodCash)
	require.Error(t, err)

	// The hold went back and the purchase record went with it.
	available, err := ldg.Available(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, available)

	_, err = store.GetPurchase(ctx, payments.originID)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestUrgentSaleReceiptFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sale := f.createSale(t, 4, soon())
	buyer := uuid.New()

	_, tx, err := f.svc.Purchase(ctx, sale.ID, buyer, 2, payment.MethodBankTransfer)
	require.NoError(t, err)

	_, err = f.payments.SubmitReceipt(ctx, tx.ID, buyer, "BT-881", "")
	require.NoError(t, err)

	// No completer is registered for urgent sales; verification stands
	// on its own.
	verified, err := f.payments.Verify(ctx, tx.ID, f.farmer, payment.DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusVerified, verified.Status)
}
