// internal/urgentsale/implementation.go
package urgentsale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
	"farmmarket/internal/ledger"
	"farmmarket/internal/metrics"
	"farmmarket/internal/payment"
)

const aggregateType = "urgent_sale"

type service struct {
	store      Store
	ledger     ledger.Ledger
	payments   payment.Service
	journal    eventlog.Journal
	dispatcher *event.Dispatcher
	limiter    *rate.Limiter
	now        func() time.Time
	log        *logrus.Entry
}

// NewService creates the urgent sale pool manager. The limiter throttles the
// purchase path globally; urgent sales attract bursts when pushed out to
// buyers, and the ledger behind them is the contention point.
func NewService(store Store, ldg ledger.Ledger, payments payment.Service, journal eventlog.Journal, dispatcher *event.Dispatcher, limiter *rate.Limiter, log *logrus.Entry) Service {
	return &service{
		store:      store,
		ledger:     ldg,
		payments:   payments,
		journal:    journal,
		dispatcher: dispatcher,
		limiter:    limiter,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func (s *service) Create(ctx context.Context, farmerID uuid.UUID, params CreateParams) (*UrgentSale, error) {
	sale, err := NewUrgentSale(farmerID, params.ProductName, params.OriginalPrice, params.ReducedPrice,
		params.Quantity, params.Unit, params.BestBefore, params.Reason)
	if err != nil {
		return nil, err
	}
	sale.Description = params.Description

	if err := s.ledger.Register(ctx, sale.ID, sale.Quantity); err != nil {
		return nil, fmt.Errorf("register pool: %w", err)
	}
	if err := s.store.Insert(ctx, sale); err != nil {
		return nil, fmt.Errorf("persist urgent sale: %w", err)
	}

	s.journalAppend(ctx, sale.ID, 0, "UrgentSaleCreated", sale)
	s.dispatcher.Dispatch(event.New(event.TypeUrgentSaleCreated, sale))
	return sale, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UrgentSale, error) {
	sale, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.expireIfPast(ctx, sale)
	if err := s.fillRemaining(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *service) List(ctx context.Context) ([]*UrgentSale, error) {
	sales, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, sale := range sales {
		s.expireIfPast(ctx, sale)
		if err := s.fillRemaining(ctx, sale); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

func (s *service) Purchase(ctx context.Context, saleID, buyerID uuid.UUID, quantity int, method payment.Method) (*Purchase, *payment.Transaction, error) {
	if !s.limiter.Allow() {
		metrics.UrgentPurchasesTotal.WithLabelValues("throttled").Inc()
		return nil, nil, fault.ErrThrottled
	}
	if quantity <= 0 {
		return nil, nil, errors.New("quantity must be at least 1")
	}
	if !method.Valid() {
		method = payment.MethodCash
	}

	sale, err := s.store.Get(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}

	// Expiry wins over stock: past best-before, remaining units are waste,
	// not sellable inventory.
	if s.expireIfPast(ctx, sale) || sale.Status == StatusExpired {
		metrics.UrgentPurchasesTotal.WithLabelValues("expired").Inc()
		return nil, nil, fmt.Errorf("urgent sale %s: %w", saleID, fault.ErrExpired)
	}
	if sale.Status == StatusSoldOut {
		metrics.UrgentPurchasesTotal.WithLabelValues("sold_out").Inc()
		return nil, nil, fmt.Errorf("urgent sale %s is sold out: %w", saleID, fault.ErrInsufficientStock)
	}

	remaining, err := s.ledger.TryReserve(ctx, saleID, quantity)
	if err != nil {
		if errors.Is(err, fault.ErrInsufficientStock) {
			metrics.UrgentPurchasesTotal.WithLabelValues("out_of_stock").Inc()
		}
		return nil, nil, err
	}

	purchase := &Purchase{
		ID:        uuid.New(),
		SaleID:    sale.ID,
		BuyerID:   buyerID,
		Quantity:  quantity,
		Amount:    sale.ReducedPrice.Mul(decimal.NewFromInt(int64(quantity))),
		CreatedAt: s.now(),
	}
	if err := s.store.InsertPurchase(ctx, purchase); err != nil {
		s.releaseClaim(ctx, saleID, quantity)
		return nil, nil, fmt.Errorf("persist purchase: %w", err)
	}

	tx, err := s.payments.Create(ctx, payment.OriginUrgentSale, purchase.ID, buyerID, sale.FarmerID, purchase.Amount, method)
	if err != nil {
		// The purchase and its obligation exist together; unwind both
		// halves of the claim.
		s.releaseClaim(ctx, saleID, quantity)
		if delErr := s.store.DeletePurchase(ctx, purchase.ID); delErr != nil {
			s.log.WithError(delErr).WithField("purchase", purchase.ID).
				Error("failed to remove purchase after transaction failure")
		}
		return nil, nil, fmt.Errorf("spawn transaction: %w", err)
	}

	// No approval gate on this path, so the hold settles immediately.
	if err := s.ledger.Commit(ctx, saleID, quantity); err != nil {
		s.log.WithError(err).WithField("sale", saleID).Error("failed to commit urgent sale hold")
	}

	if remaining == 0 {
		s.markSoldOut(ctx, sale)
	}

	metrics.UrgentPurchasesTotal.WithLabelValues("purchased").Inc()
	s.journalTransition(ctx, sale.ID, "UrgentSalePurchased", purchase)
	s.dispatcher.Dispatch(event.New(event.TypeUrgentSalePurchased, purchase))
	return purchase, tx, nil
}

// expireIfPast flips an active sale to Expired when its best-before has
// passed. Returns true if the sale is expired after the call. Losing the
// guarded update race means someone else flipped it; the read copy is
// corrected either way.
func (s *service) expireIfPast(ctx context.Context, sale *UrgentSale) bool {
	if sale.Status != StatusActive || s.now().Before(sale.BestBefore) {
		return sale.Status == StatusExpired
	}

	sale.Status = StatusExpired
	if err := s.store.Update(ctx, sale, StatusActive); err != nil {
		if !errors.Is(err, fault.ErrInvalidTransition) {
			s.log.WithError(err).WithField("sale", sale.ID).Warn("failed to expire urgent sale")
		}
		if current, getErr := s.store.Get(ctx, sale.ID); getErr == nil {
			sale.Status = current.Status
		}
		return sale.Status == StatusExpired
	}

	s.journalTransition(ctx, sale.ID, "UrgentSaleExpired", sale)
	s.dispatcher.Dispatch(event.New(event.TypeUrgentSaleExpired, sale))
	return true
}

func (s *service) markSoldOut(ctx context.Context, sale *UrgentSale) {
	sale.Status = StatusSoldOut
	if err := s.store.Update(ctx, sale, StatusActive); err != nil {
		if !errors.Is(err, fault.ErrInvalidTransition) {
			s.log.WithError(err).WithField("sale", sale.ID).Warn("failed to mark urgent sale sold out")
		}
		return
	}
	s.journalTransition(ctx, sale.ID, "UrgentSaleSoldOut", sale)
	s.dispatcher.Dispatch(event.New(event.TypeUrgentSaleSoldOut, sale))
}

func (s *service) fillRemaining(ctx context.Context, sale *UrgentSale) error {
	remaining, err := s.ledger.Available(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	sale.Remaining = remaining
	return nil
}

func (s *service) releaseClaim(ctx context.Context, saleID uuid.UUID, quantity int) {
	if _, err := s.ledger.Release(ctx, saleID, quantity); err != nil {
		s.log.WithError(err).WithField("sale", saleID).Error("failed to release hold after purchase failure")
	}
}

func (s *service) journalTransition(ctx context.Context, id uuid.UUID, eventType string, payload any) {
	version, err := s.journal.CurrentVersion(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("sale", id).Warn("journal version lookup failed")
		return
	}
	s.journalAppend(ctx, id, version, eventType, payload)
}

func (s *service) journalAppend(ctx context.Context, id uuid.UUID, version int, eventType string, payload any) {
	entry, err := eventlog.Record(eventType, payload)
	if err != nil {
		s.log.WithError(err).WithField("sale", id).Warn("journal payload marshal failed")
		return
	}
	if err := s.journal.Append(ctx, id, aggregateType, version, []eventlog.Entry{entry}); err != nil {
		s.log.WithError(err).WithField("sale", id).Warn("journal append failed")
	}
}
