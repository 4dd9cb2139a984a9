// internal/reservation/implementation.go
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"farmmarket/internal/catalog"
	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
	"farmmarket/internal/ledger"
	"farmmarket/internal/metrics"
	"farmmarket/internal/payment"
)

const aggregateType = "reservation"

// service implements the Service interface.
type service struct {
	store      Store
	ledger     ledger.Ledger
	catalog    catalog.Service
	payments   payment.Service
	journal    eventlog.Journal
	dispatcher *event.Dispatcher
	log        *logrus.Entry
}

// NewService creates the reservation state machine.
func NewService(store Store, ldg ledger.Ledger, cat catalog.Service, payments payment.Service, journal eventlog.Journal, dispatcher *event.Dispatcher, log *logrus.Entry) Service {
	return &service{
		store:      store,
		ledger:     ldg,
		catalog:    cat,
		payments:   payments,
		journal:    journal,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (s *service) Create(ctx context.Context, buyerID, listingID uuid.UUID, quantity int, method payment.Method, notes string) (*Reservation, error) {
	listing, err := s.catalog.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	res, err := NewReservation(buyerID, listing, quantity, method, notes)
	if err != nil {
		return nil, err
	}

	if err := s.reserveStock(ctx, listing, quantity); err != nil {
		if errors.Is(err, fault.ErrInsufficientStock) {
			metrics.ReservationsTotal.WithLabelValues("out_of_stock").Inc()
		}
		return nil, err
	}

	if err := s.store.Insert(ctx, res); err != nil {
		// The hold and the reservation are one unit of work: a failed
		// insert must put the stock back.
		if _, rbErr := s.ledger.Release(ctx, listingID, quantity); rbErr != nil {
			s.log.WithError(rbErr).WithField("listing", listingID).
				Error("failed to release hold after insert failure")
		}
		return nil, fmt.Errorf("persist reservation: %w", err)
	}

	metrics.ReservationsTotal.WithLabelValues("created").Inc()
	s.journalAppend(ctx, res.ID, 0, "ReservationCreated", res)
	s.dispatcher.Dispatch(event.New(event.TypeReservationCreated, res))
	return res, nil
}

// reserveStock places the hold, adopting the pool from the listing snapshot
// on first contact. Listings are created outside the engine, so the ledger
// learns about a pool the first time someone reserves from it; from then on
// the ledger's balance is authoritative, never the listing's quantity.
func (s *service) reserveStock(ctx context.Context, listing *catalog.Listing, quantity int) error {
	_, err := s.ledger.TryReserve(ctx, listing.ID, quantity)
	if !errors.Is(err, fault.ErrNotFound) {
		return err
	}

	if regErr := s.ledger.Register(ctx, listing.ID, listing.Quantity); regErr != nil {
		// Lost the adoption race to a concurrent reserve; the retry decides.
		s.log.WithError(regErr).WithField("listing", listing.ID).Debug("pool already adopted")
	}
	_, err = s.ledger.TryReserve(ctx, listing.ID, quantity)
	return err
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	return s.store.Get(ctx, id)
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Reservation, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

func (s *service) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Reservation, error) {
	return s.store.ListByFarmer(ctx, farmerID)
}

func (s *service) Approve(ctx context.Context, id, farmerID uuid.UUID, notes string) (*Reservation, error) {
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.FarmerID != farmerID {
		return nil, fmt.Errorf("caller is not the listing's farmer: %w", fault.ErrForbidden)
	}
	if res.Status != StatusPending {
		return nil, fmt.Errorf("reservation %s is %s: %w", id, res.Status, fault.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	res.Status = StatusApproved
	res.DecidedAt = &now
	res.FarmerNotes = notes
	if err := s.store.Update(ctx, res, StatusPending); err != nil {
		return nil, err
	}

	_, err = s.payments.Create(ctx, payment.OriginReservation, res.ID, res.BuyerID, res.FarmerID, res.Total, res.PaymentMethod)
	if err != nil {
		// Approval and its obligation stand or fall together.
		revert := *res
		revert.Status = StatusPending
		revert.DecidedAt = nil
		revert.FarmerNotes = ""
		if rbErr := s.store.Update(ctx, &revert, StatusApproved); rbErr != nil {
			s.log.WithError(rbErr).WithField("reservation", id).
				Error("failed to roll back approval")
		}
		return nil, fmt.Errorf("spawn transaction: %w", err)
	}

	metrics.ReservationsTotal.WithLabelValues("approved").Inc()
	s.journalTransition(ctx, res.ID, "ReservationApproved", res)
	s.dispatcher.Dispatch(event.New(event.TypeReservationApproved, res))
	return res, nil
}

func (s *service) Reject(ctx context.Context, id, farmerID uuid.UUID, reason string) (*Reservation, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.New("rejection reason must not be empty")
	}

	res, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.FarmerID != farmerID {
		return nil, fmt.Errorf("caller is not the listing's farmer: %w", fault.ErrForbidden)
	}
	if res.Status != StatusPending {
		return nil, fmt.Errorf("reservation %s is %s: %w", id, res.Status, fault.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	res.Status = StatusRejected
	res.DecidedAt = &now
	res.RejectionReason = reason
	if err := s.store.Update(ctx, res, StatusPending); err != nil {
		return nil, err
	}

	// The guarded transition above ran exactly once, so this release
	// cannot double-credit the pool.
	if _, err := s.ledger.Release(ctx, res.ListingID, res.Quantity); err != nil {
		s.log.WithError(err).WithField("reservation", id).Error("failed to release rejected hold")
		return nil, fmt.Errorf("release hold: %w", err)
	}

	metrics.ReservationsTotal.WithLabelValues("rejected").Inc()
	s.journalTransition(ctx, res.ID, "ReservationRejected", res)
	s.dispatcher.Dispatch(event.New(event.TypeReservationRejected, res))
	return res, nil
}

func (s *service) CancelByBuyer(ctx context.Context, id, buyerID uuid.UUID) (*Reservation, error) {
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.BuyerID != buyerID {
		return nil, fmt.Errorf("caller is not the reservation's buyer: %w", fault.ErrForbidden)
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("reservation %s is %s: %w", id, res.Status, fault.ErrAlreadyFinalized)
	}

	// Void the linked obligation first; this fails once the payment is
	// verified, which is the point of no return for a buyer cancel.
	if res.Status == StatusApproved {
		if err := s.payments.CancelForOrigin(ctx, payment.OriginReservation, res.ID); err != nil {
			return nil, err
		}
	}

	return s.cancel(ctx, res, "ReservationCancelled")
}

func (s *service) ExpireIfStale(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error) {
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if res.Status != StatusPending || res.CreatedAt.After(cutoff) {
		return false, nil
	}

	if _, err := s.cancel(ctx, res, "ReservationExpired"); err != nil {
		// Lost the race against a concurrent decision; not stale anymore.
		if errors.Is(err, fault.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *service) cancel(ctx context.Context, res *Reservation, journalEvent string) (*Reservation, error) {
	expected := res.Status
	now := time.Now().UTC()
	res.Status = StatusCancelled
	res.DecidedAt = &now
	if err := s.store.Update(ctx, res, expected); err != nil {
		return nil, err
	}

	if _, err := s.ledger.Release(ctx, res.ListingID, res.Quantity); err != nil {
		s.log.WithError(err).WithField("reservation", res.ID).Error("failed to release cancelled hold")
		return nil, fmt.Errorf("release hold: %w", err)
	}

	metrics.ReservationsTotal.WithLabelValues("cancelled").Inc()
	s.journalTransition(ctx, res.ID, journalEvent, res)
	s.dispatcher.Dispatch(event.New(event.TypeReservationCancelled, res))
	return res, nil
}

// CompleteFromPayment implements payment.Completer. The hold was consumed at
// TryReserve time; Commit only settles the bookkeeping and lets the ledger
// flip the listing to Sold when it empties.
func (s *service) CompleteFromPayment(ctx context.Context, id uuid.UUID) error {
	res, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if res.Status != StatusApproved {
		return fmt.Errorf("reservation %s is %s: %w", id, res.Status, fault.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	res.Status = StatusCompleted
	res.DecidedAt = &now
	if err := s.store.Update(ctx, res, StatusApproved); err != nil {
		return err
	}

	if err := s.ledger.Commit(ctx, res.ListingID, res.Quantity); err != nil {
		// Bookkeeping only; the sale stands either way.
		s.log.WithError(err).WithField("reservation", id).Error("failed to commit consumed hold")
	}

	metrics.ReservationsTotal.WithLabelValues("completed").Inc()
	s.journalTransition(ctx, res.ID, "ReservationCompleted", res)
	s.dispatcher.Dispatch(event.New(event.TypeReservationCompleted, res))
	return nil
}

func (s *service) journalTransition(ctx context.Context, id uuid.UUID, eventType string, payload any) {
	version, err := s.journal.CurrentVersion(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("reservation", id).Warn("journal version lookup failed")
		return
	}
	s.journalAppend(ctx, id, version, eventType, payload)
}

func (s *service) journalAppend(ctx context.Context, id uuid.UUID, version int, eventType string, payload any) {
	entry, err := eventlog.Record(eventType, payload)
	if err != nil {
		s.log.WithError(err).WithField("reservation", id).Warn("journal payload marshal failed")
		return
	}
	if err := s.journal.Append(ctx, id, aggregateType, version, []eventlog.Entry{entry}); err != nil {
		s.log.WithError(err).WithField("reservation", id).Warn("journal append failed")
	}
}
