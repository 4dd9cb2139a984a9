// internal/payment/implementation.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
	"farmmarket/internal/metrics"
)

const aggregateType = "transaction"

// service implements the Service interface.
type service struct {
	store      Store
	journal    eventlog.Journal
	dispatcher *event.Dispatcher
	completers map[Origin]Completer
	log        *logrus.Entry
}

// NewService creates the transaction and receipt verifier.
func NewService(store Store, journal eventlog.Journal, dispatcher *event.Dispatcher, log *logrus.Entry) Service {
	return &service{
		store:      store,
		journal:    journal,
		dispatcher: dispatcher,
		completers: make(map[Origin]Completer),
		log:        log,
	}
}

// RegisterCompleter wires the origin finalizer. Reservations register one;
// urgent sales have nothing left to finalize after purchase.
func (s *service) RegisterCompleter(origin Origin, c Completer) {
	s.completers[origin] = c
}

func (s *service) Create(ctx context.Context, origin Origin, originID, buyerID, farmerID uuid.UUID, amount decimal.Decimal, method Method) (*Transaction, error) {
	tx, err := NewTransaction(origin, originID, buyerID, farmerID, amount, method)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.journalAppend(ctx, tx.ID, 0, "TransactionCreated", tx)
	return tx, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *service) GetByOrigin(ctx context.Context, origin Origin, originID uuid.UUID) (*Transaction, error) {
	return s.store.GetByOrigin(ctx, origin, originID)
}

func (s *service) SubmitReceipt(ctx context.Context, id, buyerID uuid.UUID, receiptRef, notes string) (*Transaction, error) {
	if strings.TrimSpace(receiptRef) == "" {
		return nil, errors.New("receipt reference must not be empty")
	}

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.BuyerID != buyerID {
		return nil, fmt.Errorf("caller is not the transaction's buyer: %w", fault.ErrForbidden)
	}
	if tx.Status.Terminal() {
		return nil, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, fault.ErrAlreadyFinalized)
	}
	// Disputed re-opens through a fresh receipt; any other non-awaiting
	// state is misuse.
	if tx.Status != StatusAwaitingPayment && tx.Status != StatusDisputed {
		return nil, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, fault.ErrInvalidTransition)
	}

	expected := tx.Status
	tx.ReceiptRef = receiptRef
	tx.ReceiptNotes = notes
	tx.Status = StatusReceiptSubmitted
	if err := s.store.Update(ctx, tx, expected); err != nil {
		return nil, err
	}

	s.journalTransition(ctx, tx.ID, "ReceiptSubmitted", tx)
	s.dispatcher.Dispatch(event.New(event.TypeReceiptSubmitted, tx))
	return tx, nil
}

func (s *service) Verify(ctx context.Context, id, farmerID uuid.UUID, decision Decision, notes string) (*Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.FarmerID != farmerID {
		return nil, fmt.Errorf("caller is not the transaction's farmer: %w", fault.ErrForbidden)
	}
	if tx.Status != StatusReceiptSubmitted {
		return nil, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, fault.ErrInvalidTransition)
	}

	switch decision {
	case DecisionApprove:
		now := time.Now().UTC()
		tx.Status = StatusVerified
		tx.VerifiedAt = &now
		tx.VerificationNotes = notes
		if err := s.store.Update(ctx, tx, StatusReceiptSubmitted); err != nil {
			return nil, err
		}

		if completer, ok := s.completers[tx.Origin]; ok {
			if err := completer.CompleteFromPayment(ctx, tx.OriginID); err != nil {
				// The obligation and its origin finalize together;
				// roll the verification back and surface the error.
				revert := *tx
				revert.Status = StatusReceiptSubmitted
				revert.VerifiedAt = nil
				revert.VerificationNotes = ""
				if rbErr := s.store.Update(ctx, &revert, StatusVerified); rbErr != nil {
					s.log.WithError(rbErr).WithField("transaction", tx.ID).
						Error("failed to roll back verification")
				}
				return nil, fmt.Errorf("finalize %s %s: %w", tx.Origin, tx.OriginID, err)
			}
		}

		metrics.ReceiptVerificationsTotal.WithLabelValues(string(DecisionApprove)).Inc()
		s.journalTransition(ctx, tx.ID, "ReceiptVerified", tx)
		s.dispatcher.Dispatch(event.New(event.TypeReceiptVerified, tx))
		return tx, nil

	case DecisionDispute:
		tx.Status = StatusDisputed
		tx.VerificationNotes = notes
		if err := s.store.Update(ctx, tx, StatusReceiptSubmitted); err != nil {
			return nil, err
		}

		metrics.ReceiptVerificationsTotal.WithLabelValues(string(DecisionDispute)).Inc()
		s.journalTransition(ctx, tx.ID, "ReceiptDisputed", tx)
		s.dispatcher.Dispatch(event.New(event.TypeReceiptDisputed, tx))
		return tx, nil

	default:
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
}

func (s *service) CancelForOrigin(ctx context.Context, origin Origin, originID uuid.UUID) error {
	tx, err := s.store.GetByOrigin(ctx, origin, originID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			// No obligation spawned yet; nothing to void.
			return nil
		}
		return err
	}
	if tx.Status == StatusVerified {
		return fmt.Errorf("transaction %s is verified: %w", tx.ID, fault.ErrAlreadyFinalized)
	}
	if tx.Status == StatusCancelled {
		return nil
	}

	expected := tx.Status
	tx.Status = StatusCancelled
	if err := s.store.Update(ctx, tx, expected); err != nil {
		return err
	}

	s.journalTransition(ctx, tx.ID, "TransactionCancelled", tx)
	return nil
}

// journalTransition appends with the aggregate's current version. The
// journal is the audit trail, not the source of truth: a failed append is
// logged and does not undo the transition.
func (s *service) journalTransition(ctx context.Context, id uuid.UUID, eventType string, payload any) {
	version, err := s.journal.CurrentVersion(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("transaction", id).Warn("journal version lookup failed")
		return
	}
	s.journalAppend(ctx, id, version, eventType, payload)
}

func (s *service) journalAppend(ctx context.Context, id uuid.UUID, version int, eventType string, payload any) {
	entry, err := eventlog.Record(eventType, payload)
	if err != nil {
		s.log.WithError(err).WithField("transaction", id).Warn("journal payload marshal failed")
		return
	}
	if err := s.journal.Append(ctx, id, aggregateType, version, []eventlog.Entry{entry}); err != nil {
		s.log.WithError(err).WithField("transaction", id).Warn("journal append failed")
	}
}
