// internal/payment/payment_test.go
package payment

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmmarket/internal/event"
	"farmmarket/internal/eventlog"
	"farmmarket/internal/fault"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("test", true)
}

func newTestService(t *testing.T) Service {
	t.Helper()
	log := testLogger()
	dispatcher := event.NewDispatcher(event.LogSink{Log: log}, log)
	return NewService(NewMemoryStore(), eventlog.NewMemoryJournal(), dispatcher, log)
}

func createTx(t *testing.T, svc Service) (*Transaction, uuid.UUID, uuid.UUID) {
	t.Helper()
	buyer, farmer := uuid.New(), uuid.New()
	tx, err := svc.Create(context.Background(), OriginReservation, uuid.New(), buyer, farmer,
		decimal.NewFromInt(120), MethodMobileMoney)
	require.NoError(t, err)
	return tx, buyer, farmer
}

func TestCreateStartsAwaitingPayment(t *testing.T) {
	svc := newTestService(t)
	tx, _, _ := createTx(t, svc)

	assert.Equal(t, StatusAwaitingPayment, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(120)))
	assert.Nil(t, tx.VerifiedAt)
}

func TestSubmitReceiptThenApprove(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)

	tx, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "MM-REF-991", "paid via app")
	require.NoError(t, err)
	assert.Equal(t, StatusReceiptSubmitted, tx.Status)
	assert.Equal(t, "MM-REF-991", tx.ReceiptRef)

	tx, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "amount matches")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, tx.Status)
	require.NotNil(t, tx.VerifiedAt)
}

func TestSubmitReceiptWrongBuyerForbidden(t *testing.T) {
	svc := newTestService(t)
	tx, _, _ := createTx(t, svc)

	_, err := svc.SubmitReceipt(context.Background(), tx.ID, uuid.New(), "REF", "")
	assert.ErrorIs(t, err, fault.ErrForbidden)
}

func TestVerifyWrongFarmerForbidden(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, _ := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tx.ID, uuid.New(), DecisionApprove, "")
	assert.ErrorIs(t, err, fault.ErrForbidden)
}

func TestVerifyBeforeReceiptIsInvalid(t *testing.T) {
	svc := newTestService(t)
	tx, _, farmer := createTx(t, svc)

	_, err := svc.Verify(context.Background(), tx.ID, farmer, DecisionApprove, "")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestDoubleApproveIsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.NoError(t, err)

	// Verified is terminal; a second verdict is a state error, not a
	// silent no-op.
	_, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	assert.ErrorIs(t, err, fault.ErrInvalidTransition)
}

func TestDisputeThenResubmitReopens(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF-1", "")
	require.NoError(t, err)
	tx, err = svc.Verify(ctx, tx.ID, farmer, DecisionDispute, "amount short")
	require.NoError(t, err)
	assert.Equal(t, StatusDisputed, tx.Status)

	// A fresh receipt re-opens the disputed obligation.
	tx, err = svc.SubmitReceipt(ctx, tx.ID, buyer, "REF-2", "topped up")
	require.NoError(t, err)
	assert.Equal(t, StatusReceiptSubmitted, tx.Status)
	assert.Equal(t, "REF-2", tx.ReceiptRef)

	tx, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, tx.Status)
}

func TestSubmitReceiptAfterVerifiedAlreadyFinalized(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.NoError(t, err)

	_, err = svc.SubmitReceipt(ctx, tx.ID, buyer, "REF-AGAIN", "")
	assert.ErrorIs(t, err, fault.ErrAlreadyFinalized)
}

func TestAmountImmutableThroughLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)
	amount := tx.Amount

	tx, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)
	assert.True(t, amount.Equal(tx.Amount))

	tx, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.NoError(t, err)
	assert.True(t, amount.Equal(tx.Amount))
}

func TestCancelForOriginVoidsUnverified(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, _, _ := createTx(t, svc)

	require.NoError(t, svc.CancelForOrigin(ctx, OriginReservation, tx.OriginID))

	got, err := svc.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
}

func TestCancelForOriginAfterVerifiedFails(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	tx, buyer, farmer := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.NoError(t, err)

	err = svc.CancelForOrigin(ctx, OriginReservation, tx.OriginID)
	assert.ErrorIs(t, err, fault.ErrAlreadyFinalized)
}

func TestCancelForOriginWithoutTransactionIsNoop(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.CancelForOrigin(context.Background(), OriginReservation, uuid.New()))
}

type failingCompleter struct{ err error }

func (f failingCompleter) CompleteFromPayment(context.Context, uuid.UUID) error { return f.err }

func TestApproveRollsBackWhenCompleterFails(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	svc.RegisterCompleter(OriginReservation, failingCompleter{err: errors.New("origin gone")})
	tx, buyer, farmer := createTx(t, svc)

	_, err := svc.SubmitReceipt(ctx, tx.ID, buyer, "REF", "")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tx.ID, farmer, DecisionApprove, "")
	require.Error(t, err)

	// The verification must not stick when the origin could not finalize.
	got, err := svc.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceiptSubmitted, got.Status)
	assert.Nil(t, got.VerifiedAt)
}

func TestNewTransactionRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewTransaction(OriginReservation, uuid.New(), uuid.New(), uuid.New(),
		decimal.Zero, MethodCash)
	assert.Error(t, err)
}
