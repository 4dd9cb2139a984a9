// internal/payment/postgres.go
package payment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// PostgresStore persists transactions in a transactions table. The status
// transition guard is a conditional UPDATE on the expected status.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, tx *Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, origin, origin_id, buyer_id, farmer_id, amount, payment_method,
			receipt_ref, receipt_notes, verification_notes, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, tx.ID, tx.Origin, tx.OriginID, tx.BuyerID, tx.FarmerID, tx.Amount.String(),
		tx.Method, tx.ReceiptRef, tx.ReceiptNotes, tx.VerificationNotes, tx.Status, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *PostgresStore) GetByOrigin(ctx context.Context, origin Origin, originID uuid.UUID) (*Transaction, error) {
	return s.getWhere(ctx, "origin = $1 AND origin_id = $2", origin, originID)
}

func (s *PostgresStore) getWhere(ctx context.Context, where string, args ...any) (*Transaction, error) {
	tx := &Transaction{}
	var amount string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, origin, origin_id, buyer_id, farmer_id, amount, payment_method,
		       receipt_ref, receipt_notes, verification_notes, status, created_at, verified_at
		FROM transactions
		WHERE `+where, args...).Scan(
		&tx.ID, &tx.Origin, &tx.OriginID, &tx.BuyerID, &tx.FarmerID, &amount, &tx.Method,
		&tx.ReceiptRef, &tx.ReceiptNotes, &tx.VerificationNotes, &tx.Status, &tx.CreatedAt, &tx.VerifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction: %w", fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	if err := tx.Amount.Scan(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) Update(ctx context.Context, tx *Transaction, expected Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET receipt_ref = $3, receipt_notes = $4, verification_notes = $5,
		    status = $6, verified_at = $7
		WHERE id = $1 AND status = $2
	`, tx.ID, expected, tx.ReceiptRef, tx.ReceiptNotes, tx.VerificationNotes, tx.Status, tx.VerifiedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, tx.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("transaction %s is %s, expected %s: %w",
			tx.ID, current.Status, expected, fault.ErrInvalidTransition)
	}
	return nil
}
