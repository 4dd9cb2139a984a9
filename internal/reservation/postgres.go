// internal/reservation/postgres.go
package reservation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// PostgresStore persists reservations; the status transition guard is a
// conditional UPDATE on the expected status.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, res *Reservation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reservations (
			id, listing_id, buyer_id, farmer_id, quantity, unit_price, total_amount,
			payment_method, buyer_notes, farmer_notes, rejection_reason, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, res.ID, res.ListingID, res.BuyerID, res.FarmerID, res.Quantity,
		res.UnitPrice.String(), res.Total.String(), res.PaymentMethod,
		res.BuyerNotes, res.FarmerNotes, res.RejectionReason, res.Status, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, listing_id, buyer_id, farmer_id, quantity, unit_price, total_amount,
	       payment_method, buyer_notes, farmer_notes, rejection_reason, status,
	       created_at, decided_at
	FROM reservations
`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	res, err := scanReservation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reservation %s: %w", id, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) Update(ctx context.Context, res *Reservation, expected Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET farmer_notes = $3, rejection_reason = $4, status = $5, decided_at = $6
		WHERE id = $1 AND status = $2
	`, res.ID, expected, res.FarmerNotes, res.RejectionReason, res.Status, res.DecidedAt)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, res.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("reservation %s is %s, expected %s: %w",
			res.ID, current.Status, expected, fault.ErrInvalidTransition)
	}
	return nil
}

func (s *PostgresStore) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*Reservation, error) {
	return s.list(ctx, `WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (s *PostgresStore) ListByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Reservation, error) {
	return s.list(ctx, `WHERE farmer_id = $1 ORDER BY created_at DESC`, farmerID)
}

func (s *PostgresStore) list(ctx context.Context, where string, arg any) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+where, arg)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		res, err := scanReservation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func scanReservation(scan func(...any) error) (*Reservation, error) {
	res := &Reservation{}
	var unitPrice, total string
	err := scan(
		&res.ID, &res.ListingID, &res.BuyerID, &res.FarmerID, &res.Quantity,
		&unitPrice, &total, &res.PaymentMethod, &res.BuyerNotes, &res.FarmerNotes,
		&res.RejectionReason, &res.Status, &res.CreatedAt, &res.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := res.UnitPrice.Scan(unitPrice); err != nil {
		return nil, err
	}
	if err := res.Total.Scan(total); err != nil {
		return nil, err
	}
	return res, nil
}
