// internal/urgentsale/postgres.go
package urgentsale

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// PostgresStore persists urgent sales and purchases. Status flips use a
// conditional UPDATE on the expected status, mirroring the other stores.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const saleColumns = `id, farmer_id, product_name, description, original_price, reduced_price,
       quantity, unit, best_before, reason, status, created_at`

func (s *PostgresStore) Insert(ctx context.Context, sale *UrgentSale) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO urgent_sales (
			`+saleColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, sale.ID, sale.FarmerID, sale.ProductName, sale.Description,
		sale.OriginalPrice.String(), sale.ReducedPrice.String(),
		sale.Quantity, sale.Unit, sale.BestBefore, sale.Reason, sale.Status, sale.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert urgent sale: %w", err)
	}
	return nil
}

func scanSale(row *sql.Row) (*UrgentSale, error) {
	sale := &UrgentSale{}
	var original, reduced string
	err := row.Scan(
		&sale.ID, &sale.FarmerID, &sale.ProductName, &sale.Description,
		&original, &reduced, &sale.Quantity, &sale.Unit,
		&sale.BestBefore, &sale.Reason, &sale.Status, &sale.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("urgent sale: %w", fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query urgent sale: %w", err)
	}
	if err := sale.OriginalPrice.Scan(original); err != nil {
		return nil, fmt.Errorf("parse original price: %w", err)
	}
	if err := sale.ReducedPrice.Scan(reduced); err != nil {
		return nil, fmt.Errorf("parse reduced price: %w", err)
	}
	return sale, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*UrgentSale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM urgent_sales WHERE id = $1`, id)
	return scanSale(row)
}

func (s *PostgresStore) Update(ctx context.Context, sale *UrgentSale, expected Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE urgent_sales
		SET status = $3
		WHERE id = $1 AND status = $2
	`, sale.ID, expected, sale.Status)
	if err != nil {
		return fmt.Errorf("update urgent sale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update urgent sale: %w", err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, sale.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("urgent sale %s is %s, expected %s: %w",
			sale.ID, current.Status, expected, fault.ErrInvalidTransition)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*UrgentSale, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+saleColumns+` FROM urgent_sales ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list urgent sales: %w", err)
	}
	defer rows.Close()

	var out []*UrgentSale
	for rows.Next() {
		sale := &UrgentSale{}
		var original, reduced string
		if err := rows.Scan(
			&sale.ID, &sale.FarmerID, &sale.ProductName, &sale.Description,
			&original, &reduced, &sale.Quantity, &sale.Unit,
			&sale.BestBefore, &sale.Reason, &sale.Status, &sale.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan urgent sale: %w", err)
		}
		if err := sale.OriginalPrice.Scan(original); err != nil {
			return nil, fmt.Errorf("parse original price: %w", err)
		}
		if err := sale.ReducedPrice.Scan(reduced); err != nil {
			return nil, fmt.Errorf("parse reduced price: %w", err)
		}
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertPurchase(ctx context.Context, p *Purchase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO urgent_purchases (id, sale_id, buyer_id, quantity, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.SaleID, p.BuyerID, p.Quantity, p.Amount.String(), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePurchase(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM urgent_purchases WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	p := &Purchase{}
	var amount string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, buyer_id, quantity, amount, created_at
		FROM urgent_purchases WHERE id = $1
	`, id).Scan(&p.ID, &p.SaleID, &p.BuyerID, &p.Quantity, &amount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("purchase: %w", fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query purchase: %w", err)
	}
	if err := p.Amount.Scan(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return p, nil
}
