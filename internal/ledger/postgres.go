// internal/ledger/postgres.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"farmmarket/internal/fault"
	"farmmarket/internal/metrics"
)

// PostgresLedger implements Ledger on a single inventory_pools row per pool.
// Each adjustment is one conditional UPDATE guarded by the current quantity,
// so concurrency control is the database's row lock, not a read-then-write
// pair in Go.
type PostgresLedger struct {
	db     *sql.DB
	hook   StatusHook
	tracer trace.Tracer
}

func NewPostgresLedger(db *sql.DB, hook StatusHook) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		hook:   hook,
		tracer: otel.Tracer("farmmarket/ledger"),
	}
}

func (l *PostgresLedger) Register(ctx context.Context, poolID uuid.UUID, available int) error {
	if available < 0 {
		return fmt.Errorf("pool %s: starting quantity must not be negative", poolID)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO inventory_pools (pool_id, available, held)
		VALUES ($1, $2, 0)
	`, poolID, available)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("pool %s already registered", poolID)
		}
		return fmt.Errorf("register pool: %w", err)
	}
	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(available))
	return nil
}

func (l *PostgresLedger) TryReserve(ctx context.Context, poolID uuid.UUID, quantity int) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.try_reserve",
		trace.WithAttributes(
			attribute.String("pool.id", poolID.String()),
			attribute.Int("quantity", quantity),
		),
	)
	defer span.End()

	if quantity <= 0 {
		return 0, fmt.Errorf("pool %s: reserve quantity must be positive", poolID)
	}

	var remaining int
	err := l.db.QueryRowContext(ctx, `
		UPDATE inventory_pools
		SET available = available - $2, held = held + $2
		WHERE pool_id = $1 AND available >= $2
		RETURNING available
	`, poolID, quantity).Scan(&remaining)
	if err == sql.ErrNoRows {
		available, lookupErr := l.Available(ctx, poolID)
		if lookupErr != nil {
			return 0, lookupErr
		}
		span.SetAttributes(attribute.Bool("insufficient", true))
		return available, fmt.Errorf("pool %s: requested %d, available %d: %w",
			poolID, quantity, available, fault.ErrInsufficientStock)
	}
	if err != nil {
		return 0, fmt.Errorf("reserve stock: %w", err)
	}

	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(remaining))
	span.SetAttributes(attribute.Int("remaining", remaining))
	return remaining, nil
}

func (l *PostgresLedger) Release(ctx context.Context, poolID uuid.UUID, quantity int) (int, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.release",
		trace.WithAttributes(
			attribute.String("pool.id", poolID.String()),
			attribute.Int("quantity", quantity),
		),
	)
	defer span.End()

	if quantity <= 0 {
		return 0, fmt.Errorf("pool %s: release quantity must be positive", poolID)
	}

	var remaining int
	err := l.db.QueryRowContext(ctx, `
		UPDATE inventory_pools
		SET available = available + $2, held = held - $2
		WHERE pool_id = $1 AND held >= $2
		RETURNING available
	`, poolID, quantity).Scan(&remaining)
	if err == sql.ErrNoRows {
		if _, lookupErr := l.Available(ctx, poolID); lookupErr != nil {
			return 0, lookupErr
		}
		return 0, fmt.Errorf("pool %s: release of %d exceeds held", poolID, quantity)
	}
	if err != nil {
		return 0, fmt.Errorf("release stock: %w", err)
	}

	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(remaining))
	if remaining == quantity && l.hook != nil {
		// pool was empty before this release
		l.hook(ctx, poolID, false)
	}
	return remaining, nil
}

func (l *PostgresLedger) Commit(ctx context.Context, poolID uuid.UUID, quantity int) error {
	ctx, span := l.tracer.Start(ctx, "ledger.commit",
		trace.WithAttributes(
			attribute.String("pool.id", poolID.String()),
			attribute.Int("quantity", quantity),
		),
	)
	defer span.End()

	if quantity <= 0 {
		return fmt.Errorf("pool %s: commit quantity must be positive", poolID)
	}

	var available, held int
	err := l.db.QueryRowContext(ctx, `
		UPDATE inventory_pools
		SET held = held - $2
		WHERE pool_id = $1 AND held >= $2
		RETURNING available, held
	`, poolID, quantity).Scan(&available, &held)
	if err == sql.ErrNoRows {
		if _, lookupErr := l.Available(ctx, poolID); lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("pool %s: commit of %d exceeds held", poolID, quantity)
	}
	if err != nil {
		return fmt.Errorf("commit stock: %w", err)
	}

	if available == 0 && held == 0 && l.hook != nil {
		l.hook(ctx, poolID, true)
	}
	return nil
}

func (l *PostgresLedger) Available(ctx context.Context, poolID uuid.UUID) (int, error) {
	var available int
	err := l.db.QueryRowContext(ctx, `
		SELECT available FROM inventory_pools WHERE pool_id = $1
	`, poolID).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("pool %s: %w", poolID, fault.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query pool: %w", err)
	}
	return available, nil
}
