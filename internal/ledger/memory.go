// internal/ledger/memory.go
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"farmmarket/internal/fault"
	"farmmarket/internal/metrics"
)

// pool serializes all adjustments for one pool ID. The mutex scope is
// exactly the check-and-decrement step; no I/O happens under it.
type pool struct {
	mu        sync.Mutex
	available int
	held      int
}

// MemoryLedger is the in-process Ledger implementation. Adjustments for the
// same pool are serialized by a per-pool mutex, closing the race where two
// readers observe sufficient stock before either writes.
type MemoryLedger struct {
	mu     sync.RWMutex
	pools  map[uuid.UUID]*pool
	hook   StatusHook
	tracer trace.Tracer
}

func NewMemoryLedger(hook StatusHook) *MemoryLedger {
	return &MemoryLedger{
		pools:  make(map[uuid.UUID]*pool),
		hook:   hook,
		tracer: otel.Tracer("farmmarket/ledger"),
	}
}

func (l *MemoryLedger) Register(ctx context.Context, poolID uuid.UUID, available int) error {
	if available < 0 {
		return fmt.Errorf("pool %s: starting quantity must not be negative", poolID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pools[poolID]; ok {
		return fmt.Errorf("pool %s already registered", poolID)
	}
	l.pools[poolID] = &pool{available: available}
	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(available))
	return nil
}

func (l *MemoryLedger) get(poolID uuid.UUID) (*pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", poolID, fault.ErrNotFound)
	}
	return p, nil
}

func (l *MemoryLedger) TryReserve(ctx context.Context, poolID uuid.UUID, quantity int) (int, error) {
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

	p, err := l.get(poolID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	if p.available < quantity {
		remaining := p.available
		p.mu.Unlock()
		span.SetAttributes(attribute.Bool("insufficient", true))
		return remaining, fmt.Errorf("pool %s: requested %d, available %d: %w",
			poolID, quantity, remaining, fault.ErrInsufficientStock)
	}
	p.available -= quantity
	p.held += quantity
	remaining := p.available
	p.mu.Unlock()

	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(remaining))
	span.SetAttributes(attribute.Int("remaining", remaining))
	return remaining, nil
}

func (l *MemoryLedger) Release(ctx context.Context, poolID uuid.UUID, quantity int) (int, error) {
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

	p, err := l.get(poolID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	if p.held < quantity {
		held := p.held
		p.mu.Unlock()
		return 0, fmt.Errorf("pool %s: release of %d exceeds held %d", poolID, quantity, held)
	}
	wasEmpty := p.available == 0
	p.available += quantity
	p.held -= quantity
	remaining := p.available
	p.mu.Unlock()

	metrics.StockLevel.WithLabelValues(poolID.String()).Set(float64(remaining))
	if wasEmpty && l.hook != nil {
		l.hook(ctx, poolID, false)
	}
	return remaining, nil
}

func (l *MemoryLedger) Commit(ctx context.Context, poolID uuid.UUID, quantity int) error {
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

	p, err := l.get(poolID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.held < quantity {
		held := p.held
		p.mu.Unlock()
		return fmt.Errorf("pool %s: commit of %d exceeds held %d", poolID, quantity, held)
	}
	p.held -= quantity
	soldOut := p.available == 0 && p.held == 0
	p.mu.Unlock()

	if soldOut && l.hook != nil {
		l.hook(ctx, poolID, true)
	}
	return nil
}

func (l *MemoryLedger) Available(ctx context.Context, poolID uuid.UUID) (int, error) {
	p, err := l.get(poolID)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available, nil
}
