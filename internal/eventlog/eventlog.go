// internal/eventlog/eventlog.go
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict means the aggregate moved since the caller
	// observed it; the append is rejected, never merged.
	ErrVersionConflict = errors.New("version conflict: aggregate has moved")
)

// Entry is one recorded domain transition for an aggregate. The journal is
// the audit trail for reservations, transactions and urgent sales; replaying
// an aggregate's entries reproduces its transition history.
type Entry struct {
	ID            int64           `json:"id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Journal is an append-only log with optimistic concurrency control:
// Append rejects the write when the aggregate's current version does not
// match the version the caller observed.
type Journal interface {
	Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, entries []Entry) error
	Load(ctx context.Context, aggregateID uuid.UUID) ([]Entry, error)
	CurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error)
}

// Record marshals a payload into a journal entry.
func Record(eventType string, payload any) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, err
	}
	return Entry{EventType: eventType, Payload: data}, nil
}
