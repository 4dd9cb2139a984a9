// internal/eventlog/memory.go
package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal keeps the journal in process. It backs tests and
// single-binary deployments without Postgres.
type MemoryJournal struct {
	mu      sync.Mutex
	nextID  int64
	entries map[uuid.UUID][]Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{nextID: 1, entries: make(map[uuid.UUID][]Entry)}
}

func (j *MemoryJournal) Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, entries []Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	current := len(j.entries[aggregateID])
	if current != expectedVersion {
		return ErrVersionConflict
	}

	for i, entry := range entries {
		entry.ID = j.nextID
		entry.AggregateID = aggregateID
		entry.AggregateType = aggregateType
		entry.Version = expectedVersion + i + 1
		entry.CreatedAt = time.Now().UTC()
		j.nextID++
		j.entries[aggregateID] = append(j.entries[aggregateID], entry)
	}
	return nil
}

func (j *MemoryJournal) Load(ctx context.Context, aggregateID uuid.UUID) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries := make([]Entry, len(j.entries[aggregateID]))
	copy(entries, j.entries[aggregateID])
	return entries, nil
}

func (j *MemoryJournal) CurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries[aggregateID]), nil
}
