// internal/eventlog/postgres.go
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresJournal persists the journal in a domain_events table with a
// UNIQUE (aggregate_id, version) constraint as the concurrency backstop.
type PostgresJournal struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{
		db:     db,
		tracer: otel.Tracer("farmmarket/eventlog"),
	}
}

func (j *PostgresJournal) Append(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, entries []Entry) error {
	ctx, span := j.tracer.Start(ctx, "eventlog.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("entry.count", len(entries)),
		),
	)
	defer span.End()

	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM domain_events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&currentVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrVersionConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO domain_events (aggregate_id, aggregate_type, event_type, payload, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		version := expectedVersion + i + 1
		_, err = stmt.ExecContext(ctx, aggregateID, aggregateType, entry.EventType, entry.Payload, version, time.Now().UTC())
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Load(ctx context.Context, aggregateID uuid.UUID) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "eventlog.load",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload, version, created_at
		FROM domain_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		err := rows.Scan(
			&entry.ID,
			&entry.AggregateID,
			&entry.AggregateType,
			&entry.EventType,
			&entry.Payload,
			&entry.Version,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.loaded", len(entries)))
	return entries, nil
}

func (j *PostgresJournal) CurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	var version int
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM domain_events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}
	return version, nil
}
