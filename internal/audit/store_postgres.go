package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"datamod/internal/platform/database"
	"datamod/pkg/platform/sentinel"
)

// PostgresStore writes audit events to the modification_runs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.RunID == uuid.Nil {
		event.RunID = uuid.New()
	}
	query := `
		INSERT INTO modification_runs (id, modification, mode, outcome, message, request_id, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.RunID,
		event.Modification,
		event.Mode,
		event.Outcome,
		event.Message,
		event.RequestID,
		event.StartedAt.UTC(),
		event.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert modification run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, modification, mode, outcome, message, request_id, started_at, finished_at
		FROM modification_runs
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query modification runs: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event    Event
			started  database.Time
			finished database.Time
		)
		if err := rows.Scan(
			&event.RunID,
			&event.Modification,
			&event.Mode,
			&event.Outcome,
			&event.Message,
			&event.RequestID,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("scan modification run: %w", err)
		}
		event.StartedAt = started.Time
		event.FinishedAt = finished.Time
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modification runs: %w", err)
	}
	return events, nil
}

// Get returns a single run by id.
func (s *PostgresStore) Get(ctx context.Context, runID uuid.UUID) (Event, error) {
	query := `
		SELECT id, modification, mode, outcome, message, request_id, started_at, finished_at
		FROM modification_runs
		WHERE id = $1
	`
	var (
		event    Event
		started  database.Time
		finished database.Time
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&event.RunID,
		&event.Modification,
		&event.Mode,
		&event.Outcome,
		&event.Message,
		&event.RequestID,
		&started,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, fmt.Errorf("modification run %s: %w", runID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Event{}, fmt.Errorf("get modification run: %w", err)
	}
	event.StartedAt = started.Time
	event.FinishedAt = finished.Time
	return event, nil
}
