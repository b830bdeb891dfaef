package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staytoken/internal/models"
)

// CreateEvent inserts an event record and fills in its assigned id and
// registry id.
func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now()
	query := `INSERT INTO events (
                name, reference_id, type, start_time, end_time, ticket_capacity,
                tickets_issued, trade_time_limit_hours, registry_id, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		event.Name, event.ReferenceID, event.Type, event.Start, event.End,
		event.TicketCapacity, event.TicketsIssued, event.TradeTimeLimitHours,
		"", now, now)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.RegistryID = models.EventRegistryID(id)
	event.CreatedAt = now
	event.UpdatedAt = now

	if _, err := db.ExecContext(ctx,
		`UPDATE events SET registry_id = ? WHERE id = ?`, event.RegistryID, id); err != nil {
		return fmt.Errorf("failed to set event registry: %w", err)
	}
	return nil
}

// GetEvent returns an event by id.
func (db *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT id, name, reference_id, type, start_time, end_time, ticket_capacity,
                     tickets_issued, trade_time_limit_hours, registry_id, created_at, updated_at
              FROM events WHERE id = ?`
	var e models.Event
	err := db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.ReferenceID, &e.Type, &e.Start, &e.End,
		&e.TicketCapacity, &e.TicketsIssued, &e.TradeTimeLimitHours,
		&e.RegistryID, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}
