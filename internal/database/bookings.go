package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staytoken/internal/models"
)

const bookingColumns = `id, event_id, owner, total_amount, base_rate, minimum_deposit,
        room_count, extra_count, check_in, check_out, trade_time_limit_hours,
        tradeable, status, reference_id, metadata_uri, created_at, updated_at`

// CreateBookings inserts a batch of booked records in one transaction and
// fills in the assigned ids.
func (db *DB) CreateBookings(ctx context.Context, bookings []*models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO bookings (
                event_id, owner, total_amount, base_rate, minimum_deposit,
                room_count, extra_count, check_in, check_out, trade_time_limit_hours,
                tradeable, status, reference_id, metadata_uri, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	for _, b := range bookings {
		result, err := tx.ExecContext(ctx, query,
			b.EventID,
			string(b.Owner.Normalize()),
			b.TotalAmount,
			b.BaseRate,
			b.MinimumDeposit,
			b.RoomCount,
			b.ExtraCount,
			b.CheckIn,
			b.CheckOut,
			b.TradeTimeLimitHours,
			b.Tradeable,
			b.Status,
			b.ReferenceID,
			b.MetadataURI,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		b.ID = id
		b.CreatedAt = now
		b.UpdatedAt = now
	}

	return tx.Commit()
}

// DeleteBookings removes booked records. Used only to unwind a booking whose
// fund pull failed after the records were written.
func (db *DB) DeleteBookings(ctx context.Context, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND status = ?`, id, models.StatusBooked); err != nil {
			return fmt.Errorf("failed to delete booking %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings filtered by status (empty = all) and check-in
// date range (zero times = unbounded).
func (db *DB) ListBookings(ctx context.Context, status string, from, to time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if !from.IsZero() {
		query += ` AND check_in >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND check_in <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY check_in, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// SetBookingURI updates per-unit metadata on the booking record and, if a
// registry entry exists, mirrors it there.
func (db *DB) SetBookingURI(ctx context.Context, id int64, uri string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET metadata_uri = ?, updated_at = ? WHERE id = ?`, uri, now, id)
	if err != nil {
		return fmt.Errorf("failed to update booking uri: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("booking %d: %w", id, models.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE units SET metadata_uri = ?, updated_at = ? WHERE unit_id = ?`, uri, now, id); err != nil {
		return fmt.Errorf("failed to update unit uri: %w", err)
	}

	return tx.Commit()
}

// MintUnits transitions booked records to confirmed, creates the registry
// entries and snapshots the first owner, all in one transaction. Event-bound
// units also consume ticket capacity.
func (db *DB) MintUnits(ctx context.Context, mints []models.UnitMint) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, m := range mints {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, metadata_uri = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.StatusConfirmed, m.URI, now, m.BookingID, models.StatusBooked)
		if err != nil {
			return fmt.Errorf("failed to confirm booking %d: %w", m.BookingID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("booking %d is not booked: %w", m.BookingID, models.ErrStatusMismatch)
		}

		owner := string(m.Owner.Normalize())
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (registry_id, unit_id, owner, metadata_uri, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			m.RegistryID, m.BookingID, owner, m.URI, now, now); err != nil {
			return fmt.Errorf("failed to create unit %d: %w", m.BookingID, err)
		}

		// Снимок первого владельца фиксируется один раз, при минте
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO royalty_snapshots (unit_id, first_owner) VALUES (?, ?) ON CONFLICT(unit_id) DO NOTHING`,
			m.BookingID, owner); err != nil {
			return fmt.Errorf("failed to snapshot first owner for unit %d: %w", m.BookingID, err)
		}

		if m.EventID != 0 {
			result, err := tx.ExecContext(ctx,
				`UPDATE events SET tickets_issued = tickets_issued + 1, updated_at = ? WHERE id = ? AND tickets_issued < ticket_capacity`,
				now, m.EventID)
			if err != nil {
				return fmt.Errorf("failed to issue ticket for event %d: %w", m.EventID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("event %d: %w", m.EventID, models.ErrCapacityExceeded)
			}
		}
	}

	return tx.Commit()
}

// CheckInBookings sets confirmed bookings to checked_in.
func (db *DB) CheckInBookings(ctx context.Context, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, id := range ids {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.StatusCheckedIn, now, id, models.StatusConfirmed)
		if err != nil {
			return fmt.Errorf("failed to check in booking %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("booking %d is not confirmed: %w", id, models.ErrStatusMismatch)
		}
	}

	return tx.Commit()
}

// CheckOutBookings burns the active-registry entry, mints the post-stay entry
// to the same owner and sets checked_out, all in one transaction.
func (db *DB) CheckOutBookings(ctx context.Context, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, id := range ids {
		var registryID, owner, uri string
		err := tx.QueryRowContext(ctx,
			`SELECT registry_id, owner, metadata_uri FROM units WHERE unit_id = ? AND registry_id != ?`,
			id, models.RegistryPostStay).Scan(&registryID, &owner, &uri)
		if err == sql.ErrNoRows {
			return fmt.Errorf("unit %d has no active registry entry: %w", id, models.ErrStatusMismatch)
		}
		if err != nil {
			return fmt.Errorf("failed to load unit %d: %w", id, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.StatusCheckedOut, now, id, models.StatusCheckedIn)
		if err != nil {
			return fmt.Errorf("failed to check out booking %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("booking %d is not checked in: %w", id, models.ErrStatusMismatch)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM units WHERE registry_id = ? AND unit_id = ?`, registryID, id); err != nil {
			return fmt.Errorf("failed to burn unit %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (registry_id, unit_id, owner, metadata_uri, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			models.RegistryPostStay, id, owner, uri, now, now); err != nil {
			return fmt.Errorf("failed to mint post-stay unit %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// CancelBookings sets cancelled, burns whichever registry entry exists and
// drops any listing. Reachable only from booked or checked_in.
func (db *DB) CancelBookings(ctx context.Context, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, id := range ids {
		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
			models.StatusCancelled, now, id, models.StatusBooked, models.StatusCheckedIn)
		if err != nil {
			return fmt.Errorf("failed to cancel booking %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("booking %d is not cancellable: %w", id, models.ErrStatusMismatch)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM units WHERE unit_id = ?`, id); err != nil {
			return fmt.Errorf("failed to burn unit %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE unit_id = ?`, id); err != nil {
			return fmt.Errorf("failed to drop listing %d: %w", id, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var owner string
	err := row.Scan(
		&b.ID,
		&b.EventID,
		&owner,
		&b.TotalAmount,
		&b.BaseRate,
		&b.MinimumDeposit,
		&b.RoomCount,
		&b.ExtraCount,
		&b.CheckIn,
		&b.CheckOut,
		&b.TradeTimeLimitHours,
		&b.Tradeable,
		&b.Status,
		&b.ReferenceID,
		&b.MetadataURI,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Owner = models.Address(owner)
	return &b, nil
}
