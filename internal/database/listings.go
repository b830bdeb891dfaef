package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"staytoken/internal/models"
)

// CreateListing inserts a new active listing. A row already present for the
// unit rejects with ErrAlreadyListed.
func (db *DB) CreateListing(ctx context.Context, listing *models.Listing) error {
	now := time.Now()
	query := `INSERT INTO listings (unit_id, seller, price, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		listing.UnitID, string(listing.Seller.Normalize()), listing.Price, listing.Status, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("unit %d: %w", listing.UnitID, models.ErrAlreadyListed)
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return nil
}

// GetListing returns the listing record for a unit.
func (db *DB) GetListing(ctx context.Context, unitID int64) (*models.Listing, error) {
	query := `SELECT unit_id, seller, price, status, created_at, updated_at FROM listings WHERE unit_id = ?`
	var l models.Listing
	var seller string
	err := db.QueryRowContext(ctx, query, unitID).Scan(
		&l.UnitID, &seller, &l.Price, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unit %d: %w", unitID, models.ErrNotListed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	l.Seller = models.Address(seller)
	return &l, nil
}

// UpdateListing sets price and status on an existing listing record.
func (db *DB) UpdateListing(ctx context.Context, unitID int64, price int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE listings SET price = ?, status = ?, updated_at = ? WHERE unit_id = ?`,
		price, status, time.Now(), unitID)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %d: %w", unitID, models.ErrNotListed)
	}
	return nil
}

// DeleteListing removes the listing record entirely.
func (db *DB) DeleteListing(ctx context.Context, unitID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM listings WHERE unit_id = ?`, unitID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %d: %w", unitID, models.ErrNotListed)
	}
	return nil
}

// CompleteSale transfers the unit seller -> buyer and clears the listing in
// one transaction.
func (db *DB) CompleteSale(ctx context.Context, registryID string, unitID int64, seller, buyer models.Address) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE units SET owner = ?, updated_at = ? WHERE registry_id = ? AND unit_id = ? AND owner = ?`,
		string(buyer.Normalize()), now, registryID, unitID, string(seller.Normalize()))
	if err != nil {
		return fmt.Errorf("failed to transfer sold unit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %d not held by %s: %w", unitID, seller, models.ErrUnauthorized)
	}

	result, err = tx.ExecContext(ctx, `DELETE FROM listings WHERE unit_id = ? AND status = ?`, unitID, models.ListingActive)
	if err != nil {
		return fmt.Errorf("failed to clear listing: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %d: %w", unitID, models.ErrNotListed)
	}

	if registryID != models.RegistryPostStay {
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET owner = ?, updated_at = ? WHERE id = ?`,
			string(buyer.Normalize()), now, unitID)
		if err != nil {
			return fmt.Errorf("failed to update booking owner: %w", err)
		}
	}

	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
