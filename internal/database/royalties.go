package database

import (
	"context"
	"database/sql"
	"fmt"

	"staytoken/internal/models"
)

// GetRoyaltySchedule loads the fixed-role entries and the ordered other-list.
func (db *DB) GetRoyaltySchedule(ctx context.Context) (*models.RoyaltySchedule, error) {
	schedule := &models.RoyaltySchedule{}

	rows, err := db.QueryContext(ctx, `SELECT role, recipient, fraction_bps FROM royalty_fixed`)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixed royalties: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, recipient string
		var bps int64
		if err := rows.Scan(&role, &recipient, &bps); err != nil {
			return nil, fmt.Errorf("failed to scan fixed royalty: %w", err)
		}
		entry := models.RoyaltyEntry{Recipient: models.Address(recipient), FractionBps: bps}
		switch role {
		case models.RoyaltyRolePlatform:
			schedule.Platform = entry
		case models.RoyaltyRoleHotel:
			schedule.Hotel = entry
		case models.RoyaltyRoleFirstOwner:
			schedule.FirstOwner = entry
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	otherRows, err := db.QueryContext(ctx,
		`SELECT recipient, fraction_bps FROM royalty_other ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load other royalties: %w", err)
	}
	defer otherRows.Close()

	for otherRows.Next() {
		var recipient string
		var bps int64
		if err := otherRows.Scan(&recipient, &bps); err != nil {
			return nil, fmt.Errorf("failed to scan other royalty: %w", err)
		}
		schedule.Others = append(schedule.Others, models.RoyaltyEntry{
			Recipient:   models.Address(recipient),
			FractionBps: bps,
		})
	}
	return schedule, otherRows.Err()
}

// SetFixedRoyalty upserts one fixed-role entry.
func (db *DB) SetFixedRoyalty(ctx context.Context, role string, entry models.RoyaltyEntry) error {
	query := `INSERT INTO royalty_fixed (role, recipient, fraction_bps) VALUES (?, ?, ?)
              ON CONFLICT(role) DO UPDATE SET recipient = excluded.recipient, fraction_bps = excluded.fraction_bps`
	if _, err := db.ExecContext(ctx, query, role, string(entry.Recipient.Normalize()), entry.FractionBps); err != nil {
		return fmt.Errorf("failed to set fixed royalty %s: %w", role, err)
	}
	return nil
}

// ReplaceOtherRoyalties discards the whole other-list and writes the new one
// in one transaction; old entries are never merged.
func (db *DB) ReplaceOtherRoyalties(ctx context.Context, entries []models.RoyaltyEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM royalty_other`); err != nil {
		return fmt.Errorf("failed to clear other royalties: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO royalty_other (recipient, fraction_bps) VALUES (?, ?)`,
			string(e.Recipient.Normalize()), e.FractionBps); err != nil {
			return fmt.Errorf("failed to insert other royalty: %w", err)
		}
	}

	return tx.Commit()
}

// FirstOwner returns the per-unit first-owner snapshot recorded at mint time.
func (db *DB) FirstOwner(ctx context.Context, unitID int64) (models.Address, error) {
	var owner string
	err := db.QueryRowContext(ctx,
		`SELECT first_owner FROM royalty_snapshots WHERE unit_id = ?`, unitID).Scan(&owner)
	if err == sql.ErrNoRows {
		return models.ZeroAddress, fmt.Errorf("first owner of unit %d: %w", unitID, models.ErrNotFound)
	}
	if err != nil {
		return models.ZeroAddress, fmt.Errorf("failed to get first owner: %w", err)
	}
	return models.Address(owner), nil
}
