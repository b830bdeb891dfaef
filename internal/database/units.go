package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staytoken/internal/models"
)

// GetUnit returns a registry entry.
func (db *DB) GetUnit(ctx context.Context, registryID string, unitID int64) (*models.Unit, error) {
	query := `SELECT registry_id, unit_id, owner, metadata_uri, created_at, updated_at
              FROM units WHERE registry_id = ? AND unit_id = ?`
	u, err := scanUnit(db.QueryRowContext(ctx, query, registryID, unitID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unit %d in %s: %w", unitID, registryID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	return u, nil
}

// FindActiveUnit locates a unit in any registry except post-stay.
func (db *DB) FindActiveUnit(ctx context.Context, unitID int64) (*models.Unit, error) {
	query := `SELECT registry_id, unit_id, owner, metadata_uri, created_at, updated_at
              FROM units WHERE unit_id = ? AND registry_id != ?`
	u, err := scanUnit(db.QueryRowContext(ctx, query, unitID, models.RegistryPostStay))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active unit %d: %w", unitID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active unit: %w", err)
	}
	return u, nil
}

// BalanceOf returns the number of matching units held by owner (0 or 1 per
// registry entry).
func (db *DB) BalanceOf(ctx context.Context, registryID string, owner models.Address, unitID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM units WHERE registry_id = ? AND unit_id = ? AND owner = ?`
	var count int64
	err := db.QueryRowContext(ctx, query, registryID, unitID, string(owner.Normalize())).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return count, nil
}

// TransferUnits moves a batch of units from one owner to another atomically.
// Any unit not held by `from` rolls the whole batch back.
func (db *DB) TransferUnits(ctx context.Context, registryID string, from, to models.Address, unitIDs []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, id := range unitIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE units SET owner = ?, updated_at = ? WHERE registry_id = ? AND unit_id = ? AND owner = ?`,
			string(to.Normalize()), now, registryID, id, string(from.Normalize()))
		if err != nil {
			return fmt.Errorf("failed to transfer unit %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("unit %d not held by %s: %w", id, from, models.ErrUnauthorized)
		}

		// Владелец бронирования следует за держателем записи
		if registryID != models.RegistryPostStay {
			_, err = tx.ExecContext(ctx,
				`UPDATE bookings SET owner = ?, updated_at = ? WHERE id = ?`,
				string(to.Normalize()), now, id)
			if err != nil {
				return fmt.Errorf("failed to update booking owner: %w", err)
			}
		}
	}

	return tx.Commit()
}

// SetUnitURI updates owner-mutable metadata on one registry entry.
func (db *DB) SetUnitURI(ctx context.Context, registryID string, unitID int64, uri string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE units SET metadata_uri = ?, updated_at = ? WHERE registry_id = ? AND unit_id = ?`,
		uri, time.Now(), registryID, unitID)
	if err != nil {
		return fmt.Errorf("failed to set unit uri: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("unit %d in %s: %w", unitID, registryID, models.ErrNotFound)
	}
	return nil
}

func scanUnit(row rowScanner) (*models.Unit, error) {
	var u models.Unit
	var owner string
	err := row.Scan(&u.RegistryID, &u.UnitID, &owner, &u.MetadataURI, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Owner = models.Address(owner)
	return &u, nil
}
