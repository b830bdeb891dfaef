package database

import (
	"context"
	"fmt"

	"staytoken/internal/models"
)

// GrantRole adds an address to a capability set. Idempotent.
func (db *DB) GrantRole(ctx context.Context, capability string, addr models.Address) error {
	query := `INSERT INTO roles (capability, address) VALUES (?, ?)
              ON CONFLICT(capability, address) DO NOTHING`
	if _, err := db.ExecContext(ctx, query, capability, string(addr.Normalize())); err != nil {
		return fmt.Errorf("failed to grant %s to %s: %w", capability, addr, err)
	}
	return nil
}

// RevokeRole removes an address from a capability set.
func (db *DB) RevokeRole(ctx context.Context, capability string, addr models.Address) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM roles WHERE capability = ? AND address = ?`,
		capability, string(addr.Normalize())); err != nil {
		return fmt.Errorf("failed to revoke %s from %s: %w", capability, addr, err)
	}
	return nil
}

// HasRole reports membership. Checked at call time on every privileged entry
// point, never cached.
func (db *DB) HasRole(ctx context.Context, capability string, addr models.Address) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM roles WHERE capability = ? AND address = ?`,
		capability, string(addr.Normalize())).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return count > 0, nil
}
