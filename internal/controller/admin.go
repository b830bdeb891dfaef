package controller

import (
	"context"
	"fmt"
	"strconv"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"
	"staytoken/internal/royalty"
	"staytoken/internal/treasury"
)

// SetTreasury wires the escrow component. Admin only; the previous address is
// retained in the change record.
func (c *Controller) SetTreasury(ctx context.Context, caller models.Address, t *treasury.Treasury) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if t == nil || t.Address().IsZero() {
		return fmt.Errorf("treasury: %w", models.ErrInvalidAddress)
	}

	old, _ := c.store.GetConfig(ctx, ConfigTreasuryAddress)
	c.treasury = t
	if err := c.store.SetConfig(ctx, ConfigTreasuryAddress, string(t.Address())); err != nil {
		return err
	}
	if err := c.store.GrantRole(ctx, models.CapabilityController, c.addr); err != nil {
		return err
	}

	c.publishChange(events.EventTreasurySet, ConfigTreasuryAddress, old, string(t.Address()), caller)
	return nil
}

// SetSettlementCurrency swaps the value ledger all escrow moves through. Admin
// only. Existing custodied balances stay on the old ledger; the admin drains
// them through the treasury before switching.
func (c *Controller) SetSettlementCurrency(ctx context.Context, caller models.Address, addr models.Address, ledger domain.ValueLedger) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if addr.IsZero() || ledger == nil {
		return fmt.Errorf("settlement currency: %w", models.ErrInvalidAddress)
	}

	old, _ := c.store.GetConfig(ctx, ConfigCurrencyAddress)
	c.ledger = ledger
	if c.treasury != nil {
		c.treasury.SetLedger(ledger)
	}
	if err := c.store.SetConfig(ctx, ConfigCurrencyAddress, string(addr.Normalize())); err != nil {
		return err
	}

	c.publishChange(events.EventWalletSet, ConfigCurrencyAddress, old, string(addr.Normalize()), caller)
	return nil
}

// SetRoyaltyEngine wires the split engine used for marketplace settlement.
// Admin only.
func (c *Controller) SetRoyaltyEngine(ctx context.Context, caller models.Address, e *royalty.Engine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("royalty engine: %w", models.ErrInvalidAddress)
	}
	c.royalty = e
	return nil
}

// SetSignatureVerifier wires the cancellation signature scheme. Admin only.
func (c *Controller) SetSignatureVerifier(ctx context.Context, caller models.Address, v domain.SignatureVerifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("signature verifier: %w", models.ErrInvalidAddress)
	}
	c.verifier = v
	return nil
}

// SetAdmin hands the admin capability to a new identity and revokes it from
// the caller. Admin only.
func (c *Controller) SetAdmin(ctx context.Context, caller, next models.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if next.IsZero() {
		return fmt.Errorf("admin: %w", models.ErrInvalidAddress)
	}

	old, _ := c.store.GetConfig(ctx, ConfigAdminAddress)
	if err := c.store.GrantRole(ctx, models.CapabilityAdmin, next); err != nil {
		return err
	}
	if err := c.store.RevokeRole(ctx, models.CapabilityAdmin, caller); err != nil {
		return err
	}
	if err := c.store.SetConfig(ctx, ConfigAdminAddress, string(next.Normalize())); err != nil {
		return err
	}

	c.publishChange(events.EventAdminSet, ConfigAdminAddress, old, string(next.Normalize()), caller)
	return nil
}

// SetCommission records the platform commission in basis points. It is
// reported to integrators and carried on change records; settlement itself is
// driven by the royalty schedule. Admin only.
func (c *Controller) SetCommission(ctx context.Context, caller models.Address, bps int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if bps < 0 || bps > models.BpsDenominator {
		return fmt.Errorf("commission %d bps: %w", bps, models.ErrSettlementOverflow)
	}

	old, _ := c.store.GetConfig(ctx, ConfigCommissionBps)
	val := strconv.FormatInt(bps, 10)
	if err := c.store.SetConfig(ctx, ConfigCommissionBps, val); err != nil {
		return err
	}

	c.publishChange(events.EventCommissionSet, ConfigCommissionBps, old, val, caller)
	return nil
}

// Commission returns the recorded platform commission in basis points.
func (c *Controller) Commission(ctx context.Context) (int64, error) {
	raw, err := c.store.GetConfig(ctx, ConfigCommissionBps)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

// SetContractName records the human-readable deployment name. Admin only.
func (c *Controller) SetContractName(ctx context.Context, caller models.Address, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	old, _ := c.store.GetConfig(ctx, ConfigContractName)
	if err := c.store.SetConfig(ctx, ConfigContractName, name); err != nil {
		return err
	}
	c.publishChange(events.EventNameSet, ConfigContractName, old, name, caller)
	return nil
}

// SetBookingURI replaces booking metadata after corrections. Admin only; the
// unit's metadata follows the booking's.
func (c *Controller) SetBookingURI(ctx context.Context, caller models.Address, id int64, uri string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	return c.store.SetBookingURI(ctx, id, uri)
}

// GrantRole adds an identity to a capability set. Admin only.
func (c *Controller) GrantRole(ctx context.Context, caller models.Address, capability string, addr models.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return fmt.Errorf("grantee: %w", models.ErrInvalidAddress)
	}
	if err := c.store.GrantRole(ctx, capability, addr); err != nil {
		return err
	}
	c.publishChange(events.EventRoleGranted, capability, "", string(addr.Normalize()), caller)
	return nil
}

// RevokeRole removes an identity from a capability set. Admin only.
func (c *Controller) RevokeRole(ctx context.Context, caller models.Address, capability string, addr models.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := c.store.RevokeRole(ctx, capability, addr); err != nil {
		return err
	}
	c.publishChange(events.EventRoleRevoked, capability, string(addr.Normalize()), "", caller)
	return nil
}

// Pause blocks all state-changing operations. Admin only.
func (c *Controller) Pause(ctx context.Context, caller models.Address) error {
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	c.paused.Store(true)
	c.publish(events.EventPaused, map[string]interface{}{"actor": string(caller.Normalize())})
	return nil
}

// Unpause re-enables state-changing operations. Admin only.
func (c *Controller) Unpause(ctx context.Context, caller models.Address) error {
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	c.paused.Store(false)
	c.publish(events.EventUnpaused, map[string]interface{}{"actor": string(caller.Normalize())})
	return nil
}

// Paused reports the pause switch.
func (c *Controller) Paused() bool { return c.paused.Load() }

func (c *Controller) publishChange(eventType, field, oldValue, newValue string, actor models.Address) {
	c.publish(eventType, events.ChangePayload{
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		Actor:    string(actor.Normalize()),
	})
}
