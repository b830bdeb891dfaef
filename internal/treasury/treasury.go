package treasury

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
)

// Treasury custodies settlement currency pulled from bookings. Outbound
// movement happens only on instruction from the controller capability
// (payouts) or the admin capability (withdrawals), and a pause switch blocks
// all of it while engaged.
type Treasury struct {
	addr   models.Address
	store  domain.Store
	bus    domain.EventPublisher
	logger *zerolog.Logger

	mu     sync.RWMutex
	ledger domain.ValueLedger

	paused atomic.Bool
}

func New(addr models.Address, ledger domain.ValueLedger, store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Treasury {
	return &Treasury{
		addr:   addr.Normalize(),
		ledger: ledger,
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// Address is the treasury's identity on the value ledger.
func (t *Treasury) Address() models.Address { return t.addr }

// SetLedger rewires the settlement currency. The controller calls it from the
// admin-gated currency setter.
func (t *Treasury) SetLedger(l domain.ValueLedger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger = l
}

func (t *Treasury) currentLedger() domain.ValueLedger {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger
}

// Balance returns the custodied settlement-currency balance.
func (t *Treasury) Balance(ctx context.Context) (int64, error) {
	return t.currentLedger().BalanceOf(ctx, t.addr)
}

// Pull draws pre-approved funds from a payer into custody. Controller only.
func (t *Treasury) Pull(ctx context.Context, caller, from models.Address, amount int64) error {
	if err := t.requireRole(ctx, models.CapabilityController, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("pull amount %d: %w", amount, models.ErrSettlementOverflow)
	}
	if err := t.currentLedger().TransferFrom(ctx, t.addr, from, t.addr, amount); err != nil {
		return fmt.Errorf("treasury pull: %w", err)
	}
	return nil
}

// PayOut sends custodied funds to a recipient. Controller only; blocked while
// paused.
func (t *Treasury) PayOut(ctx context.Context, caller models.Address, amount int64, recipient models.Address) error {
	if t.paused.Load() {
		return fmt.Errorf("treasury: %w", models.ErrPaused)
	}
	if err := t.requireRole(ctx, models.CapabilityController, caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return fmt.Errorf("payout recipient: %w", models.ErrInvalidAddress)
	}
	if amount <= 0 {
		return fmt.Errorf("payout amount %d: %w", amount, models.ErrSettlementOverflow)
	}

	if err := t.currentLedger().Transfer(ctx, t.addr, recipient, amount); err != nil {
		return fmt.Errorf("treasury payout: %w", err)
	}
	t.publish(events.EventTreasuryPayout, recipient, amount)
	return nil
}

// Withdraw sends custodied settlement currency to a recipient. Admin only;
// blocked while paused.
func (t *Treasury) Withdraw(ctx context.Context, caller models.Address, amount int64, recipient models.Address) error {
	if t.paused.Load() {
		return fmt.Errorf("treasury: %w", models.ErrPaused)
	}
	if err := t.requireRole(ctx, models.CapabilityAdmin, caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return fmt.Errorf("withdraw recipient: %w", models.ErrInvalidAddress)
	}
	if amount <= 0 {
		return fmt.Errorf("withdraw amount %d: %w", amount, models.ErrSettlementOverflow)
	}

	if err := t.currentLedger().Transfer(ctx, t.addr, recipient, amount); err != nil {
		return fmt.Errorf("treasury withdraw: %w", err)
	}
	t.publish(events.EventTreasuryWithdrawal, recipient, amount)
	return nil
}

// WithdrawOther recovers tokens of a different ledger accidentally sent to the
// treasury address. Admin only; blocked while paused.
func (t *Treasury) WithdrawOther(ctx context.Context, caller models.Address, amount int64, recipient models.Address, tokenAddr models.Address, token domain.ValueLedger) error {
	if t.paused.Load() {
		return fmt.Errorf("treasury: %w", models.ErrPaused)
	}
	if err := t.requireRole(ctx, models.CapabilityAdmin, caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return fmt.Errorf("withdraw recipient: %w", models.ErrInvalidAddress)
	}
	if tokenAddr.IsZero() || token == nil {
		return fmt.Errorf("token address: %w", models.ErrInvalidAddress)
	}
	if amount <= 0 {
		return fmt.Errorf("withdraw amount %d: %w", amount, models.ErrSettlementOverflow)
	}

	if err := token.Transfer(ctx, t.addr, recipient, amount); err != nil {
		return fmt.Errorf("treasury withdraw other: %w", err)
	}
	t.publish(events.EventTreasuryWithdrawal, recipient, amount)
	return nil
}

// Pause blocks all outbound movement. Admin only.
func (t *Treasury) Pause(ctx context.Context, caller models.Address) error {
	if err := t.requireRole(ctx, models.CapabilityAdmin, caller); err != nil {
		return err
	}
	t.paused.Store(true)
	return nil
}

// Unpause re-enables outbound movement. Admin only.
func (t *Treasury) Unpause(ctx context.Context, caller models.Address) error {
	if err := t.requireRole(ctx, models.CapabilityAdmin, caller); err != nil {
		return err
	}
	t.paused.Store(false)
	return nil
}

// Paused reports the pause switch.
func (t *Treasury) Paused() bool { return t.paused.Load() }

func (t *Treasury) requireRole(ctx context.Context, capability string, caller models.Address) error {
	ok, err := t.store.HasRole(ctx, capability, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("caller %s lacks %s capability: %w", caller, capability, models.ErrUnauthorized)
	}
	return nil
}

func (t *Treasury) publish(eventType string, recipient models.Address, amount int64) {
	if t.bus == nil {
		return
	}
	payload := map[string]interface{}{
		"recipient": string(recipient.Normalize()),
		"amount":    amount,
	}
	if err := t.bus.PublishJSON(eventType, payload); err != nil {
		t.logger.Error().Err(err).Str("event_type", eventType).Msg("publish treasury event error")
	}
}
