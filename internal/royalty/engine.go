package royalty

import (
	"context"
	"fmt"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
)

// Engine stores the royalty schedule and computes the distribution of trade
// proceeds. Fraction updates that would push the combined total past 100% are
// rejected in full.
type Engine struct {
	store  domain.Store
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func NewEngine(store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Engine {
	return &Engine{store: store, bus: bus, logger: logger}
}

// SetFixedRoyalty updates the platform or hotel entry. Admin only.
func (e *Engine) SetFixedRoyalty(ctx context.Context, caller models.Address, role string, entry models.RoyaltyEntry) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if role != models.RoyaltyRolePlatform && role != models.RoyaltyRoleHotel {
		return fmt.Errorf("unknown fixed royalty role %q: %w", role, models.ErrNotFound)
	}
	if entry.Recipient.IsZero() {
		return fmt.Errorf("royalty recipient: %w", models.ErrInvalidAddress)
	}
	if entry.FractionBps < 0 {
		return fmt.Errorf("negative royalty fraction: %w", models.ErrSettlementOverflow)
	}

	schedule, err := e.store.GetRoyaltySchedule(ctx)
	if err != nil {
		return err
	}
	switch role {
	case models.RoyaltyRolePlatform:
		schedule.Platform = entry
	case models.RoyaltyRoleHotel:
		schedule.Hotel = entry
	}
	if schedule.TotalBps() > models.BpsDenominator {
		return fmt.Errorf("royalty total %d bps exceeds %d: %w",
			schedule.TotalBps(), models.BpsDenominator, models.ErrSettlementOverflow)
	}

	if err := e.store.SetFixedRoyalty(ctx, role, entry); err != nil {
		return err
	}
	e.publishUpdate(role, entry.FractionBps)
	return nil
}

// SetFirstOwnerRoyalty updates the first-owner fraction. The recipient is the
// per-unit snapshot, so only the fraction is configurable. Admin only.
func (e *Engine) SetFirstOwnerRoyalty(ctx context.Context, caller models.Address, fractionBps int64) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if fractionBps < 0 {
		return fmt.Errorf("negative royalty fraction: %w", models.ErrSettlementOverflow)
	}

	schedule, err := e.store.GetRoyaltySchedule(ctx)
	if err != nil {
		return err
	}
	schedule.FirstOwner.FractionBps = fractionBps
	if schedule.TotalBps() > models.BpsDenominator {
		return fmt.Errorf("royalty total %d bps exceeds %d: %w",
			schedule.TotalBps(), models.BpsDenominator, models.ErrSettlementOverflow)
	}

	entry := models.RoyaltyEntry{Recipient: schedule.FirstOwner.Recipient, FractionBps: fractionBps}
	if entry.Recipient.IsZero() {
		entry.Recipient = models.ZeroAddress
	}
	if err := e.store.SetFixedRoyalty(ctx, models.RoyaltyRoleFirstOwner, entry); err != nil {
		return err
	}
	e.publishUpdate(models.RoyaltyRoleFirstOwner, fractionBps)
	return nil
}

// SetOtherRoyalties replaces the whole "other" list atomically. The list's own
// subtotal and the new combined total must both stay within 100%. Admin only.
func (e *Engine) SetOtherRoyalties(ctx context.Context, caller models.Address, recipients []models.Address, fractionsBps []int64) error {
	if err := e.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if len(recipients) != len(fractionsBps) {
		return fmt.Errorf("recipients %d, fractions %d: %w",
			len(recipients), len(fractionsBps), models.ErrArraySizeMismatch)
	}

	entries := make([]models.RoyaltyEntry, 0, len(recipients))
	var subtotal int64
	for i, r := range recipients {
		if r.IsZero() {
			return fmt.Errorf("other royalty recipient %d: %w", i, models.ErrInvalidAddress)
		}
		if fractionsBps[i] < 0 {
			return fmt.Errorf("negative royalty fraction: %w", models.ErrSettlementOverflow)
		}
		subtotal += fractionsBps[i]
		entries = append(entries, models.RoyaltyEntry{Recipient: r, FractionBps: fractionsBps[i]})
	}
	if subtotal > models.BpsDenominator {
		return fmt.Errorf("other royalties subtotal %d bps exceeds %d: %w",
			subtotal, models.BpsDenominator, models.ErrSettlementOverflow)
	}

	schedule, err := e.store.GetRoyaltySchedule(ctx)
	if err != nil {
		return err
	}
	fixed := schedule.Platform.FractionBps + schedule.Hotel.FractionBps + schedule.FirstOwner.FractionBps
	if fixed+subtotal > models.BpsDenominator {
		return fmt.Errorf("royalty total %d bps exceeds %d: %w",
			fixed+subtotal, models.BpsDenominator, models.ErrSettlementOverflow)
	}

	if err := e.store.ReplaceOtherRoyalties(ctx, entries); err != nil {
		return err
	}
	e.publishUpdate("others", subtotal)
	return nil
}

// ComputeSplit distributes proceeds per the schedule. The returned payouts sum
// to exactly proceeds: the remainder left after bps rounding and unallocated
// fractions is credited to the first owner, falling back to the platform
// recipient, so no value leaks.
func (e *Engine) ComputeSplit(ctx context.Context, unitID int64, proceeds int64) ([]models.Payout, error) {
	if proceeds < 0 {
		return nil, fmt.Errorf("negative proceeds: %w", models.ErrSettlementOverflow)
	}

	schedule, err := e.store.GetRoyaltySchedule(ctx)
	if err != nil {
		return nil, err
	}
	firstOwner, err := e.store.FirstOwner(ctx, unitID)
	if err != nil {
		return nil, err
	}

	cut := func(bps int64) int64 { return proceeds * bps / models.BpsDenominator }

	var payouts []models.Payout
	var distributed int64
	add := func(recipient models.Address, amount int64) {
		if amount <= 0 || recipient.IsZero() {
			return
		}
		distributed += amount
		for i := range payouts {
			if payouts[i].Recipient.Equal(recipient) {
				payouts[i].Amount += amount
				return
			}
		}
		payouts = append(payouts, models.Payout{Recipient: recipient.Normalize(), Amount: amount})
	}

	add(schedule.Platform.Recipient, cut(schedule.Platform.FractionBps))
	add(schedule.Hotel.Recipient, cut(schedule.Hotel.FractionBps))
	add(firstOwner, cut(schedule.FirstOwner.FractionBps))
	for _, o := range schedule.Others {
		add(o.Recipient, cut(o.FractionBps))
	}

	remainder := proceeds - distributed
	if remainder > 0 {
		switch {
		case !firstOwner.IsZero():
			add(firstOwner, remainder)
		case !schedule.Platform.Recipient.IsZero():
			add(schedule.Platform.Recipient, remainder)
		default:
			return nil, fmt.Errorf("no recipient for remainder: %w", models.ErrInvalidAddress)
		}
	}

	return payouts, nil
}

// Info returns the schedule in force plus the unit's first-owner snapshot.
func (e *Engine) Info(ctx context.Context, unitID int64) (*models.RoyaltyInfo, error) {
	schedule, err := e.store.GetRoyaltySchedule(ctx)
	if err != nil {
		return nil, err
	}
	firstOwner, err := e.store.FirstOwner(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return &models.RoyaltyInfo{UnitID: unitID, FirstOwner: firstOwner, Schedule: *schedule}, nil
}

func (e *Engine) requireAdmin(ctx context.Context, caller models.Address) error {
	ok, err := e.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("caller %s lacks admin capability: %w", caller, models.ErrUnauthorized)
	}
	return nil
}

func (e *Engine) publishUpdate(role string, bps int64) {
	if e.bus == nil {
		return
	}
	payload := map[string]interface{}{"role": role, "fraction_bps": bps}
	if err := e.bus.PublishJSON(events.EventRoyaltyUpdated, payload); err != nil {
		e.logger.Error().Err(err).Str("role", role).Msg("publish royalty update error")
	}
}
