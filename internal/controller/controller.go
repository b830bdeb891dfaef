package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/metrics"
	"staytoken/internal/models"
	"staytoken/internal/royalty"
	"staytoken/internal/treasury"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Configuration record keys.
const (
	ConfigTreasuryAddress = "treasury_address"
	ConfigCurrencyAddress = "currency_address"
	ConfigAdminAddress    = "admin_address"
	ConfigCommissionBps   = "commission_bps"
	ConfigContractName    = "contract_name"
)

// Controller orchestrates the booking lifecycle. It is the sole writer of
// booking state and the only caller allowed to move escrowed funds or mint and
// burn ownership records. Every operation validates first, then commits all
// writes in one store transaction, then issues external value transfers.
type Controller struct {
	addr     models.Address
	store    domain.Store
	bus      domain.EventPublisher
	logger   *zerolog.Logger
	nowFunc  func() time.Time

	mu       sync.Mutex
	ledger   domain.ValueLedger
	treasury *treasury.Treasury
	royalty  *royalty.Engine
	verifier domain.SignatureVerifier

	paused atomic.Bool
}

// New constructs an unwired controller. Collaborators are attached afterwards
// through the admin-gated setters; constructor-time cycles are avoided that
// way.
func New(addr models.Address, store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Controller {
	return &Controller{
		addr:    addr.Normalize(),
		store:   store,
		bus:     bus,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Address is the controller's identity, granted the controller capability.
func (c *Controller) Address() models.Address { return c.addr }

// SetNowFunc overrides the clock for tests.
func (c *Controller) SetNowFunc(f func() time.Time) { c.nowFunc = f }

// Bootstrap seeds the capability sets: the given admin identity and the
// controller's own controller capability.
func (c *Controller) Bootstrap(ctx context.Context, admin models.Address) error {
	if admin.IsZero() {
		return fmt.Errorf("admin: %w", models.ErrInvalidAddress)
	}
	if err := c.store.GrantRole(ctx, models.CapabilityAdmin, admin); err != nil {
		return err
	}
	if err := c.store.GrantRole(ctx, models.CapabilityController, c.addr); err != nil {
		return err
	}
	return c.store.SetConfig(ctx, ConfigAdminAddress, string(admin.Normalize()))
}

// Book validates and persists a batch of bookings and pulls the combined total
// into the treasury. The caller must have pre-approved at least that much
// allowance to the treasury on the value ledger.
func (c *Controller) Book(ctx context.Context, caller models.Address, reqs []models.BookingRequest, referenceID string, checkIn, checkOut time.Time, tradeTimeLimitHours int64, tradeable bool) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if caller.IsZero() {
		return nil, fmt.Errorf("booking owner: %w", models.ErrInvalidAddress)
	}
	total, err := c.validateBookingBatch(reqs, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	allowance, err := c.ledger.Allowance(ctx, caller, c.treasury.Address())
	if err != nil {
		return nil, err
	}
	if allowance < total {
		return nil, fmt.Errorf("allowance %d, need %d: %w", allowance, total, models.ErrInsufficientAllowance)
	}
	balance, err := c.ledger.BalanceOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, fmt.Errorf("balance %d, need %d: %w", balance, total, models.ErrInsufficientBalance)
	}

	ids, err := c.createBookings(ctx, caller, reqs, referenceID, checkIn, checkOut, tradeTimeLimitHours, tradeable)
	if err != nil {
		return nil, err
	}

	if err := c.treasury.Pull(ctx, c.addr, caller, total); err != nil {
		// Разворачиваем записи, если перевод не прошёл
		if delErr := c.store.DeleteBookings(ctx, ids); delErr != nil {
			c.logger.Error().Err(delErr).Msg("failed to unwind bookings after pull failure")
		}
		return nil, err
	}

	metrics.IncOperation("book")
	return ids, nil
}

// BookFor books on behalf of a named owner without pulling funds, for pre-paid
// and OTA flows. Admin only.
func (c *Controller) BookFor(ctx context.Context, caller, owner models.Address, reqs []models.BookingRequest, referenceID string, checkIn, checkOut time.Time, tradeTimeLimitHours int64, tradeable bool) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("booking owner: %w", models.ErrInvalidAddress)
	}
	if _, err := c.validateBookingBatch(reqs, checkIn, checkOut); err != nil {
		return nil, err
	}

	ids, err := c.createBookings(ctx, owner, reqs, referenceID, checkIn, checkOut, tradeTimeLimitHours, tradeable)
	if err != nil {
		return nil, err
	}
	metrics.IncOperation("book_for")
	return ids, nil
}

// Mint transitions booked records to confirmed and creates the ownership
// registry entries, snapshotting the first owner. The caller must own each
// booking or hold the admin capability.
func (c *Controller) Mint(ctx context.Context, caller models.Address, ids []int64, uris []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if len(ids) != len(uris) {
		return fmt.Errorf("ids %d, uris %d: %w", len(ids), len(uris), models.ErrArraySizeMismatch)
	}
	if err := checkBatch(len(ids)); err != nil {
		return err
	}

	isAdmin, err := c.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return err
	}

	mints := make([]models.UnitMint, 0, len(ids))
	payloads := make([]events.BookingPayload, 0, len(ids))
	for i, id := range ids {
		b, err := c.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusBooked {
			return fmt.Errorf("booking %d is %s: %w", id, b.Status, models.ErrStatusMismatch)
		}
		if !isAdmin && !b.Owner.Equal(caller) {
			return fmt.Errorf("caller %s does not own booking %d: %w", caller, id, models.ErrUnauthorized)
		}
		mints = append(mints, models.UnitMint{
			BookingID:  id,
			RegistryID: b.RegistryID(),
			EventID:    b.EventID,
			Owner:      b.Owner,
			URI:        uris[i],
		})
		payloads = append(payloads, bookingPayload(b, models.StatusConfirmed))
	}

	if err := c.store.MintUnits(ctx, mints); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventUnitMinted, p)
	}
	metrics.IncOperation("mint")
	return nil
}

// CheckIn sets confirmed bookings to checked in, engaging the
// non-transferability rule. Unit owner or admin.
func (c *Controller) CheckIn(ctx context.Context, caller models.Address, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if err := checkBatch(len(ids)); err != nil {
		return err
	}

	isAdmin, err := c.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return err
	}

	payloads := make([]events.BookingPayload, 0, len(ids))
	for _, id := range ids {
		b, err := c.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusConfirmed {
			return fmt.Errorf("booking %d is %s: %w", id, b.Status, models.ErrStatusMismatch)
		}
		u, err := c.store.GetUnit(ctx, b.RegistryID(), id)
		if err != nil {
			return err
		}
		if !isAdmin && !u.Owner.Equal(caller) {
			return fmt.Errorf("caller %s does not hold unit %d: %w", caller, id, models.ErrUnauthorized)
		}
		payloads = append(payloads, bookingPayload(b, models.StatusCheckedIn))
	}

	if err := c.store.CheckInBookings(ctx, ids); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventCheckedIn, p)
	}
	metrics.IncOperation("checkin")
	return nil
}

// CheckOut burns the active entry, mints the post-stay entry to the same owner
// and sets checked out. Admin only, and only once the stay has elapsed.
func (c *Controller) CheckOut(ctx context.Context, caller models.Address, ids []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := checkBatch(len(ids)); err != nil {
		return err
	}

	now := c.nowFunc()
	payloads := make([]events.BookingPayload, 0, len(ids))
	for _, id := range ids {
		b, err := c.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusCheckedIn {
			return fmt.Errorf("booking %d is %s: %w", id, b.Status, models.ErrStatusMismatch)
		}
		// Допускаем выписку ровно в момент check_out
		if now.Before(b.CheckOut) {
			return fmt.Errorf("booking %d checkout at %s, now %s: %w",
				id, b.CheckOut.Format(time.RFC3339), now.Format(time.RFC3339), models.ErrInvalidDateRange)
		}
		payloads = append(payloads, bookingPayload(b, models.StatusCheckedOut))
	}

	if err := c.store.CheckOutBookings(ctx, ids); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventCheckedOut, p)
	}
	metrics.IncOperation("checkout")
	return nil
}

// Cancel burns whichever registry entries exist, pays the agreed refunds from
// the treasury and sets cancelled. Admin only; the owner must have signed the
// exact settlement figures. Reachable only from booked or checked_in.
func (c *Controller) Cancel(ctx context.Context, caller models.Address, ids []int64, penalties, refunds, charges []int64, owner models.Address, sig []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if len(penalties) != len(ids) || len(refunds) != len(ids) || len(charges) != len(ids) {
		return fmt.Errorf("cancellation arrays: %w", models.ErrArraySizeMismatch)
	}
	if err := checkBatch(len(ids)); err != nil {
		return err
	}

	terms := make([]models.CancellationTerms, len(ids))
	for i := range ids {
		terms[i] = models.CancellationTerms{Penalty: penalties[i], Refund: refunds[i], Charges: charges[i]}
	}
	message := c.verifier.CancellationMessage(terms)
	signer, err := c.verifier.RecoverSigner(message, sig)
	if err != nil {
		return err
	}
	if !signer.Equal(owner) {
		return fmt.Errorf("signed by %s, expected %s: %w", signer, owner, models.ErrSignatureMismatch)
	}

	payloads, totalRefund, err := c.validateCancellation(ctx, ids, terms, owner)
	if err != nil {
		return err
	}
	if err := c.ensureRefundable(ctx, totalRefund); err != nil {
		return err
	}

	if err := c.store.CancelBookings(ctx, ids); err != nil {
		return err
	}
	if err := c.payRefund(ctx, owner, totalRefund); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventCancelled, p)
	}
	metrics.IncOperation("cancel")
	return nil
}

// EmergencyCancel is the trusted admin override: same settlement bounds as
// Cancel, no signature verification.
func (c *Controller) EmergencyCancel(ctx context.Context, caller models.Address, id int64, refund, charges int64, owner models.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}

	terms := []models.CancellationTerms{{Refund: refund, Charges: charges}}
	payloads, totalRefund, err := c.validateCancellation(ctx, []int64{id}, terms, owner)
	if err != nil {
		return err
	}
	if err := c.ensureRefundable(ctx, totalRefund); err != nil {
		return err
	}

	if err := c.store.CancelBookings(ctx, []int64{id}); err != nil {
		return err
	}
	if err := c.payRefund(ctx, owner, totalRefund); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventEmergencyCancelled, p)
	}
	metrics.IncOperation("emergency_cancel")
	return nil
}

// RefundFailedBooking returns the full totals of bookings that never minted.
// Admin only; valid only while still booked.
func (c *Controller) RefundFailedBooking(ctx context.Context, caller models.Address, ids []int64, owner models.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkPaused(); err != nil {
		return err
	}
	if err := c.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if err := checkBatch(len(ids)); err != nil {
		return err
	}

	var totalRefund int64
	payloads := make([]events.SettlementPayload, 0, len(ids))
	for _, id := range ids {
		b, err := c.store.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != models.StatusBooked {
			return fmt.Errorf("booking %d is %s: %w", id, b.Status, models.ErrStatusMismatch)
		}
		if !b.Owner.Equal(owner) {
			return fmt.Errorf("booking %d owned by %s: %w", id, b.Owner, models.ErrUnauthorized)
		}
		totalRefund += b.TotalAmount
		payloads = append(payloads, events.SettlementPayload{
			BookingID: id,
			Owner:     string(owner.Normalize()),
			Refund:    b.TotalAmount,
		})
	}

	if err := c.ensureRefundable(ctx, totalRefund); err != nil {
		return err
	}
	if err := c.store.CancelBookings(ctx, ids); err != nil {
		return err
	}
	if err := c.payRefund(ctx, owner, totalRefund); err != nil {
		return err
	}

	for _, p := range payloads {
		c.publish(events.EventBookingRefunded, p)
	}
	metrics.IncOperation("refund_failed_booking")
	return nil
}

func (c *Controller) validateBookingBatch(reqs []models.BookingRequest, checkIn, checkOut time.Time) (int64, error) {
	if err := c.checkPaused(); err != nil {
		return 0, err
	}
	if err := checkBatch(len(reqs)); err != nil {
		return 0, err
	}
	now := c.nowFunc()
	if !checkIn.After(now) {
		return 0, fmt.Errorf("check-in %s is not in the future: %w", checkIn.Format(time.RFC3339), models.ErrInvalidDateRange)
	}
	if !checkOut.After(checkIn) {
		return 0, fmt.Errorf("check-out %s not after check-in: %w", checkOut.Format(time.RFC3339), models.ErrInvalidDateRange)
	}

	var total int64
	for i, req := range reqs {
		if req.Total <= 0 {
			return 0, fmt.Errorf("booking %d total %d: %w", i, req.Total, models.ErrSettlementOverflow)
		}
		if req.MinimumDeposit < 0 || req.MinimumDeposit > req.Total || req.BaseRate < 0 || req.BaseRate > req.Total {
			return 0, fmt.Errorf("booking %d figures exceed total: %w", i, models.ErrSettlementOverflow)
		}
		total += req.Total
	}
	return total, nil
}

func (c *Controller) createBookings(ctx context.Context, owner models.Address, reqs []models.BookingRequest, referenceID string, checkIn, checkOut time.Time, tradeTimeLimitHours int64, tradeable bool) ([]int64, error) {
	if referenceID == "" {
		referenceID = uuid.NewString()
	}

	bookings := make([]*models.Booking, 0, len(reqs))
	for _, req := range reqs {
		roomCount := req.RoomCount
		if roomCount <= 0 {
			roomCount = 1
		}
		bookings = append(bookings, &models.Booking{
			EventID:             req.EventID,
			Owner:               owner.Normalize(),
			TotalAmount:         req.Total,
			BaseRate:            req.BaseRate,
			MinimumDeposit:      req.MinimumDeposit,
			RoomCount:           roomCount,
			ExtraCount:          req.ExtraCount,
			CheckIn:             checkIn,
			CheckOut:            checkOut,
			TradeTimeLimitHours: tradeTimeLimitHours,
			Tradeable:           tradeable,
			Status:              models.StatusBooked,
			ReferenceID:         referenceID,
		})
	}

	if err := c.store.CreateBookings(ctx, bookings); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
		c.publish(events.EventBookingCreated, bookingPayload(b, models.StatusBooked))
	}
	return ids, nil
}

func (c *Controller) validateCancellation(ctx context.Context, ids []int64, terms []models.CancellationTerms, owner models.Address) ([]events.SettlementPayload, int64, error) {
	var totalRefund int64
	payloads := make([]events.SettlementPayload, 0, len(ids))
	for i, id := range ids {
		t := terms[i]
		if t.Refund < 0 || t.Charges < 0 || t.Penalty < 0 {
			return nil, 0, fmt.Errorf("booking %d negative settlement figure: %w", id, models.ErrSettlementOverflow)
		}

		b, err := c.store.GetBooking(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		if b.Status != models.StatusBooked && b.Status != models.StatusCheckedIn {
			return nil, 0, fmt.Errorf("booking %d is %s: %w", id, b.Status, models.ErrStatusMismatch)
		}
		if !b.Owner.Equal(owner) {
			return nil, 0, fmt.Errorf("booking %d owned by %s, not %s: %w", id, b.Owner, owner, models.ErrUnauthorized)
		}
		if t.Refund+t.Charges > b.TotalAmount {
			return nil, 0, fmt.Errorf("refund %d + charges %d exceed total %d: %w",
				t.Refund, t.Charges, b.TotalAmount, models.ErrSettlementOverflow)
		}

		totalRefund += t.Refund
		payloads = append(payloads, events.SettlementPayload{
			BookingID: id,
			Owner:     string(owner.Normalize()),
			Penalty:   t.Penalty,
			Refund:    t.Refund,
			Charges:   t.Charges,
		})
	}
	return payloads, totalRefund, nil
}

// ensureRefundable checks the treasury can actually pay the settlement before
// any booking state is committed. Бронирования не гасим, пока выплата не
// гарантирована.
func (c *Controller) ensureRefundable(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if c.treasury.Paused() {
		return fmt.Errorf("treasury: %w", models.ErrPaused)
	}
	balance, err := c.treasury.Balance(ctx)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("treasury balance %d, refund %d: %w", balance, amount, models.ErrInsufficientBalance)
	}
	return nil
}

func (c *Controller) payRefund(ctx context.Context, owner models.Address, amount int64) error {
	if amount <= 0 {
		return nil
	}
	if err := c.treasury.PayOut(ctx, c.addr, amount, owner); err != nil {
		return err
	}
	metrics.AddPayout(amount)
	return nil
}

func (c *Controller) checkPaused() error {
	if c.paused.Load() {
		return fmt.Errorf("controller: %w", models.ErrPaused)
	}
	return nil
}

func (c *Controller) requireAdmin(ctx context.Context, caller models.Address) error {
	ok, err := c.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("caller %s lacks admin capability: %w", caller, models.ErrUnauthorized)
	}
	return nil
}

func (c *Controller) publish(eventType string, payload interface{}) {
	if c.bus == nil {
		return
	}
	if err := c.bus.PublishJSON(eventType, payload); err != nil {
		c.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func checkBatch(n int) error {
	if n < 1 || n > models.MaxBatch {
		return fmt.Errorf("batch of %d: %w", n, models.ErrBatchSizeOutOfBounds)
	}
	return nil
}

func bookingPayload(b *models.Booking, status string) events.BookingPayload {
	return events.BookingPayload{
		BookingID:   b.ID,
		EventID:     b.EventID,
		Owner:       string(b.Owner.Normalize()),
		TotalAmount: b.TotalAmount,
		Status:      status,
		ReferenceID: b.ReferenceID,
		CheckIn:     b.CheckIn,
		CheckOut:    b.CheckOut,
	}
}
