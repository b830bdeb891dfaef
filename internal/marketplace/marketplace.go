package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/metrics"
	"staytoken/internal/models"
	"staytoken/internal/royalty"

	"github.com/rs/zerolog"
)

// Marketplace runs resale of active-stay units: listing management and
// settlement of matched sales. It holds the marketplace capability, which lets
// the registry move a sold unit even after the trade-time window closed for
// the holder, so an accepted sale can always settle.
type Marketplace struct {
	addr    models.Address
	store   domain.Store
	bus     domain.EventPublisher
	royalty *royalty.Engine
	logger  *zerolog.Logger
	nowFunc func() time.Time

	mu sync.Mutex

	ledgerMu sync.RWMutex
	ledger   domain.ValueLedger
}

func New(addr models.Address, store domain.Store, ledger domain.ValueLedger, engine *royalty.Engine, bus domain.EventPublisher, logger *zerolog.Logger) *Marketplace {
	return &Marketplace{
		addr:    addr.Normalize(),
		store:   store,
		ledger:  ledger,
		royalty: engine,
		bus:     bus,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock. Tests exercise window boundaries with it.
func (m *Marketplace) SetNowFunc(f func() time.Time) { m.nowFunc = f }

// Address is the marketplace's identity, granted the marketplace capability.
func (m *Marketplace) Address() models.Address { return m.addr }

// SetLedger swaps the settlement currency alongside the controller's.
func (m *Marketplace) SetLedger(l domain.ValueLedger) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()
	m.ledger = l
}

func (m *Marketplace) currentLedger() domain.ValueLedger {
	m.ledgerMu.RLock()
	defer m.ledgerMu.RUnlock()
	return m.ledger
}

// CreateListing puts a held, currently transferable unit up for sale.
func (m *Marketplace) CreateListing(ctx context.Context, caller models.Address, unitID int64, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price <= 0 {
		return fmt.Errorf("listing price %d: %w", price, models.ErrSettlementOverflow)
	}
	if err := m.requireTransferableHolding(ctx, caller, unitID); err != nil {
		return err
	}

	listing := &models.Listing{
		UnitID: unitID,
		Seller: caller.Normalize(),
		Price:  price,
		Status: models.ListingActive,
	}
	if err := m.store.CreateListing(ctx, listing); err != nil {
		return err
	}

	m.publishListing(events.EventListingCreated, listing, models.ZeroAddress)
	metrics.IncOperation("listing_created")
	return nil
}

// Delist takes an active listing off the market, keeping the record for a
// later relist.
func (m *Marketplace) Delist(ctx context.Context, caller models.Address, unitID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.GetListing(ctx, unitID)
	if err != nil {
		return err
	}
	if !l.Seller.Equal(caller) {
		return fmt.Errorf("listing for unit %d belongs to %s: %w", unitID, l.Seller, models.ErrUnauthorized)
	}
	if l.Status != models.ListingActive {
		return fmt.Errorf("listing for unit %d is %s: %w", unitID, l.Status, models.ErrNotListed)
	}

	if err := m.store.UpdateListing(ctx, unitID, l.Price, models.ListingDelisted); err != nil {
		return err
	}

	l.Status = models.ListingDelisted
	m.publishListing(events.EventListingDelisted, l, models.ZeroAddress)
	return nil
}

// Relist reactivates a delisted record, optionally at a new price. The unit
// must still be held by the seller and transferable.
func (m *Marketplace) Relist(ctx context.Context, caller models.Address, unitID int64, price int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price <= 0 {
		return fmt.Errorf("listing price %d: %w", price, models.ErrSettlementOverflow)
	}

	l, err := m.store.GetListing(ctx, unitID)
	if err != nil {
		return err
	}
	if !l.Seller.Equal(caller) {
		return fmt.Errorf("listing for unit %d belongs to %s: %w", unitID, l.Seller, models.ErrUnauthorized)
	}
	if err := m.requireTransferableHolding(ctx, caller, unitID); err != nil {
		return err
	}

	if err := m.store.UpdateListing(ctx, unitID, price, models.ListingActive); err != nil {
		return err
	}

	l.Price = price
	l.Status = models.ListingActive
	m.publishListing(events.EventListingRelisted, l, models.ZeroAddress)
	return nil
}

// DeleteListing removes the record entirely. Seller only.
func (m *Marketplace) DeleteListing(ctx context.Context, caller models.Address, unitID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.store.GetListing(ctx, unitID)
	if err != nil {
		return err
	}
	if !l.Seller.Equal(caller) {
		return fmt.Errorf("listing for unit %d belongs to %s: %w", unitID, l.Seller, models.ErrUnauthorized)
	}

	if err := m.store.DeleteListing(ctx, unitID); err != nil {
		return err
	}

	m.publishListing(events.EventListingDeleted, l, models.ZeroAddress)
	return nil
}

// Buy settles an active listing: takes the buyer's payment into custody, moves
// the unit and clears the listing in one store transaction, then distributes
// the proceeds per the royalty split. The buyer must have approved at least
// the listing price to the marketplace on the value ledger.
func (m *Marketplace) Buy(ctx context.Context, buyer models.Address, unitID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buyer.IsZero() {
		return fmt.Errorf("buyer: %w", models.ErrInvalidAddress)
	}

	l, err := m.store.GetListing(ctx, unitID)
	if err != nil {
		return err
	}
	if l.Status != models.ListingActive {
		return fmt.Errorf("listing for unit %d is %s: %w", unitID, l.Status, models.ErrNotListed)
	}
	if l.Seller.Equal(buyer) {
		return fmt.Errorf("buyer %s is the seller: %w", buyer, models.ErrUnauthorized)
	}

	u, err := m.resolveListedUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if !u.Owner.Equal(l.Seller) {
		// Запись сменила владельца после листинга
		return fmt.Errorf("unit %d no longer held by seller %s: %w", unitID, l.Seller, models.ErrUnauthorized)
	}

	ledger := m.currentLedger()
	allowance, err := ledger.Allowance(ctx, buyer, m.addr)
	if err != nil {
		return err
	}
	if allowance < l.Price {
		return fmt.Errorf("allowance %d, need %d: %w", allowance, l.Price, models.ErrInsufficientAllowance)
	}
	balance, err := ledger.BalanceOf(ctx, buyer)
	if err != nil {
		return err
	}
	if balance < l.Price {
		return fmt.Errorf("balance %d, need %d: %w", balance, l.Price, models.ErrInsufficientBalance)
	}

	payouts, err := m.royalty.ComputeSplit(ctx, unitID, l.Price)
	if err != nil {
		return err
	}

	// Сначала забираем всю цену себе на счёт: разнос долей после продажи
	// идёт уже из собственной кастодии и не может не хватить средств.
	if err := ledger.TransferFrom(ctx, m.addr, buyer, m.addr, l.Price); err != nil {
		return fmt.Errorf("sale pull: %w", err)
	}

	if err := m.store.CompleteSale(ctx, u.RegistryID, unitID, l.Seller, buyer); err != nil {
		if refundErr := ledger.Transfer(ctx, m.addr, buyer, l.Price); refundErr != nil {
			m.logger.Error().Err(refundErr).
				Int64("unit_id", unitID).
				Str("buyer", string(buyer.Normalize())).
				Msg("failed to return payment after sale failure")
		}
		return err
	}

	for _, p := range payouts {
		if err := ledger.Transfer(ctx, m.addr, p.Recipient, p.Amount); err != nil {
			m.logger.Error().Err(err).
				Int64("unit_id", unitID).
				Str("recipient", string(p.Recipient)).
				Int64("amount", p.Amount).
				Msg("sale payout leg failed, funds remain in marketplace custody")
		}
	}

	l.Status = models.ListingSold
	m.publishListing(events.EventListingSold, l, buyer)
	metrics.IncOperation("listing_sold")
	return nil
}

// resolveListedUnit finds the unit behind a listing. Active stays must still
// be sellable; post-stay entries trade without restriction.
func (m *Marketplace) resolveListedUnit(ctx context.Context, unitID int64) (*models.Unit, error) {
	u, err := m.store.FindActiveUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return m.store.GetUnit(ctx, models.RegistryPostStay, unitID)
		}
		return nil, err
	}

	b, err := m.store.GetBooking(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.StatusCheckedIn {
		return nil, fmt.Errorf("unit %d is checked in: %w", unitID, models.ErrStatusMismatch)
	}
	if !b.Tradeable {
		return nil, fmt.Errorf("unit %d is not tradeable: %w", unitID, models.ErrUnauthorized)
	}
	return u, nil
}

// requireTransferableHolding checks the caller holds the unit and the active
// registry rule would let the holder move it right now.
func (m *Marketplace) requireTransferableHolding(ctx context.Context, caller models.Address, unitID int64) error {
	u, err := m.store.FindActiveUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Post-stay entries list freely.
			pu, psErr := m.store.GetUnit(ctx, models.RegistryPostStay, unitID)
			if psErr != nil {
				return err
			}
			if !pu.Owner.Equal(caller) {
				return fmt.Errorf("unit %d held by %s: %w", unitID, pu.Owner, models.ErrUnauthorized)
			}
			return nil
		}
		return err
	}
	if !u.Owner.Equal(caller) {
		return fmt.Errorf("unit %d held by %s: %w", unitID, u.Owner, models.ErrUnauthorized)
	}

	b, err := m.store.GetBooking(ctx, unitID)
	if err != nil {
		return err
	}
	if b.Status == models.StatusCheckedIn {
		return fmt.Errorf("unit %d is checked in: %w", unitID, models.ErrStatusMismatch)
	}
	if !b.Tradeable {
		return fmt.Errorf("unit %d is not tradeable: %w", unitID, models.ErrUnauthorized)
	}
	if !m.nowFunc().Before(b.TradeDeadline()) {
		return fmt.Errorf("trade window for unit %d closed: %w", unitID, models.ErrUnauthorized)
	}
	return nil
}

func (m *Marketplace) publishListing(eventType string, l *models.Listing, buyer models.Address) {
	if m.bus == nil {
		return
	}
	payload := events.ListingPayload{
		UnitID: l.UnitID,
		Seller: string(l.Seller.Normalize()),
		Price:  l.Price,
		Status: l.Status,
	}
	if !buyer.IsZero() {
		payload.Buyer = string(buyer.Normalize())
	}
	if err := m.bus.PublishJSON(eventType, payload); err != nil {
		m.logger.Error().Err(err).Int64("unit_id", l.UnitID).Msg("publish listing event error")
	}
}
