package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
)

// Registry is a multi-unit ownership ledger keyed by unit id. Active
// registries gate holder transfers on the booking's tradeability rule; the
// post-stay registry has no window rule once an entry exists. Mint and burn
// run through the controller's store transactions, never through holders.
type Registry struct {
	id       string
	postStay bool
	store    domain.Store
	bus      domain.EventPublisher
	logger   *zerolog.Logger
	nowFunc  func() time.Time

	mu        sync.RWMutex
	operators map[models.Address]map[models.Address]bool
}

// New constructs an active registry.
func New(id string, store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Registry {
	return &Registry{
		id:        id,
		store:     store,
		bus:       bus,
		logger:    logger,
		nowFunc:   time.Now,
		operators: make(map[models.Address]map[models.Address]bool),
	}
}

// NewPostStay constructs the post-stay registry: completed stays, permanently
// transferable by owner, admin or marketplace.
func NewPostStay(store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Registry {
	r := New(models.RegistryPostStay, store, bus, logger)
	r.postStay = true
	return r
}

func (r *Registry) ID() string { return r.id }

// SetNowFunc overrides the clock. Tests exercise window boundaries with it.
func (r *Registry) SetNowFunc(f func() time.Time) { r.nowFunc = f }

// BalanceOf reports how many matching units the owner holds.
func (r *Registry) BalanceOf(ctx context.Context, owner models.Address, unitID int64) (int64, error) {
	return r.store.BalanceOf(ctx, r.id, owner, unitID)
}

// OwnerOf returns the holder of a unit.
func (r *Registry) OwnerOf(ctx context.Context, unitID int64) (models.Address, error) {
	u, err := r.store.GetUnit(ctx, r.id, unitID)
	if err != nil {
		return models.ZeroAddress, err
	}
	return u.Owner, nil
}

// SetApprovalForAll lets an owner authorize an operator for all their units.
func (r *Registry) SetApprovalForAll(owner, operator models.Address, approved bool) {
	owner = owner.Normalize()
	operator = operator.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operators[owner] == nil {
		r.operators[owner] = make(map[models.Address]bool)
	}
	r.operators[owner][operator] = approved
}

// IsApprovedForAll reports operator authorization.
func (r *Registry) IsApprovedForAll(owner, operator models.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operators[owner.Normalize()][operator.Normalize()]
}

// Transfer moves a batch of units from one holder to another in one atomic
// call. The caller must hold the units or be an approved operator, except that
// the marketplace capability may move units regardless of the trade-time
// window to execute a matched sale.
func (r *Registry) Transfer(ctx context.Context, caller, from, to models.Address, unitIDs []int64) error {
	if to.IsZero() {
		return fmt.Errorf("transfer to null address: %w", models.ErrInvalidAddress)
	}
	if len(unitIDs) < 1 || len(unitIDs) > models.MaxBatch {
		return fmt.Errorf("batch of %d: %w", len(unitIDs), models.ErrBatchSizeOutOfBounds)
	}

	isMarketplace, err := r.store.HasRole(ctx, models.CapabilityMarketplace, caller)
	if err != nil {
		return err
	}
	isAdmin, err := r.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return err
	}
	if !caller.Equal(from) && !r.IsApprovedForAll(from, caller) && !isMarketplace && !isAdmin {
		return fmt.Errorf("caller %s may not move units of %s: %w", caller, from, models.ErrUnauthorized)
	}

	for _, id := range unitIDs {
		u, err := r.store.GetUnit(ctx, r.id, id)
		if err != nil {
			return err
		}
		if !u.Owner.Equal(from) {
			return fmt.Errorf("unit %d held by %s, not %s: %w", id, u.Owner, from, models.ErrUnauthorized)
		}
		if r.postStay {
			continue
		}
		if err := r.checkTransferable(ctx, id, isMarketplace); err != nil {
			return err
		}
	}

	if err := r.store.TransferUnits(ctx, r.id, from, to, unitIDs); err != nil {
		return err
	}

	r.publishTransfer(caller, from, to, unitIDs)
	return nil
}

// IsTradeable reports whether the unit may currently be moved by its holder.
func (r *Registry) IsTradeable(ctx context.Context, unitID int64) (bool, error) {
	if _, err := r.store.GetUnit(ctx, r.id, unitID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if r.postStay {
		return true, nil
	}
	if err := r.checkTransferable(ctx, unitID, false); err != nil {
		if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrStatusMismatch) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetUnitURI updates owner-mutable metadata.
func (r *Registry) SetUnitURI(ctx context.Context, caller models.Address, unitID int64, uri string) error {
	u, err := r.store.GetUnit(ctx, r.id, unitID)
	if err != nil {
		return err
	}
	if !u.Owner.Equal(caller) {
		return fmt.Errorf("caller %s does not hold unit %d: %w", caller, unitID, models.ErrUnauthorized)
	}
	return r.store.SetUnitURI(ctx, r.id, unitID, uri)
}

// checkTransferable applies the active-registry rule: not checked in,
// tradeable flag set, and inside the trade-time window. The marketplace
// capability bypasses the window only.
func (r *Registry) checkTransferable(ctx context.Context, unitID int64, marketplace bool) error {
	b, err := r.store.GetBooking(ctx, unitID)
	if err != nil {
		return err
	}
	if b.Status == models.StatusCheckedIn {
		return fmt.Errorf("unit %d is checked in: %w", unitID, models.ErrStatusMismatch)
	}
	if !b.Tradeable {
		return fmt.Errorf("unit %d is not tradeable: %w", unitID, models.ErrUnauthorized)
	}
	if !marketplace && !r.nowFunc().Before(b.TradeDeadline()) {
		return fmt.Errorf("trade window for unit %d closed: %w", unitID, models.ErrUnauthorized)
	}
	return nil
}

func (r *Registry) publishTransfer(operator, from, to models.Address, unitIDs []int64) {
	if r.bus == nil {
		return
	}
	payload := events.TransferPayload{
		RegistryID: r.id,
		UnitIDs:    unitIDs,
		From:       string(from.Normalize()),
		To:         string(to.Normalize()),
		Operator:   string(operator.Normalize()),
	}
	if err := r.bus.PublishJSON(events.EventOwnershipTransferred, payload); err != nil {
		r.logger.Error().Err(err).Str("registry", r.id).Msg("publish transfer error")
	}
}
