package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"
	"staytoken/internal/registry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Factory provisions ticketed events: persists the event record, spins up the
// dedicated ownership registry and keeps handles to the live registries so the
// rest of the process resolves them by id.
type Factory struct {
	store  domain.Store
	bus    domain.EventPublisher
	logger *zerolog.Logger

	mu         sync.RWMutex
	registries map[string]*registry.Registry
}

func New(store domain.Store, bus domain.EventPublisher, logger *zerolog.Logger) *Factory {
	f := &Factory{
		store:      store,
		bus:        bus,
		logger:     logger,
		registries: make(map[string]*registry.Registry),
	}
	f.registries[models.RegistryStays] = registry.New(models.RegistryStays, store, bus, logger)
	f.registries[models.RegistryPostStay] = registry.NewPostStay(store, bus, logger)
	return f
}

// CreateEvent provisions a ticketed event and its registry. Admin only.
func (f *Factory) CreateEvent(ctx context.Context, caller models.Address, name, eventType string, start, end time.Time, capacity, tradeTimeLimitHours int64) (*models.Event, error) {
	ok, err := f.store.HasRole(ctx, models.CapabilityAdmin, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("caller %s lacks admin capability: %w", caller, models.ErrUnauthorized)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("event end %s not after start: %w", end.Format(time.RFC3339), models.ErrInvalidDateRange)
	}
	if capacity < 1 {
		return nil, fmt.Errorf("event capacity %d: %w", capacity, models.ErrCapacityExceeded)
	}

	event := &models.Event{
		Name:                name,
		ReferenceID:         uuid.NewString(),
		Type:                eventType,
		Start:               start,
		End:                 end,
		TicketCapacity:      capacity,
		TradeTimeLimitHours: tradeTimeLimitHours,
	}
	if err := f.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	reg := registry.New(event.RegistryID, f.store, f.bus, f.logger)
	f.mu.Lock()
	f.registries[event.RegistryID] = reg
	f.mu.Unlock()

	if f.bus != nil {
		payload := map[string]interface{}{
			"event_id":    event.ID,
			"name":        event.Name,
			"registry_id": event.RegistryID,
			"capacity":    event.TicketCapacity,
		}
		if err := f.bus.PublishJSON(events.EventEventCreated, payload); err != nil {
			f.logger.Error().Err(err).Int64("event_id", event.ID).Msg("publish event created error")
		}
	}
	return event, nil
}

// Registry resolves a live registry handle by id. Event registries of a prior
// process run are re-created lazily from the persisted event record.
func (f *Factory) Registry(ctx context.Context, id string) (*registry.Registry, error) {
	f.mu.RLock()
	reg, ok := f.registries[id]
	f.mu.RUnlock()
	if ok {
		return reg, nil
	}

	var eventID int64
	if _, err := fmt.Sscanf(id, "event:%d", &eventID); err != nil {
		return nil, fmt.Errorf("registry %s: %w", id, models.ErrNotFound)
	}
	if _, err := f.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.registries[id]; ok {
		return existing, nil
	}
	reg = registry.New(id, f.store, f.bus, f.logger)
	f.registries[id] = reg
	return reg, nil
}

// RegistryForBooking resolves the registry the booking's unit lives in.
func (f *Factory) RegistryForBooking(ctx context.Context, b *models.Booking) (*registry.Registry, error) {
	return f.Registry(ctx, b.RegistryID())
}

// PostStay returns the post-stay registry.
func (f *Factory) PostStay() *registry.Registry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.registries[models.RegistryPostStay]
}
