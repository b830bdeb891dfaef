package repository

import (
	"context"
	"sync"
	"time"

	"staytoken/internal/models"
)

type memoryEntry struct {
	value     interface{}
	expiresAt time.Time
}

type MemoryCacheRepository struct {
	bookings sync.Map
	listings sync.Map
	ttl      time.Duration
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{ttl: ttl}
}

func (r *MemoryCacheRepository) load(m *sync.Map, key int64) (interface{}, bool) {
	val, ok := m.Load(key)
	if !ok {
		return nil, false
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.Delete(key)
		return nil, false
	}
	return entry.value, true
}

func (r *MemoryCacheRepository) store(m *sync.Map, key int64, value interface{}) {
	m.Store(key, &memoryEntry{value: value, expiresAt: time.Now().Add(r.ttl)})
}

func (r *MemoryCacheRepository) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	val, ok := r.load(&r.bookings, id)
	if !ok {
		return nil, nil
	}
	return val.(*models.Booking), nil
}

func (r *MemoryCacheRepository) SetBooking(ctx context.Context, booking *models.Booking) error {
	r.store(&r.bookings, booking.ID, booking)
	return nil
}

func (r *MemoryCacheRepository) InvalidateBooking(ctx context.Context, id int64) error {
	r.bookings.Delete(id)
	return nil
}

func (r *MemoryCacheRepository) GetListing(ctx context.Context, unitID int64) (*models.Listing, error) {
	val, ok := r.load(&r.listings, unitID)
	if !ok {
		return nil, nil
	}
	return val.(*models.Listing), nil
}

func (r *MemoryCacheRepository) SetListing(ctx context.Context, listing *models.Listing) error {
	r.store(&r.listings, listing.UnitID, listing)
	return nil
}

func (r *MemoryCacheRepository) InvalidateListing(ctx context.Context, unitID int64) error {
	r.listings.Delete(unitID)
	return nil
}
