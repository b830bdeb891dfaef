package repository

import (
	"context"
	"sync/atomic"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCacheRepository serves from the primary cache until it errors, then
// falls back to the in-memory cache and probes the primary again after a
// minute.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCacheRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverCacheRepository) shouldProbe() bool {
	return r.isDown.Load() && time.Since(r.lastCheck) > time.Minute
}

func (r *FailoverCacheRepository) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	if !r.isDown.Load() {
		b, err := r.primary.GetBooking(ctx, id)
		if err == nil {
			return b, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		b, err := r.primary.GetBooking(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			return b, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetBooking(ctx, id)
}

func (r *FailoverCacheRepository) SetBooking(ctx context.Context, booking *models.Booking) error {
	if !r.isDown.Load() {
		err := r.primary.SetBooking(ctx, booking)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetBooking(ctx, booking)
}

func (r *FailoverCacheRepository) InvalidateBooking(ctx context.Context, id int64) error {
	// Инвалидируем обе стороны, чтобы не отдать устаревший снимок
	if !r.isDown.Load() {
		if err := r.primary.InvalidateBooking(ctx, id); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.InvalidateBooking(ctx, id)
}

func (r *FailoverCacheRepository) GetListing(ctx context.Context, unitID int64) (*models.Listing, error) {
	if !r.isDown.Load() {
		l, err := r.primary.GetListing(ctx, unitID)
		if err == nil {
			return l, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		l, err := r.primary.GetListing(ctx, unitID)
		if err == nil {
			r.isDown.Store(false)
			return l, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetListing(ctx, unitID)
}

func (r *FailoverCacheRepository) SetListing(ctx context.Context, listing *models.Listing) error {
	if !r.isDown.Load() {
		err := r.primary.SetListing(ctx, listing)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetListing(ctx, listing)
}

func (r *FailoverCacheRepository) InvalidateListing(ctx context.Context, unitID int64) error {
	if !r.isDown.Load() {
		if err := r.primary.InvalidateListing(ctx, unitID); err != nil {
			r.markDown(err)
		}
	}
	return r.fallback.InvalidateListing(ctx, unitID)
}
