package controller

import (
	"context"
	"errors"

	"staytoken/internal/models"
)

// GetBookingDetails returns the booking record.
func (c *Controller) GetBookingDetails(ctx context.Context, id int64) (*models.Booking, error) {
	return c.store.GetBooking(ctx, id)
}

// GetEventDetails returns the ticketed event record.
func (c *Controller) GetEventDetails(ctx context.Context, id int64) (*models.Event, error) {
	return c.store.GetEvent(ctx, id)
}

// GetListingDetails returns the marketplace listing of a unit.
func (c *Controller) GetListingDetails(ctx context.Context, unitID int64) (*models.Listing, error) {
	return c.store.GetListing(ctx, unitID)
}

// GetRoyaltyInfo returns the schedule in force plus the unit's first-owner
// snapshot.
func (c *Controller) GetRoyaltyInfo(ctx context.Context, unitID int64) (*models.RoyaltyInfo, error) {
	return c.royalty.Info(ctx, unitID)
}

// IsTradeable reports whether the unit may currently be moved by its holder.
// Missing units report false rather than an error so integrators can poll.
func (c *Controller) IsTradeable(ctx context.Context, unitID int64) (bool, error) {
	if _, err := c.store.FindActiveUnit(ctx, unitID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Post-stay entries are permanently transferable.
			if _, psErr := c.store.GetUnit(ctx, models.RegistryPostStay, unitID); psErr == nil {
				return true, nil
			}
			return false, nil
		}
		return false, err
	}

	b, err := c.store.GetBooking(ctx, unitID)
	if err != nil {
		return false, err
	}
	if b.Status == models.StatusCheckedIn || !b.Tradeable {
		return false, nil
	}
	return c.nowFunc().Before(b.TradeDeadline()), nil
}
