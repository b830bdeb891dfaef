package database

import (
	"context"
	"testing"

	"staytoken/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoyaltySchedule_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	schedule, err := db.GetRoyaltySchedule(ctx)
	require.NoError(t, err)
	assert.Zero(t, schedule.Platform.FractionBps)
	assert.Empty(t, schedule.Others)

	require.NoError(t, db.SetFixedRoyalty(ctx, models.RoyaltyRolePlatform,
		models.RoyaltyEntry{Recipient: "0xPlatform", FractionBps: 250}))
	require.NoError(t, db.SetFixedRoyalty(ctx, models.RoyaltyRoleHotel,
		models.RoyaltyEntry{Recipient: "0xHotel", FractionBps: 500}))
	require.NoError(t, db.ReplaceOtherRoyalties(ctx, []models.RoyaltyEntry{
		{Recipient: "0xGuide", FractionBps: 100},
		{Recipient: "0xCharity", FractionBps: 50},
	}))

	schedule, err = db.GetRoyaltySchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Address("0xplatform"), schedule.Platform.Recipient)
	assert.Equal(t, int64(250), schedule.Platform.FractionBps)
	assert.Equal(t, int64(500), schedule.Hotel.FractionBps)
	require.Len(t, schedule.Others, 2)
	assert.Equal(t, models.Address("0xguide"), schedule.Others[0].Recipient)
	assert.Equal(t, int64(900), schedule.TotalBps())
}

func TestReplaceOtherRoyalties_Discards(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, db.ReplaceOtherRoyalties(ctx, []models.RoyaltyEntry{
		{Recipient: "0xOld", FractionBps: 300},
	}))
	require.NoError(t, db.ReplaceOtherRoyalties(ctx, []models.RoyaltyEntry{
		{Recipient: "0xNew", FractionBps: 100},
	}))

	schedule, err := db.GetRoyaltySchedule(ctx)
	require.NoError(t, err)
	require.Len(t, schedule.Others, 1)
	assert.Equal(t, models.Address("0xnew"), schedule.Others[0].Recipient)
}

func TestFirstOwner_SurvivesTransfers(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	b := testBooking("0xAlice")
	require.NoError(t, db.CreateBookings(ctx, []*models.Booking{b}))
	mintFor(t, db, b)

	require.NoError(t, db.TransferUnits(ctx, models.RegistryStays, "0xAlice", "0xBob", []int64{b.ID}))

	firstOwner, err := db.FirstOwner(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Address("0xalice"), firstOwner)

	_, err = db.FirstOwner(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
