package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"staytoken/internal/database"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRegistry(t *testing.T) (*Registry, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(models.RegistryStays, db, nil, &logger), db
}

func newUnit(t *testing.T, db *database.DB, owner models.Address) *models.Booking {
	t.Helper()
	ctx := context.Background()
	checkIn := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	b := &models.Booking{
		Owner:               owner,
		TotalAmount:         100_000,
		BaseRate:            80_000,
		MinimumDeposit:      20_000,
		RoomCount:           1,
		CheckIn:             checkIn,
		CheckOut:            checkIn.Add(48 * time.Hour),
		TradeTimeLimitHours: 24,
		Tradeable:           true,
		Status:              models.StatusBooked,
		ReferenceID:         "ref-reg",
	}
	require.NoError(t, db.CreateBookings(ctx, []*models.Booking{b}))
	require.NoError(t, db.MintUnits(ctx, []models.UnitMint{{
		BookingID:  b.ID,
		RegistryID: b.RegistryID(),
		Owner:      b.Owner,
	}}))
	return b
}

func TestTransfer_ByHolder(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	require.NoError(t, r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", []int64{b.ID}))

	owner, err := r.OwnerOf(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Address("0xbob"), owner)
}

func TestTransfer_Rejections(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")

	err := r.Transfer(ctx, "0xAlice", "0xAlice", models.ZeroAddress, []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrInvalidAddress)

	err = r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", nil)
	assert.ErrorIs(t, err, models.ErrBatchSizeOutOfBounds)

	err = r.Transfer(ctx, "0xMallory", "0xAlice", "0xMallory", []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTransfer_OperatorApproval(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")

	r.SetApprovalForAll("0xAlice", "0xOperator", true)
	assert.True(t, r.IsApprovedForAll("0xalice", "0xOPERATOR"))

	require.NoError(t, r.Transfer(ctx, "0xOperator", "0xAlice", "0xBob", []int64{b.ID}))

	r.SetApprovalForAll("0xBob", "0xOperator", false)
	err := r.Transfer(ctx, "0xOperator", "0xBob", "0xCarol", []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestTransfer_WindowBoundary(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	deadline := b.CheckIn.Add(-24 * time.Hour)

	// Ровно на границе окна передача уже закрыта
	r.SetNowFunc(func() time.Time { return deadline })
	err := r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	r.SetNowFunc(func() time.Time { return deadline.Add(-time.Second) })
	require.NoError(t, r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", []int64{b.ID}))
}

func TestTransfer_MarketplaceBypassesWindow(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	require.NoError(t, db.GrantRole(ctx, models.CapabilityMarketplace, "0xMarket"))

	r.SetNowFunc(func() time.Time { return b.CheckIn })
	require.NoError(t, r.Transfer(ctx, "0xMarket", "0xAlice", "0xBob", []int64{b.ID}))
}

func TestTransfer_AdminMayMove(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	require.NoError(t, db.GrantRole(ctx, models.CapabilityAdmin, "0xAdmin"))

	require.NoError(t, r.Transfer(ctx, "0xAdmin", "0xAlice", "0xBob", []int64{b.ID}))
}

func TestTransfer_CheckedInBlocked(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	require.NoError(t, db.CheckInBookings(ctx, []int64{b.ID}))

	err := r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrStatusMismatch)
}

func TestTransfer_NonTradeableBlocked(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	checkIn := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	b := &models.Booking{
		Owner:          "0xAlice",
		TotalAmount:    100_000,
		BaseRate:       80_000,
		MinimumDeposit: 20_000,
		RoomCount:      1,
		CheckIn:        checkIn,
		CheckOut:       checkIn.Add(48 * time.Hour),
		Tradeable:      false,
		Status:         models.StatusBooked,
		ReferenceID:    "ref-locked",
	}
	require.NoError(t, db.CreateBookings(ctx, []*models.Booking{b}))
	require.NoError(t, db.MintUnits(ctx, []models.UnitMint{{
		BookingID:  b.ID,
		RegistryID: b.RegistryID(),
		Owner:      b.Owner,
	}}))

	err := r.Transfer(ctx, "0xAlice", "0xAlice", "0xBob", []int64{b.ID})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestIsTradeable(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	ok, err := r.IsTradeable(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)

	b := newUnit(t, db, "0xAlice")
	ok, err = r.IsTradeable(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	r.SetNowFunc(func() time.Time { return b.CheckIn })
	ok, err = r.IsTradeable(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostStay_AlwaysTransferable(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")
	require.NoError(t, db.CheckInBookings(ctx, []int64{b.ID}))
	require.NoError(t, db.CheckOutBookings(ctx, []int64{b.ID}))

	r := NewPostStay(db, nil, &logger)
	r.SetNowFunc(func() time.Time { return b.CheckOut.Add(365 * 24 * time.Hour) })

	ok, err := r.IsTradeable(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.Transfer(ctx, "0xAlice", "0xAlice", "0xCollector", []int64{b.ID}))
	owner, err := r.OwnerOf(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Address("0xcollector"), owner)
}

func TestSetUnitURI_OwnerOnly(t *testing.T) {
	r, db := setupRegistry(t)
	ctx := context.Background()

	b := newUnit(t, db, "0xAlice")

	require.NoError(t, r.SetUnitURI(ctx, "0xAlice", b.ID, "ipfs://updated"))
	u, err := db.GetUnit(ctx, models.RegistryStays, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://updated", u.MetadataURI)

	err = r.SetUnitURI(ctx, "0xMallory", b.ID, "ipfs://stolen")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
