package factory

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

const adminAddr = models.Address("0xAdmin")

func setupFactory(t *testing.T) (*Factory, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.GrantRole(context.Background(), models.CapabilityAdmin, adminAddr))
	return New(db, nil, &logger), db
}

func eventDates() (time.Time, time.Time) {
	start := time.Now().Add(240 * time.Hour).UTC().Truncate(time.Second)
	return start, start.Add(72 * time.Hour)
}

func TestCreateEvent(t *testing.T) {
	f, db := setupFactory(t)
	ctx := context.Background()
	start, end := eventDates()

	event, err := f.CreateEvent(ctx, adminAddr, "Winter Summit", "conference", start, end, 50, 12)
	require.NoError(t, err)
	require.NotZero(t, event.ID)
	assert.Equal(t, models.EventRegistryID(event.ID), event.RegistryID)
	assert.NotEmpty(t, event.ReferenceID)

	got, err := db.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.TicketCapacity)

	reg, err := f.Registry(ctx, event.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, event.RegistryID, reg.ID())
}

func TestCreateEvent_Rejections(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()
	start, end := eventDates()

	_, err := f.CreateEvent(ctx, "0xMallory", "Summit", "conference", start, end, 50, 12)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.CreateEvent(ctx, adminAddr, "Summit", "conference", start, start, 50, 12)
	assert.ErrorIs(t, err, models.ErrInvalidDateRange)

	_, err = f.CreateEvent(ctx, adminAddr, "Summit", "conference", start, end, 0, 12)
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
}

func TestRegistry_BuiltIns(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()

	stays, err := f.Registry(ctx, models.RegistryStays)
	require.NoError(t, err)
	assert.Equal(t, models.RegistryStays, stays.ID())

	assert.Equal(t, models.RegistryPostStay, f.PostStay().ID())
}

func TestRegistry_LazyResolution(t *testing.T) {
	f, db := setupFactory(t)
	ctx := context.Background()
	start, end := eventDates()

	event, err := f.CreateEvent(ctx, adminAddr, "Summit", "conference", start, end, 50, 12)
	require.NoError(t, err)

	// Новый процесс: реестры известны только из хранилища
	logger := zerolog.Nop()
	fresh := New(db, nil, &logger)
	reg, err := fresh.Registry(ctx, event.RegistryID)
	require.NoError(t, err)
	assert.Equal(t, event.RegistryID, reg.ID())
}

func TestRegistry_Unknown(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()

	_, err := f.Registry(ctx, "event:999")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.Registry(ctx, "garbage")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegistryForBooking(t *testing.T) {
	f, _ := setupFactory(t)
	ctx := context.Background()

	reg, err := f.RegistryForBooking(ctx, &models.Booking{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, models.RegistryStays, reg.ID())
}
