package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"staytoken/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	return db
}

func testBooking(owner models.Address) *models.Booking {
	checkIn := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	return &models.Booking{
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
		ReferenceID:         "ref-1",
	}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestConfig_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	val, err := db.GetConfig(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", val)

	require.NoError(t, db.SetConfig(ctx, "contract_name", "staytoken"))
	require.NoError(t, db.SetConfig(ctx, "contract_name", "staytoken-v2"))

	val, err = db.GetConfig(ctx, "contract_name")
	require.NoError(t, err)
	assert.Equal(t, "staytoken-v2", val)
}

func TestJournal_AppendAndList(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for i, typ := range []string{"booking_created", "unit_minted", "cancelled"} {
		rec := &models.JournalRecord{
			ID:        string(rune('a' + i)),
			Type:      typ,
			Payload:   []byte(`{"booking_id":1}`),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.AppendJournal(ctx, rec))
	}

	records, err := db.ListJournal(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "cancelled", records[0].Type)
}

func TestRoles_GrantRevokeHas(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	admin := models.Address("0xAdmin1")

	ok, err := db.HasRole(ctx, models.CapabilityAdmin, admin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.GrantRole(ctx, models.CapabilityAdmin, admin))
	// Повторный грант не ошибка
	require.NoError(t, db.GrantRole(ctx, models.CapabilityAdmin, admin))

	ok, err = db.HasRole(ctx, models.CapabilityAdmin, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.RevokeRole(ctx, models.CapabilityAdmin, admin))
	ok, err = db.HasRole(ctx, models.CapabilityAdmin, admin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvents_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	start := time.Now().Add(240 * time.Hour).UTC().Truncate(time.Second)
	event := &models.Event{
		Name:           "Winter Summit",
		ReferenceID:    "evt-ref",
		Type:           "conference",
		Start:          start,
		End:            start.Add(72 * time.Hour),
		TicketCapacity: 50,
	}
	require.NoError(t, db.CreateEvent(ctx, event))
	require.NotZero(t, event.ID)
	assert.Equal(t, models.EventRegistryID(event.ID), event.RegistryID)

	got, err := db.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Winter Summit", got.Name)
	assert.Equal(t, int64(50), got.TicketCapacity)
	assert.Equal(t, int64(0), got.TicketsIssued)

	_, err = db.GetEvent(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
