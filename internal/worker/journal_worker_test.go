package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"staytoken/internal/database"
	"staytoken/internal/events"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWorker(t *testing.T) (*JournalWorker, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJournalWorker(db, RetryPolicy{}, &logger), db
}

func waitForJournal(t *testing.T, db *database.DB, want int) []*models.JournalRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		records, err := db.ListJournal(context.Background(), 100)
		require.NoError(t, err)
		if len(records) >= want {
			return records
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("journal never reached %d records", want)
	return nil
}

func TestJournalWorker_PersistsPublishedEvents(t *testing.T) {
	w, db := setupWorker(t)
	bus := events.NewEventBus()
	w.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, bus.PublishJSON(events.EventBookingCreated,
		events.BookingPayload{BookingID: 1, Owner: "0xalice", Status: "booked"}))
	require.NoError(t, bus.PublishJSON(events.EventUnitMinted,
		events.BookingPayload{BookingID: 1, Owner: "0xalice", Status: "confirmed"}))

	records := waitForJournal(t, db, 2)
	types := []string{records[0].Type, records[1].Type}
	assert.Contains(t, types, events.EventBookingCreated)
	assert.Contains(t, types, events.EventUnitMinted)
}

func TestJournalWorker_EnqueueValidation(t *testing.T) {
	w, _ := setupWorker(t)
	ctx := context.Background()

	assert.Error(t, w.Enqueue(ctx, nil))
	assert.Error(t, w.Enqueue(ctx, &models.JournalRecord{}))

	rec := &models.JournalRecord{Type: "booking_created", Payload: []byte(`{}`)}
	require.NoError(t, w.Enqueue(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestJournalWorker_FullQueueRejects(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	w := NewJournalWorker(db, RetryPolicy{}, &logger)
	ctx := context.Background()

	// Воркер не запущен, забиваем очередь до отказа
	var rejected bool
	for i := 0; i < models.JournalQueueSize+1; i++ {
		if err := w.Enqueue(ctx, &models.JournalRecord{Type: "booking_created"}); err != nil {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)
}

func TestJournalWorker_DrainsOnShutdown(t *testing.T) {
	w, db := setupWorker(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Enqueue(ctx, &models.JournalRecord{Type: "cancelled", Payload: []byte(`{}`)}))

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	records, err := db.ListJournal(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
