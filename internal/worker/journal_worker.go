package worker

import (
	"context"
	"errors"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/events"
	"staytoken/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JournalWorker drains emitted protocol records into the audit journal. It
// subscribes to every event type and persists asynchronously so publishers
// never block on the database.
type JournalWorker struct {
	store       domain.Store
	retryPolicy RetryPolicy
	queue       chan *models.JournalRecord
	logger      *zerolog.Logger
}

// NewJournalWorker builds a worker with sane defaults.
func NewJournalWorker(store domain.Store, retry RetryPolicy, logger *zerolog.Logger) *JournalWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &JournalWorker{
		store:       store,
		retryPolicy: retry,
		queue:       make(chan *models.JournalRecord, models.JournalQueueSize),
		logger:      logger,
	}
}

// Attach subscribes the worker to every record the bus emits.
func (w *JournalWorker) Attach(bus *events.EventBus) {
	bus.SubscribeAll(func(event *events.Event) error {
		rec := &models.JournalRecord{
			ID:        uuid.NewString(),
			Type:      event.Type,
			Payload:   event.Payload,
			CreatedAt: event.CreatedAt,
		}
		return w.Enqueue(context.Background(), rec)
	})
}

// Enqueue schedules a record for persistence. A full queue rejects rather
// than blocking the publisher.
func (w *JournalWorker) Enqueue(ctx context.Context, rec *models.JournalRecord) error {
	if rec == nil || rec.Type == "" {
		return errors.New("journal record type is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	select {
	case w.queue <- rec:
		return nil
	default:
		w.logger.Warn().Str("type", rec.Type).Msg("journal queue full, record dropped")
		return errors.New("journal queue full")
	}
}

// Start launches the main loop; stops when ctx is done, draining what is
// already queued.
func (w *JournalWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("journal worker started")
	defer w.logger.Info().Msg("journal worker stopped")

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case rec := <-w.queue:
			w.persist(ctx, rec)
		}
	}
}

func (w *JournalWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-w.queue:
			w.persist(ctx, rec)
		default:
			return
		}
	}
}

func (w *JournalWorker) persist(ctx context.Context, rec *models.JournalRecord) {
	var lastErr error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		lastErr = w.store.AppendJournal(ctx, rec)
		if lastErr == nil {
			return
		}
		select {
		case <-ctx.Done():
			w.logger.Error().Err(lastErr).Str("id", rec.ID).Msg("journal persist aborted")
			return
		case <-time.After(w.retryPolicy.NextDelay(attempt)):
		}
	}
	w.logger.Error().Err(lastErr).Str("id", rec.ID).Str("type", rec.Type).Msg("journal record dropped after retries")
}
