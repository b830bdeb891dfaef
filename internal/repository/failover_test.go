package repository

import (
	"context"
	"testing"
	"time"

	"staytoken/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFailover(t *testing.T) (*FailoverCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	primary := NewRedisCacheRepository(client, 5*time.Minute)
	fallback := NewMemoryCacheRepository(5 * time.Minute)
	return NewFailoverCacheRepository(primary, fallback, &logger), s
}

func TestFailover_PrimaryHealthy(t *testing.T) {
	cache, _ := setupFailover(t)
	ctx := context.Background()

	b := &models.Booking{ID: 1, Owner: "0xalice"}
	require.NoError(t, cache.SetBooking(ctx, b))

	got, err := cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.Address("0xalice"), got.Owner)
}

func TestFailover_FallsBackWhenPrimaryDies(t *testing.T) {
	cache, s := setupFailover(t)
	ctx := context.Background()

	s.Close()

	// Запись уходит в память после падения Redis
	b := &models.Booking{ID: 2, Owner: "0xbob"}
	require.NoError(t, cache.SetBooking(ctx, b))
	assert.True(t, cache.isDown.Load())

	got, err := cache.GetBooking(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.Address("0xbob"), got.Owner)
}

func TestFailover_InvalidatesBothSides(t *testing.T) {
	cache, _ := setupFailover(t)
	ctx := context.Background()

	l := &models.Listing{UnitID: 7, Price: 100}
	require.NoError(t, cache.SetListing(ctx, l))
	require.NoError(t, cache.fallback.SetListing(ctx, l))

	require.NoError(t, cache.InvalidateListing(ctx, 7))

	got, err := cache.fallback.GetListing(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFailover_RecoversAfterProbeWindow(t *testing.T) {
	cache, _ := setupFailover(t)
	ctx := context.Background()

	cache.isDown.Store(true)
	cache.lastCheck = time.Now().Add(-2 * time.Minute)

	// Проба проходит и первичный кеш снова в строю
	_, err := cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.False(t, cache.isDown.Load())
}
