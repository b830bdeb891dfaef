package repository

import (
	"context"
	"testing"
	"time"

	"staytoken/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheRepository(client, 5*time.Minute), s
}

func TestRedisCache_Booking(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	// Промах не считается ошибкой
	got, err := cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	b := &models.Booking{ID: 1, Owner: "0xalice", TotalAmount: 100_000, Status: models.StatusBooked}
	require.NoError(t, cache.SetBooking(ctx, b))

	got, err = cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.Owner, got.Owner)
	assert.Equal(t, b.TotalAmount, got.TotalAmount)

	require.NoError(t, cache.InvalidateBooking(ctx, 1))
	got, err = cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_Listing(t *testing.T) {
	cache, _ := setupRedisCache(t)
	ctx := context.Background()

	l := &models.Listing{UnitID: 7, Seller: "0xseller", Price: 120_000, Status: models.ListingActive}
	require.NoError(t, cache.SetListing(ctx, l))

	got, err := cache.GetListing(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(120_000), got.Price)

	require.NoError(t, cache.InvalidateListing(ctx, 7))
	got, err = cache.GetListing(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_TTL(t *testing.T) {
	cache, s := setupRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetBooking(ctx, &models.Booking{ID: 2}))
	s.FastForward(6 * time.Minute)

	got, err := cache.GetBooking(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisCache_NilClient(t *testing.T) {
	cache := NewRedisCacheRepository(nil, time.Minute)
	_, err := cache.GetBooking(context.Background(), 1)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	require.NoError(t, Ping(context.Background(), client))

	s.Close()
	assert.Error(t, Ping(context.Background(), client))
}
