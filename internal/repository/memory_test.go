package repository

import (
	"context"
	"testing"
	"time"

	"staytoken/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Booking(t *testing.T) {
	cache := NewMemoryCacheRepository(time.Minute)
	ctx := context.Background()

	got, err := cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	b := &models.Booking{ID: 1, Owner: "0xalice"}
	require.NoError(t, cache.SetBooking(ctx, b))

	got, err = cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.NoError(t, cache.InvalidateBooking(ctx, 1))
	got, err = cache.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCacheRepository(time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.SetListing(ctx, &models.Listing{UnitID: 7, Price: 100}))
	time.Sleep(5 * time.Millisecond)

	got, err := cache.GetListing(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}
