package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"staytoken/internal/config"
	"staytoken/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCacheRepository(client *redis.Client, ttl time.Duration) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func bookingKey(id int64) string { return fmt.Sprintf("booking:%d", id) }
func listingKey(id int64) string { return fmt.Sprintf("listing:%d", id) }

func (r *RedisCacheRepository) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, bookingKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking from redis: %w", err)
	}

	var b models.Booking
	if err := json.Unmarshal([]byte(val), &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
	}
	return &b, nil
}

func (r *RedisCacheRepository) SetBooking(ctx context.Context, booking *models.Booking) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}
	if err := r.client.Set(ctx, bookingKey(booking.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set booking in redis: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) InvalidateBooking(ctx context.Context, id int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, bookingKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete booking from redis: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) GetListing(ctx context.Context, unitID int64) (*models.Listing, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, listingKey(unitID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing from redis: %w", err)
	}

	var l models.Listing
	if err := json.Unmarshal([]byte(val), &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}
	return &l, nil
}

func (r *RedisCacheRepository) SetListing(ctx context.Context, listing *models.Listing) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}
	if err := r.client.Set(ctx, listingKey(listing.UnitID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set listing in redis: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) InvalidateListing(ctx context.Context, unitID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, listingKey(unitID)).Err(); err != nil {
		return fmt.Errorf("failed to delete listing from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
