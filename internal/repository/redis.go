package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"prodsync/internal/config"
	"prodsync/internal/models"

	"github.com/redis/go-redis/v9"
)

const jobKey = "prodsync:job"

// RedisProgressStore keeps the SyncJob as one JSON blob under a fixed key.
// Merge is read-modify-write without locking; the engine is the only
// writer and serializes its own calls.
type RedisProgressStore struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisProgressStore(client *redis.Client) *RedisProgressStore {
	return &RedisProgressStore{client: client}
}

func (r *RedisProgressStore) Read(ctx context.Context) (models.SyncJob, error) {
	if r.client == nil {
		return models.SyncJob{}, fmt.Errorf("redis client is nil")
	}

	val, err := r.client.Get(ctx, jobKey).Result()
	if err == redis.Nil {
		return models.NewIdleJob(), nil
	}
	if err != nil {
		return models.SyncJob{}, fmt.Errorf("failed to get job from redis: %w", err)
	}

	var job models.SyncJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return models.SyncJob{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return job, nil
}

func (r *RedisProgressStore) Merge(ctx context.Context, update models.JobUpdate) (models.SyncJob, error) {
	job, err := r.Read(ctx)
	if err != nil {
		return models.SyncJob{}, err
	}

	job.Apply(update)

	data, err := json.Marshal(job)
	if err != nil {
		return models.SyncJob{}, fmt.Errorf("failed to marshal job: %w", err)
	}

	// No TTL: job state survives restarts so an interrupted sync resumes.
	if err := r.client.Set(ctx, jobKey, data, 0).Err(); err != nil {
		return models.SyncJob{}, fmt.Errorf("failed to set job in redis: %w", err)
	}
	return job, nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
