package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"jadbank/internal/models"
)

// RedisStore keeps idempotency records in Redis with a TTL. Reservation
// uses SETNX, so it is safe across processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a Store on client. Records expire after ttl.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(scope, key string) string {
	return "idempotency:" + scope + ":" + key
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, rec *models.IdempotencyRecord) (*models.IdempotencyRecord, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, err
	}

	ok, err := s.client.SetNX(ctx, redisKey(rec.Scope, rec.Key), data, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	existing, found, err := s.Find(ctx, rec.Scope, rec.Key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		// Expired or released between the two calls.
		return s.Reserve(ctx, rec)
	}
	return existing, false, nil
}

// Complete implements Store.
func (s *RedisStore) Complete(ctx context.Context, scope, key, intentID string, response json.RawMessage) error {
	return s.update(ctx, scope, key, func(rec *models.IdempotencyRecord) {
		rec.Status = models.IdempotencyCompleted
		rec.Response = response
		if intentID != "" {
			rec.IntentID = intentID
		}
	})
}

// Reject implements Store. The key is deleted so the next Reserve wins.
func (s *RedisStore) Reject(ctx context.Context, scope, key string) error {
	return s.client.Del(ctx, redisKey(scope, key)).Err()
}

// MarkAmbiguous implements Store. Records already settled by
// reconciliation are left alone.
func (s *RedisStore) MarkAmbiguous(ctx context.Context, scope, key, intentID string) error {
	return s.update(ctx, scope, key, func(rec *models.IdempotencyRecord) {
		if rec.Status != models.IdempotencyInFlight {
			return
		}
		rec.Status = models.IdempotencyAmbiguous
		if intentID != "" {
			rec.IntentID = intentID
		}
	})
}

// Find implements Store.
func (s *RedisStore) Find(ctx context.Context, scope, key string) (*models.IdempotencyRecord, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(scope, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec models.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *RedisStore) update(ctx context.Context, scope, key string, mutate func(*models.IdempotencyRecord)) error {
	rec, found, err := s.Find(ctx, scope, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("idempotency record %s/%s not found", scope, key)
	}
	mutate(rec)
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey(scope, key), data, redis.KeepTTL).Err()
}
