package record

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sayarat/internal/ratelimit/models"
	dErrors "sayarat/pkg/domain-errors"
)

const (
	countKeyPrefix = "rate:count:"
	blockKeyPrefix = "rate:block:"
)

// RedisStore keeps rate records in redis so admission state survives process
// restarts and is shared across instances. Per-key atomicity comes from INCR;
// window bookkeeping rides on key TTLs, so Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.Record, error) {
	pipe := s.client.Pipeline()
	countCmd := pipe.Get(ctx, countKeyPrefix+key)
	ttlCmd := pipe.TTL(ctx, countKeyPrefix+key)
	blockCmd := pipe.Get(ctx, blockKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "redis read failed")
	}

	record := &models.Record{Key: key}
	found := false

	if raw, err := countCmd.Result(); err == nil {
		attempts, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return nil, dErrors.Wrap(convErr, dErrors.CodeInternal, "corrupt rate counter")
		}
		record.Attempts = attempts
		found = true
		if ttl, err := ttlCmd.Result(); err == nil && ttl > 0 {
			record.ExpiresAt = time.Now().Add(ttl)
		}
	}

	if raw, err := blockCmd.Result(); err == nil {
		unix, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return nil, dErrors.Wrap(convErr, dErrors.CodeInternal, "corrupt block marker")
		}
		until := time.Unix(unix, 0)
		record.BlockedUntil = &until
		found = true
	}

	if !found {
		return nil, nil
	}
	return record, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, window, retention time.Duration, now time.Time) (*models.Record, error) {
	pipe := s.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, countKeyPrefix+key)
	// The window TTL is set only on first increment, which fixes the window
	// start; later increments ride the existing expiry.
	pipe.ExpireNX(ctx, countKeyPrefix+key, window)
	ttlCmd := pipe.TTL(ctx, countKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "redis increment failed")
	}

	record := &models.Record{
		Key:       key,
		Attempts:  int(incrCmd.Val()),
		ExpiresAt: now.Add(retention),
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		record.WindowStart = now.Add(ttl - window)
	} else {
		record.WindowStart = now
	}

	if raw, err := s.client.Get(ctx, blockKeyPrefix+key).Result(); err == nil {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			until := time.Unix(unix, 0)
			record.BlockedUntil = &until
		}
	}

	return record, nil
}

func (s *RedisStore) Block(ctx context.Context, key string, until time.Time, retention time.Duration) error {
	ttl := time.Until(until) + retention
	err := s.client.Set(ctx, blockKeyPrefix+key, strconv.FormatInt(until.Unix(), 10), ttl).Err()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "redis block write failed")
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, countKeyPrefix+key, blockKeyPrefix+key).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "redis reset failed")
	}
	return nil
}

// Sweep is a no-op: redis expires keys natively.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
