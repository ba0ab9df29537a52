package redisstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// historyMax bounds the per-document operation history list in Redis.
const historyMax = 512

// RedisStateRepository is the Redis implementation of
// repository.StateRepository.
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "sde:"
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStateRepository) docOpsKey(documentID uint) string {
	return fmt.Sprintf("%sdoc:%d:ops", r.keyPrefix, documentID)
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

// PushOperationToHistory appends the operation and trims the list so only the
// most recent historyMax entries survive.
func (r *RedisStateRepository) PushOperationToHistory(ctx context.Context, documentID uint, op domain.Operation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal operation %d/%d: %w", documentID, op.Seq, err)
	}
	key := r.docOpsKey(documentID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -historyMax, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to push operation to history for document %d: %w", documentID, err)
	}
	return nil
}

// GetRecentOperations returns up to limit most recent operations, oldest first.
func (r *RedisStateRepository) GetRecentOperations(ctx context.Context, documentID uint, limit int) ([]domain.Operation, error) {
	if limit <= 0 || limit > historyMax {
		limit = historyMax
	}
	key := r.docOpsKey(documentID)
	raws, err := r.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to read operation history for document %d: %w", documentID, err)
	}
	ops := make([]domain.Operation, 0, len(raws))
	for _, raw := range raws {
		var op domain.Operation
		if err := json.Unmarshal([]byte(raw), &op); err != nil {
			// A corrupt entry must not poison the whole history.
			logrus.WithError(err).Warnf("redis: skipping corrupt operation history entry for document %d", documentID)
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (r *RedisStateRepository) CleanupDocumentState(ctx context.Context, documentID uint) error {
	if err := r.client.Del(ctx, r.docOpsKey(documentID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to cleanup state for document %d: %w", documentID, err)
	}
	return nil
}

// CheckRateLimit increments the counter for key and reports whether the
// caller is still within limit for the window. The first hit sets the expiry.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := r.rateLimitKey(key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to increment rate limit counter %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis: failed to set rate limit expiry on %s: %w", redisKey, err)
		}
	}
	return count <= int64(limit), nil
}
