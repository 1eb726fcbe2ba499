package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("idempotency key not found")

const redisKeyPrefix = "treasury:transfer"

// Record is what the ledger remembers about an applied transfer key.
type Record struct {
	Key        Key
	TransferID uuid.UUID
	AppliedAt  time.Time
}

// Store caches applied transfer keys in redis so duplicate deliveries can
// be answered without touching the database. The database stays the source
// of truth; a cache miss is never authoritative.
type Store struct {
	redis redis.Cmdable
	ttl   time.Duration
}

// NewStore creates a store. A nil client turns every call into a miss.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{redis: client, ttl: ttl}
}

type cacheEnvelope struct {
	TransferID string    `json:"transfer_id"`
	AppliedAt  time.Time `json:"applied_at"`
}

// Lookup returns the cached record for key or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, key Key) (*Record, error) {
	if s == nil || s.redis == nil {
		return nil, ErrNotFound
	}
	val, err := s.redis.Get(ctx, redisKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis transfer key lookup failed", zap.Error(err))
		}
		return nil, ErrNotFound
	}

	var env cacheEnvelope
	if err := json.Unmarshal([]byte(val), &env); err != nil {
		zap.L().Warn("discarding malformed transfer key cache entry", zap.String("key", key.String()), zap.Error(err))
		return nil, ErrNotFound
	}
	id, err := uuid.Parse(env.TransferID)
	if err != nil {
		return nil, ErrNotFound
	}
	return &Record{Key: key, TransferID: id, AppliedAt: env.AppliedAt}, nil
}

// Remember caches rec. Failures only cost a later database round trip.
func (s *Store) Remember(ctx context.Context, rec Record) {
	if s == nil || s.redis == nil {
		return
	}
	payload, err := json.Marshal(cacheEnvelope{TransferID: rec.TransferID.String(), AppliedAt: rec.AppliedAt})
	if err != nil {
		zap.L().Warn("marshal transfer key cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis transfer key cache set failed", zap.Error(err))
	}
}

func redisKey(key Key) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key.String())
}
