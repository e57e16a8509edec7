package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/redis/go-redis/v9"
)

// KV is the subset of the redis client the cache needs. *redis.Client satisfies it.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache memoizes embeddings in Redis. Embeddings are deterministic per model,
// so entries are keyed by model name and a hash of the text.
type Cache struct {
	inner  Embedder
	kv     KV
	model  string
	ttl    time.Duration
	logger log.Logger
}

// NewCache wraps inner with a Redis-backed cache.
func NewCache(inner Embedder, kv KV, model string, ttl time.Duration, logger log.Logger) *Cache {
	if logger == nil {
		logger = log.Nop()
	}
	return &Cache{inner: inner, kv: kv, model: model, ttl: ttl, logger: logger}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Embed returns the cached vector for text, computing and storing it on a miss.
// Redis failures degrade to a miss.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(raw); ok {
			return vec, nil
		}
		c.logger.Warn(ctx, "discarding malformed cached embedding", "key", key, "bytes", len(raw))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Error(ctx, err, "embedding cache read failed", "key", key)
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.kv.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Error(ctx, err, "embedding cache write failed", "key", key)
	}
	return vec, nil
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}
