package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/config"
)

// KV is the slice of a key-value store the shared cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// OpenRedis connects and pings so a bad address fails at startup.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type redisKV struct {
	client redis.Cmdable
}

func NewRedisKV(client redis.Cmdable) KV {
	return &redisKV{client: client}
}

func (r *redisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return raw, true, nil
}

func (r *redisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// WrapRedisCacheToEmbedder shares vectors between processes. Redis errors
// degrade to a miss; only the wrapped embedder can fail the call.
func WrapRedisCacheToEmbedder(e ai.IEmbedder, kv KV, ttl time.Duration) ai.IEmbedder {
	if e == nil || kv == nil {
		return e
	}
	return &redisEmbedder{next: e, kv: kv, ttl: ttl}
}

type redisEmbedder struct {
	next ai.IEmbedder
	kv   KV
	ttl  time.Duration
}

func (r *redisEmbedder) Embed(ctx context.Context, texts []string, opts ...ai.EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := logutil.GetLogger(ctx)
	o := ai.ApplyEmbedOptions(opts)
	keys := make([]cacheKey, len(texts))
	out := make([][]float32, len(texts))
	hits := 0
	for i, text := range texts {
		keys[i] = buildCacheKey(r.next.ModelName(), o, text)
		raw, ok, err := r.kv.Get(ctx, keys[i].full)
		if err != nil {
			log.Warn("embedding cache read failed (redis)", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		var values []float32
		if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
			continue
		}
		out[i] = values
		hits++
	}
	if hits > 0 {
		log.Debug("embedding cache hit (redis)",
			zap.String("task_type", o.TaskType),
			zap.Int("hits", hits),
			zap.Int("total", len(texts)),
		)
	}
	filled, err := embedMisses(ctx, r.next, texts, out, opts)
	if err != nil {
		return nil, err
	}
	for _, i := range filled {
		raw, err := json.Marshal(out[i])
		if err != nil {
			continue
		}
		if err := r.kv.Set(ctx, keys[i].full, raw, r.ttl); err != nil {
			log.Warn("failed to cache embedding (redis)", zap.Error(err))
		}
	}
	return out, nil
}

func (r *redisEmbedder) ModelName() string {
	return r.next.ModelName()
}
