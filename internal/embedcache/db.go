package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
)

// Store persists vectors across restarts, usually the embedding_cache table.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, texts []string, opts ...ai.EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	o := ai.ApplyEmbedOptions(opts)
	keys := make([]cacheKey, len(texts))
	out := make([][]float32, len(texts))
	hits := 0
	for i, text := range texts {
		keys[i] = buildCacheKey(d.next.ModelName(), o, text)
		values, ok, err := d.store.Get(ctx, keys[i].modelName, keys[i].taskType, keys[i].contentHash)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = values
			hits++
		}
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)",
			zap.String("task_type", o.TaskType),
			zap.Int("hits", hits),
			zap.Int("total", len(texts)),
		)
	}
	filled, err := embedMisses(ctx, d.next, texts, out, opts)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for _, i := range filled {
		if err := d.store.Save(ctx, &model.EmbeddingCache{
			ModelName:   keys[i].modelName,
			TaskType:    keys[i].taskType,
			ContentHash: keys[i].contentHash,
			Embedding:   out[i],
			Ctime:       now,
		}); err != nil {
			logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
		}
	}
	return out, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
