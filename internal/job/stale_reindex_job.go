package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type StaleReindexer interface {
	ReindexStale(ctx context.Context, limit int) (int, int, error)
}

// StaleReindexJob rebuilds chunks for notes edited since their last index.
type StaleReindexJob struct {
	study StaleReindexer
	batch int
}

func NewStaleReindexJob(study StaleReindexer, batch int) *StaleReindexJob {
	return &StaleReindexJob{study: study, batch: batch}
}

func (j *StaleReindexJob) Name() string {
	return "stale_reindex"
}

func (j *StaleReindexJob) Run(ctx context.Context) error {
	if j.study == nil {
		return nil
	}
	batch := j.batch
	if batch <= 0 {
		batch = 20
	}
	done, failed, err := j.study.ReindexStale(ctx, batch)
	if done > 0 || failed > 0 {
		logutil.GetLogger(ctx).Info("stale notes processed", zap.Int("reindexed", done), zap.Int("failed", failed))
	}
	return err
}
