package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/handler"
	"github.com/xxxsen/studynote/internal/job"
	"github.com/xxxsen/studynote/internal/middleware"
	"github.com/xxxsen/studynote/internal/schedule"
)

const maxUploadSize = 20 << 20

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := logutil.GetLogger(ctx)
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("search_mode", cfg.RAG.SearchMode),
		zap.String("embedding_model", app.embedModel),
	)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(app.auth),
		Notes:     handler.NewNoteHandler(app.notes),
		Study:     handler.NewStudyHandler(app.study),
		Import:    handler.NewImportHandler(app.imports, maxUploadSize),
		JWTSecret: []byte(cfg.JWTSecret),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewStaleReindexJob(app.study, cfg.Schedule.ReindexBatch), cfg.Schedule.ReindexSpec); err != nil {
		return fmt.Errorf("schedule reindex: %w", err)
	}
	if cfg.Embedding.DBCache {
		cleanup := job.NewEmbeddingCacheCleanupJob(app.cacheRepo, cfg.Embedding.CacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Schedule.CacheCleanupSpec); err != nil {
			return fmt.Errorf("schedule cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	return nil
}
