package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/config"
	"github.com/xxxsen/studynote/internal/db"
	"github.com/xxxsen/studynote/internal/embedcache"
	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/rag"
	"github.com/xxxsen/studynote/internal/repo"
	"github.com/xxxsen/studynote/internal/service"
)

type app struct {
	db         *sql.DB
	redis      *redis.Client
	cacheRepo  *repo.EmbeddingCacheRepo
	auth       *service.AuthService
	notes      *service.NoteService
	study      *service.StudyService
	imports    *service.ImportService
	embedModel string
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = a.db.Close()
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logutil.GetLogger(ctx)
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	userRepo := repo.NewUserRepo(conn)
	folderRepo := repo.NewFolderRepo(conn)
	noteRepo := repo.NewNoteRepo(conn)
	docRepo := repo.NewSourceDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	flashcardRepo := repo.NewFlashcardRepo(conn)
	cacheRepo := repo.NewEmbeddingCacheRepo(conn)

	var kv embedcache.KV
	var redisClient *redis.Client
	if cfg.Embedding.Redis.Addr != "" {
		redisClient, err = embedcache.OpenRedis(ctx, cfg.Embedding.Redis)
		if err != nil {
			logger.Warn("redis embedding cache disabled", zap.Error(err))
		} else {
			kv = embedcache.NewRedisKV(redisClient)
		}
	}
	closeAll := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = conn.Close()
	}
	embedder, err := buildEmbedder(cfg.Embedding, cacheRepo, kv)
	if err != nil {
		if !errors.Is(err, ai.ErrConfig) {
			closeAll()
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		logger.Warn("embedding disabled", zap.Error(err))
		embedder = ai.UnavailableEmbedder()
	}

	var llm ai.JSONGenerator
	client, err := ai.NewStructuredClient(cfg.LLM)
	switch {
	case err == nil:
		llm = client
		logger.Info("llm ready", zap.String("provider", client.ProviderName()), zap.String("model", cfg.LLM.Model))
	case errors.Is(err, ai.ErrConfig):
		logger.Warn("llm disabled", zap.Error(err))
	default:
		closeAll()
		return nil, fmt.Errorf("init llm: %w", err)
	}
	tutor := ai.NewManager(llm, ai.ManagerConfig{Timeout: cfg.LLM.Timeout, MaxInputChars: cfg.LLM.MaxInputChars})

	retrieverOpts := []rag.Option{rag.WithDefaults(cfg.RAG.MatchCount, cfg.RAG.MatchThreshold)}
	if cfg.RAG.SearchMode == config.SearchModePGVector {
		retrieverOpts = append(retrieverOpts, rag.WithVectorSearch(chunkRepo))
	}
	retriever := rag.NewRetriever(rag.NewScopeResolver(noteRepo, folderRepo), chunkRepo, noteRepo, docRepo, retrieverOpts...)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init file store: %w", err)
	}

	study := service.NewStudyService(noteRepo, chunkRepo, flashcardRepo, embedder, retriever, tutor, service.StudyConfig{
		TargetSize:        cfg.RAG.TargetSize,
		Overlap:           cfg.RAG.Overlap,
		FlashcardMaxTerms: cfg.RAG.FlashcardMaxTerms,
	})
	return &app{
		db:         conn,
		redis:      redisClient,
		cacheRepo:  cacheRepo,
		auth:       service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours)),
		notes:      service.NewNoteService(noteRepo, folderRepo),
		study:      study,
		imports:    service.NewImportService(store, docRepo, noteRepo, folderRepo, study),
		embedModel: embedder.ModelName(),
	}, nil
}

// buildEmbedder stacks, from the outside in: process LRU, redis, postgres,
// provider. A hit at any layer skips the layers below it.
func buildEmbedder(cfg config.EmbeddingConfig, cacheRepo *repo.EmbeddingCacheRepo, kv embedcache.KV) (ai.IEmbedder, error) {
	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DBCache {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	}
	if kv != nil {
		embedder = embedcache.WrapRedisCacheToEmbedder(embedder, kv, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	}
	if cfg.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.LRUSize, time.Duration(cfg.LRUTTLSeconds)*time.Second)
	}
	return embedder, nil
}
