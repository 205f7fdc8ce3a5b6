package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studynote",
		Short: "bilingual study notes with retrieval-augmented answers",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	var userID, noteID string
	var limit int
	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "rebuild chunks for one note, or for stale notes when --note is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if noteID != "" && userID == "" {
				return fmt.Errorf("--user is required with --note")
			}
			if limit <= 0 {
				limit = cfg.Schedule.ReindexBatch
			}
			return runReindex(cmd.Context(), cfg, userID, noteID, limit)
		},
	}
	reindexCmd.Flags().StringVar(&userID, "user", "", "owner of the note")
	reindexCmd.Flags().StringVar(&noteID, "note", "", "note id")
	reindexCmd.Flags().IntVar(&limit, "limit", 0, "max stale notes to process")

	rootCmd.AddCommand(runCmd, reindexCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runReindex(ctx context.Context, cfg *config.Config, userID, noteID string, limit int) error {
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	logger := logutil.GetLogger(ctx)
	if noteID != "" {
		count, err := app.study.Reindex(ctx, userID, noteID)
		if err != nil {
			return err
		}
		logger.Info("note reindexed", zap.String("note_id", noteID), zap.Int("chunks", count))
		return nil
	}
	done, failed, err := app.study.ReindexStale(ctx, limit)
	if err != nil {
		return err
	}
	logger.Info("stale reindex finished", zap.Int("reindexed", done), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d notes failed to reindex", failed)
	}
	return nil
}
