package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-engine/internal/config"
	"trivia-engine/internal/infra/memory"
	pgstore "trivia-engine/internal/infra/postgres"
	redisstore "trivia-engine/internal/infra/redis"
	"trivia-engine/internal/logging"
)

// NewImportCmd loads YAML quiz files into Postgres and drops stale cache entries.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <quiz.yaml>...",
		Short: "Validate quiz YAML files and store them in Postgres",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args)
		},
	}
}

func runImport(ctx context.Context, configPath string, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pool.Close()
	store := pgstore.NewQuizLoader(pool)

	var cache *redisstore.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache = redisstore.NewQuizRepository(client, store, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute), logger)
	}

	for _, file := range files {
		dir, base := filepath.Split(file)
		id := strings.TrimSuffix(base, filepath.Ext(base))
		quiz, err := memory.NewFileQuizLoader(dir).LoadQuiz(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := quiz.Validate(); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := store.SaveQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				logger.Warn("quiz cache not invalidated", zap.String("quiz_id", quiz.ID), zap.Error(err))
			}
		}
		logger.Info("quiz imported", zap.String("quiz_id", quiz.ID), zap.Int("questions", len(quiz.Questions)))
	}
	return nil
}
