package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-engine/internal/app"
	"trivia-engine/internal/config"
	"trivia-engine/internal/domain"
	"trivia-engine/internal/infra/memory"
	pgstore "trivia-engine/internal/infra/postgres"
	redisstore "trivia-engine/internal/infra/redis"
	"trivia-engine/internal/infra/telegram"
	"trivia-engine/internal/logging"
	transport "trivia-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type scoreStore interface {
	app.ScoreStore
	app.ScoreBoard
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Must(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader
	switch {
	case pool != nil:
		loader = pgstore.NewQuizLoader(pool)
	case cfg.Quiz.Dir != "":
		loader = memory.NewFileQuizLoader(cfg.Quiz.Dir)
	default:
		logger.Warn("no quiz source configured, serving the built-in sample quiz")
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizRepository
	if redisClient != nil {
		quizzes = redisstore.NewQuizRepository(redisClient, loader, quizTTL, logger)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	var scores scoreStore
	switch {
	case pool != nil:
		scores = pgstore.NewScoreStore(pool)
	case redisClient != nil:
		scores = redisstore.NewScoreStore(redisClient)
	default:
		logger.Warn("scores are kept in memory and lost on restart")
		scores = memory.NewScoreStore()
	}

	var (
		registry      app.SessionRegistry = memory.NewSessionStore()
		redisSessions *redisstore.SessionStore
		publisher     app.LeaderboardPublisher
		live          transport.LiveBoard
	)
	if redisClient != nil {
		redisSessions = redisstore.NewSessionStore(redisClient, redisTTL, logger)
		registry = redisSessions
		cache := redisstore.NewLeaderboardCache(redisClient, redisTTL)
		publisher = cache
		live = cache
	}

	opts := cfg.Options()
	hub := transport.NewHub(logger)
	presenters := []app.Presenter{hub}
	var (
		bot     *tgbotapi.BotAPI
		handles *telegram.Handles
	)
	if cfg.Telegram.Token != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		bot.Debug = cfg.Telegram.Debug
		logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
		handles = telegram.NewHandles()
		presenters = append(presenters, telegram.NewPresenter(bot, handles, logger))
	}

	// The engine outlives the signal context so Close can still flush scores.
	engine := app.NewEngine(context.Background(), opts, app.EngineDeps{
		Quizzes:   quizzes,
		Store:     scores,
		Presenter: app.NewFanOut(opts.Retry, logger, presenters...),
		Registry:  registry,
		Publisher: publisher,
		Logger:    logger,
	})
	go engine.Run(ctx)

	if redisSessions != nil {
		go refreshSessions(ctx, redisSessions, redisTTL/2, logger)
	}

	if bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := bot.GetUpdatesChan(u)
		defer bot.StopReceivingUpdates()
		dispatcher := telegram.NewDispatcher(engine, bot, handles, cfg.Telegram.Workers, logger)
		go dispatcher.Run(ctx, updates)
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterDeps{
			Engine: engine,
			Hub:    hub,
			Scores: scores,
			Live:   live,
			Logger: logger,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		engine.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	engine.Close(shutdownCtx)
	return err
}

// refreshSessions keeps the liveness keys of running sessions from expiring.
func refreshSessions(ctx context.Context, store *redisstore.SessionStore, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Refresh(ctx); err != nil {
				logger.Warn("session liveness refresh failed", zap.Error(err))
			}
		}
	}
}

// sampleQuizzes is served when neither Postgres nor a quiz directory is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"sample": {
			ID:   "sample",
			Name: "Warm-up",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{Key: "A", Label: "3"},
						{Key: "B", Label: "4"},
						{Key: "C", Label: "5"},
					},
					CorrectKey: "B",
					MaxScore:   10,
				},
				{
					ID:   "q2",
					Text: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{Key: "A", Label: "Mercury"},
						{Key: "B", Label: "Venus"},
						{Key: "C", Label: "Mars"},
					},
					CorrectKey:  "A",
					MaxScore:    10,
					Explanation: "Mercury orbits at about 0.39 AU.",
				},
			},
		},
	}
}
