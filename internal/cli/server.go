package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"ambient-quiz-service/internal/app"
	"ambient-quiz-service/internal/chat"
	"ambient-quiz-service/internal/config"
	"ambient-quiz-service/internal/content"
	"ambient-quiz-service/internal/infra/memory"
	pgloader "ambient-quiz-service/internal/infra/postgres"
	redisstore "ambient-quiz-service/internal/infra/redis"
	"ambient-quiz-service/internal/logging"
	"ambient-quiz-service/internal/telemetry"
	"ambient-quiz-service/internal/ticket"
	transport "ambient-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
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

// loadConfig reads the configuration and sets up logging from it.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.WithContext(ctx)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
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

	metrics := telemetry.NewMetrics()
	checks := map[string]transport.Checker{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := telemetry.MonitorRedis(redisClient); err != nil {
			return fmt.Errorf("instrument redis: %w", err)
		}
		checks["redis"] = transport.CheckFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(content.AmbientQuiz())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		pg := pgloader.NewQuizLoader(pool)
		loader = pg
		checks["postgres"] = transport.CheckFunc(pg.Ping)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var store app.SessionRepository
	var avatarCache ticket.AvatarCache
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
		store = redisstore.NewSessionStore(redisClient, redisTTL)
		avatarCache = redisstore.NewAvatarCache(redisClient)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore()
		avatarCache = memory.NewAvatarCache()
	}

	renderer, err := ticket.NewRenderer(cfg.Ticket.Scale)
	if err != nil {
		return err
	}
	avatars := ticket.NewCachedAvatarSource(
		ticket.NewHTTPAvatarFetcher(cfg.Avatar.BaseURL, config.TTLDuration(cfg.Avatar.Timeout, ticket.DefaultAvatarTimeout), nil),
		avatarCache,
		config.TTLDuration(cfg.Avatar.CacheTTL, ticket.DefaultAvatarTTL),
	)
	tickets := ticket.NewGenerator(avatars, renderer)
	tickets.OnRender(metrics.TicketRendered)

	service := app.NewQuizService(store, quizRepo,
		app.WithQuizID(cfg.Quiz.ID),
		app.WithAdvanceDelay(config.TTLDuration(cfg.Quiz.AdvanceDelay, app.DefaultAdvanceDelay)),
		app.WithTickets(tickets),
		app.WithObserver(metrics),
	)
	if err := service.Preload(ctx); err != nil {
		return fmt.Errorf("preload quiz %q: %w", cfg.Quiz.ID, err)
	}

	client := chat.NewClient(chat.ClientConfig{
		BaseURL: cfg.Ambient.BaseURL,
		APIKey:  cfg.Ambient.APIKey,
		Timeout: config.TTLDuration(cfg.Ambient.Timeout, chat.DefaultTimeout),
	})
	relay := chat.NewRelay(client, chat.Options{Model: cfg.Ambient.Model, Mode: chat.Mode(cfg.Ambient.Mode)})
	relay.OnOutcome(metrics.ChatOutcome)
	if cfg.Ambient.APIKey == "" {
		log.Warn("ambient api key not configured, chat requests will be rejected upstream")
	}

	router := transport.NewRouter(transport.Deps{
		Quiz:    service,
		Chat:    transport.NewChatHandler(relay, client, metrics.ObserveChatLatency),
		Avatars: avatars,
		Checks:  checks,
		Metrics: metrics.Handler(),
		Observe: metrics,
	})
	server := transport.NewServer(transport.ServerConfig{
		Addr:            ":" + finalPort,
		ReadTimeout:     config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:    config.TTLDuration(cfg.Server.WriteTimeout, 45*time.Second),
		ShutdownTimeout: config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second),
	}, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		return server.Shutdown(context.Background())
	})
	g.Go(func() error {
		sweepIdle(gctx, service,
			config.TTLDuration(cfg.Quiz.SweepInterval, time.Minute),
			config.TTLDuration(cfg.Quiz.IdleTimeout, 30*time.Minute))
		return nil
	})
	return g.Wait()
}

// sweepIdle closes abandoned sessions until ctx is done.
func sweepIdle(ctx context.Context, service *app.QuizService, every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.SweepIdle(ctx, maxIdle)
		}
	}
}
