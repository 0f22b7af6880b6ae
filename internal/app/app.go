package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/config"
	"github.com/MrSnakeDoc/smartmarks/internal/connect"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/identity"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/postgres"
	"github.com/MrSnakeDoc/smartmarks/internal/pubsub"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
	"github.com/MrSnakeDoc/smartmarks/internal/redis"
	"github.com/MrSnakeDoc/smartmarks/internal/scheduler"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
	pgstore "github.com/MrSnakeDoc/smartmarks/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/smartmarks/internal/store/redis"
	"github.com/MrSnakeDoc/smartmarks/internal/utils"
	"github.com/MrSnakeDoc/smartmarks/internal/version"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	hub     *identity.Hub
	views   *view.Registry
	sweeper *scheduler.SessionSweeper
	closers *utils.Closers
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	// Initialize Postgres early - fail fast if unavailable
	db, err := postgres.Open(ctx, postgres.ConnectOptions{
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		Retry: connect.Policy{
			Timeout:       cfg.DBConnectTimeout,
			RetryInterval: cfg.RedisRetryInterval,
			MaxWait:       cfg.RedisMaxWait,
			PingTimeout:   cfg.RedisPingTimeout,
			WarnThreshold: cfg.RedisWarnThreshold,
		},
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Postgres: %v", err)
		os.Exit(1)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		loggerClient.Errorf("Failed to migrate database: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	loggerClient.Info("Postgres initialized successfully")

	// Initialize Redis - sessions, OAuth state and pub/sub
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	closers := utils.NewClosers(loggerClient)
	closers.Add("postgres", db.Close)
	closers.Add("redis", redisClient.Close)

	// Collaborators: identity hub + realtime broker share the Redis bus
	bus := pubsub.NewRedisBus(redisClient)
	hub := identity.NewHub(bus, loggerClient)
	broker := realtime.NewBroker(bus, loggerClient)

	sessionStore := redisstore.NewStore(redisClient)
	authService := auth.NewService(
		sessionStore,
		pgstore.NewUserRepository(db),
		hub,
		auth.Options{
			Secret:     []byte(cfg.SessionSecret),
			SessionTTL: cfg.SessionTTL,
			StateTTL:   cfg.OAuthStateTTL,
		},
		loggerClient,
		auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}),
	)

	table := bookmarks.NewTable(pgstore.NewBookmarkRepository(db), broker, loggerClient)

	mode, err := view.ParseRefreshMode(cfg.RefreshMode)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}
	renderer := view.MustRenderer()
	views := view.NewRegistry()

	// Create manual sweep trigger channel
	sweepTrigger := make(chan struct{}, 1)
	sweeper := scheduler.NewSessionSweeper(
		sessionStore,
		authService,
		loggerClient,
		cfg.SweepInterval,
		sweepTrigger,
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CallbackURL:     cfg.CallbackURL(),
		CookieName:      cfg.CookieName,
		CookieSecure:    cfg.CookieSecure,
		Auth:            authService,
		Views:           views,
		ViewDeps: view.Deps{
			Auth:     authService,
			Data:     table,
			Realtime: broker,
			Log:      loggerClient,
		},
		ViewOptions: view.Options{
			Mode:       mode,
			NoticeSize: cfg.NoticeQueue,
		},
		Renderer: renderer,
		Importer: homepage.NewLoader(cfg.ImportMaxBytes),
		Mapper:   homepage.NewMapper(),
		Checks: []deps.Check{
			{Name: "postgres", Ping: db.PingContext},
			{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		Stats: deps.Stats{
			ActiveChannels: broker.ActiveChannels,
			AuthListeners:  hub.Listeners,
			Sessions:       sessionStore.CountSessions,
		},
		SweepTrigger: sweepTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)
	// live views hold their event streams open; end them first
	server.RegisterOnShutdown(views.CloseAll)

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  server,
		hub:     hub,
		views:   views,
		sweeper: sweeper,
		closers: closers,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting smartmarks v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start identity hub (auth events reach every view of every instance)
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start identity hub: %w", err)
	}

	// Start session sweeper
	if err := a.sweeper.Start(ctx); err != nil {
		a.hub.Stop()
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	a.logger.Info("session sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval),
		logger.String("refresh_mode", a.cfg.RefreshMode))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	// Reverse start order: server (and its views), sweeper, hub, stores
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}
	a.views.CloseAll()

	a.sweeper.Stop()
	a.hub.Stop()

	if failed := a.closers.CloseAll(); failed == 0 {
		a.logger.Info("✅ Postgres and Redis closed cleanly")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ smartmarks stopped cleanly")
	return nil
}
