package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/streamlinks/internal/classify"
	"github.com/MrSnakeDoc/streamlinks/internal/config"
	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/streamlinks/internal/index"
	"github.com/MrSnakeDoc/streamlinks/internal/ingest"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	"github.com/MrSnakeDoc/streamlinks/internal/page"
	"github.com/MrSnakeDoc/streamlinks/internal/redis"
	"github.com/MrSnakeDoc/streamlinks/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/streamlinks/internal/store/redis"
	"github.com/MrSnakeDoc/streamlinks/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	writer      *ingest.Writer
	observer    *scheduler.Observer
	badge       *scheduler.BadgeUpdater
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
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
		os.Exit(1)
	}

	store := redisstore.NewStore(redisClient)

	// Seed the seen-set before the first pass so stored links are skipped
	seen := index.NewSeenSet()
	syncer := scheduler.NewSeenSyncer(store, seen, loggerClient)
	if err := syncer.Sync(context.Background()); err != nil {
		loggerClient.Warn("failed to seed seen-set from redis, starting empty",
			logger.Error(err))
	}

	rules, err := classify.LoadRules(cfg.RulesFile)
	if err != nil {
		loggerClient.Errorf("Failed to load classifier rules: %v", err)
		os.Exit(1)
	}
	policy, err := classify.New(cfg.Classifier, rules)
	if err != nil {
		loggerClient.Errorf("Invalid classifier: %v", err)
		os.Exit(1)
	}

	writer := ingest.NewWriter(store, loggerClient, cfg.WriterQueueSize)
	pipeline := ingest.NewPipeline(store, writer, policy, seen, loggerClient)

	badge := scheduler.NewBadgeUpdater(pipeline, loggerClient, cfg.BadgeInterval)
	pipeline.OnAccepted(func([]domain.Link) { badge.Trigger() })

	mode, err := scheduler.ParseMode(cfg.ScanMode)
	if err != nil {
		loggerClient.Errorf("Invalid scan mode: %v", err)
		os.Exit(1)
	}

	var source page.Source
	if cfg.PageFile != "" {
		source = page.NewFileSource(cfg.PageFile, loggerClient)
	} else {
		source = page.NewHTTPSource(cfg.PageURL, cfg.PageTimeout)
	}

	observer := scheduler.NewObserver(source, pipeline, loggerClient, scheduler.ObserverOptions{
		Mode:              mode,
		ContainerSelector: cfg.ContainerSelector,
		MessageSelector:   cfg.MessageSelector,
		PollInterval:      cfg.PollInterval,
		RescanPerSecond:   cfg.RescanPerSecond,
		SelectorMaxWait:   cfg.SelectorMaxWait,
	})

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:                loggerClient,
		StartTime:             time.Now(),
		Version:               version.Version,
		Commit:                version.Commit,
		BuildDate:             version.BuildDate,
		GoVersion:             version.GoVersion,
		TimeNow:               time.Now,
		AllowedHosts:          cfg.AllowedHosts,
		AllowedCIDRS:          cfg.AllowedCIDRS,
		AllowedOrigins:        cfg.AllowedOrigins,
		TrustProxy:            cfg.TrustProxy,
		RateLimitBurst:        cfg.RateLimitBurst,
		RateLimitRefillPerMin: cfg.RateLimitRefillPerMin,
		Links:                 pipeline,
		Extractor:             observer,
		Badge:                 badge,
		Store:                 store,
		ScanMode:              string(mode),
		PageSource:            source.Name(),
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		writer:      writer,
		observer:    observer,
		badge:       badge,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting streamlinks v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info("build info", logger.String("version", version.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The writer outlives ctx: in-flight requests may still write during shutdown
	a.writer.Start(context.Background())

	if err := a.badge.Start(ctx); err != nil {
		return fmt.Errorf("failed to start badge updater: %w", err)
	}
	a.logger.Info("badge updater started",
		logger.Duration("interval", a.cfg.BadgeInterval))

	if err := a.observer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start page observer: %w", err)
	}
	a.logger.Info("page observer started",
		logger.String("mode", string(a.observer.Mode())),
		logger.Duration("poll_interval", a.cfg.PollInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.observer.Stop()
	a.badge.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.writer.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	a.logger.Info("✅ streamlinks stopped cleanly")
	return nil
}
