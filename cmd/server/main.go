package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/equilibrio-app/equilibrio-engine/config"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/command"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/eventhandler"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/progression"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/query"
	"github.com/equilibrio-app/equilibrio-engine/internal/application/saga"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/personalization"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
	"github.com/equilibrio-app/equilibrio-engine/internal/infrastructure/external/profile"
	"github.com/equilibrio-app/equilibrio-engine/internal/infrastructure/messaging"
	"github.com/equilibrio-app/equilibrio-engine/internal/infrastructure/persistence/postgres"
	"github.com/equilibrio-app/equilibrio-engine/internal/infrastructure/persistence/redis"
	httpiface "github.com/equilibrio-app/equilibrio-engine/internal/interface/http"
	"github.com/equilibrio-app/equilibrio-engine/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := logger.DefaultOptions()
	if cfg.App.Debug {
		logOpts.Level = logger.LevelDebug
	}
	log := logger.New(logOpts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
	log.Info("starting", logger.String("version", cfg.App.Version))

	// ── Storage ──────────────────────────────────────────────────────────────

	var conn *postgres.Connection
	if cfg.Database.URL != "" {
		conn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	} else {
		conn, err = postgres.NewConnection(ctx, postgres.DefaultConfig())
	}
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.Migrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	progressRepo := postgres.NewProgressRepository(conn)
	contentRepo := postgres.NewContentRepository(conn)

	// ── Cache ────────────────────────────────────────────────────────────────

	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			// Content resolution works without the cache, just slower.
			log.Warn("redis unavailable, caching disabled", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	content := redis.NewCachedContentRepository(contentRepo, cache, log).
		WithTTLs(cfg.Engine.TemplateCacheTTL, cfg.Engine.RulesCacheTTL)

	// ── Domain ───────────────────────────────────────────────────────────────

	catalog, err := track.NewCatalog(track.DefaultDefinitions())
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	resolver := personalization.NewResolver(catalog, content, content, log)

	// ── Events ───────────────────────────────────────────────────────────────

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.WorkerPoolSize = cfg.Engine.EventWorkers
	busCfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer bus.Close()

	if err := bus.SubscribeAll(eventhandler.NewAuditHandler(busCfg.Logger)); err != nil {
		return fmt.Errorf("subscribe audit handler: %w", err)
	}

	// ── Application ──────────────────────────────────────────────────────────

	achievements := saga.NewAchievementFlowSaga(catalog, progressRepo, bus, log)

	facade := progression.NewFacade(
		command.NewCompleteActivityHandler(catalog, progressRepo, resolver, bus),
		command.NewCompleteDayHandler(catalog, progressRepo, resolver, achievements, bus, log),
		command.NewUncompleteActivityHandler(catalog, progressRepo, bus),
		query.NewGetDayContentHandler(resolver),
		query.NewGetTrackStateHandler(catalog, progressRepo, resolver),
		attributeProvider(cfg, log),
		log,
	)

	// ── HTTP ─────────────────────────────────────────────────────────────────

	checkers := map[string]httpiface.HealthChecker{"postgres": conn}
	if cache != nil {
		checkers["redis"] = cache
	}

	server := httpiface.NewServer(httpiface.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		ShutdownTimeout:    cfg.HTTP.ShutdownTimeout,
		ServiceTokenHashes: cfg.HTTP.ServiceTokenHashes,
	}, httpiface.Dependencies{
		Facade:         facade,
		HealthCheckers: checkers,
		Logger:         log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	log.Info("stopped")
	return nil
}

// attributeProvider wires the profile client when configured. Without it,
// personalization sees an empty snapshot for every user.
func attributeProvider(cfg *config.Config, log *logger.Logger) progression.AttributeProvider {
	if !cfg.Profile.Enabled() {
		log.Info("profile service not configured, personalization uses base content only")
		return nil
	}
	clientCfg := profile.DefaultClientConfig(cfg.Profile.BaseURL)
	clientCfg.APIKey = cfg.Profile.APIKey
	clientCfg.Timeout = cfg.Profile.Timeout
	clientCfg.Logger = log
	return profile.NewClient(clientCfg)
}
