// Package main is the entry point of the progression engine API.
//
// The API serves interview session rewards, progression views, the daily
// interview quota and the product roadmap with its live vote stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepwise/progression-engine/config"
	"github.com/prepwise/progression-engine/internal/application/command"
	"github.com/prepwise/progression-engine/internal/application/eventhandler"
	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/internal/infrastructure/messaging"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/redis"
	apihttp "github.com/prepwise/progression-engine/internal/interface/http"
	"github.com/prepwise/progression-engine/internal/interface/http/handlers"
	"github.com/prepwise/progression-engine/pkg/circuitbreaker"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting progression engine API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", string(cfg.Database.Storage)),
		logger.Strings("features", cfg.Features.Enabled()),
	)

	clock := timeutil.SystemClock{}
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, clock, log)
	if err != nil {
		return err
	}
	defer st.close()
	registerStoreChecks(health, st)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (optional read models and live feed)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		progressionCache query.ProgressionCache
		feedCache        query.FeedCache
		liveFeed         roadmap.LiveFeed
	)
	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, caches and live feed disabled", logger.Err(err))
		} else {
			defer cache.Close()
			cache.WithBreaker(circuitbreaker.ForCache("redis", redis.IsOutage, log))
			health.AddOptionalCheck("redis", handlers.PingCheck(cache))

			progressionCache = redis.NewProgressionCache(cache, cfg.Redis.ProgressionTTL)
			if cfg.Features.IsEnabled(config.FeatureFeedCache) {
				feedCache = redis.NewFeedCache(cache, cfg.Redis.FeedTTL)
			}
			if cfg.Features.IsEnabled(config.FeatureLiveFeed) {
				liveFeed = redis.NewLiveFeed(cache, log.Slog())
			}
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log.Slog()
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	roadmapEvents := eventhandler.DefaultRoadmapChangedConfig()
	roadmapEvents.LiveFeed = liveFeed != nil
	if err := eventhandler.NewOnProgressionHandler(progressionCache, log.Slog()).Register(bus); err != nil {
		return fmt.Errorf("failed to register progression handler: %w", err)
	}
	if err := eventhandler.NewOnRoadmapChangedHandler(liveFeed, feedCache, log.Slog(), roadmapEvents).Register(bus); err != nil {
		return fmt.Errorf("failed to register roadmap handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	services := newServices(cfg, st, readModels{
		progression: progressionCache,
		feed:        feedCache,
		live:        liveFeed,
	}, bus, clock, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := apihttp.NewServer(httpConfig(cfg), services, health, log)
	errCh := server.StartAsync()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("http shutdown failed", logger.Err(err))
	}
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type stores struct {
	profiles progression.ProfileRepository
	sessions progression.SessionRepository
	quota    quota.Repository
	ideas    roadmap.Repository

	pinger handlers.Pinger

	// unavailable holds the startup error when Postgres could not be reached
	// and the quota guard was allowed to fail open. Every repository is nil then.
	unavailable error

	close func()
}

func openStores(ctx context.Context, cfg *config.Config, clock timeutil.Clock, log *logger.Logger) (*stores, error) {
	if cfg.Database.Storage == config.StorageMemory {
		store := memory.NewStore()
		for _, id := range cfg.Database.SeedUsers {
			uid, err := shared.NewUserID(id)
			if err != nil {
				return nil, fmt.Errorf("invalid seed user %q: %w", id, err)
			}
			store.AddUser(uid)
		}
		log.Warn("using in-memory storage, data is lost on restart",
			logger.Int("seed_users", len(cfg.Database.SeedUsers)))
		return &stores{
			profiles: store.Profiles(),
			sessions: store.Sessions(),
			quota:    store.Quota(),
			ideas:    memory.NewRoadmap(),
			close:    func() {},
		}, nil
	}

	conn, err := connectPostgres(ctx, cfg.Database)
	if err != nil {
		if !cfg.Quota.FailOpen {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Error("database unavailable, starting degraded: quota guard fails open, sessions and roadmap are disabled",
			logger.Err(err))
		return &stores{unavailable: err, close: func() {}}, nil
	}
	log.Info("database connection established")

	return &stores{
		profiles: postgres.NewProfileRepository(conn, clock),
		sessions: postgres.NewSessionRepository(conn),
		quota:    postgres.NewQuotaRepository(conn),
		ideas:    postgres.NewRoadmapRepository(conn),
		pinger:   conn,
		close: func() {
			log.Info("closing database connection")
			conn.Close()
		},
	}, nil
}

func connectPostgres(ctx context.Context, db config.DatabaseConfig) (*postgres.Connection, error) {
	if db.URL == "" {
		return nil, shared.NewDomainError("postgres", "Connect", shared.ErrConfiguration, "DATABASE_URL is not set")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return postgres.NewConnection(connectCtx, postgresConfig(db))
}

// registerStoreChecks makes Postgres critical when connected. A store that was
// unreachable at startup only degrades readiness: the quota guard still answers.
func registerStoreChecks(health *handlers.CompositeHealthChecker, st *stores) {
	switch {
	case st.pinger != nil:
		health.AddCheck("postgres", handlers.PingCheck(st.pinger))
	case st.unavailable != nil:
		cause := st.unavailable
		health.AddOptionalCheck("postgres", func(context.Context) error {
			return fmt.Errorf("unavailable since startup: %w", cause)
		})
	}
}

type readModels struct {
	progression query.ProgressionCache
	feed        query.FeedCache
	live        roadmap.LiveFeed
}

// newServices builds the HTTP services over whatever stores opened. Services
// without a store stay nil and answer 501; the quota guard is always built so
// that a missing store goes through its fail-open policy.
func newServices(
	cfg *config.Config,
	st *stores,
	rm readModels,
	bus shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) apihttp.Services {
	var txRetry *retry.Retrier
	if cfg.Database.TxRetryAttempts > 1 {
		txRetry = retry.TransactionRetrier(shared.IsContention, retry.WithMaxAttempts(cfg.Database.TxRetryAttempts))
	}

	services := apihttp.Services{
		Quota: command.NewCheckQuotaHandler(st.quota, command.QuotaPolicy{FailOpen: cfg.Quota.FailOpen}, bus, clock, log).
			WithContentionRetry(txRetry),
		LiveFeed: rm.live,
	}
	if st.quota != nil {
		services.QuotaStatus = query.NewGetQuotaStatusHandler(st.quota, clock)
	}
	if st.profiles != nil && st.sessions != nil {
		services.Sessions = command.NewRecordSessionHandler(st.profiles, st.sessions, bus, clock, log).
			WithContentionRetry(txRetry)
		services.Progression = query.NewGetProgressionHandler(st.profiles, st.sessions, rm.progression, progression.DefaultRanks(), clock, log)
	}
	if st.ideas != nil {
		services.CreateIdea = command.NewCreateIdeaHandler(st.ideas, bus, clock)
		services.Vote = command.NewToggleVoteHandler(st.ideas, bus, clock, log).
			WithContentionRetry(txRetry).
			WithFeedCache(rm.feed)
		services.Feed = query.NewGetRoadmapFeedHandler(st.ideas, rm.feed, log)
	}
	return services
}

func postgresConfig(db config.DatabaseConfig) postgres.Config {
	pg := postgres.DefaultConfig()
	pg.URL = db.URL
	pg.MaxConns = int32(db.MaxConns)
	pg.MinConns = int32(db.MinConns)
	pg.MaxConnLifetime = db.ConnMaxLifetime
	pg.MaxConnIdleTime = db.ConnMaxIdleTime
	return pg
}

func redisConfig(r config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = r.URL
	rc.Host = r.Host
	rc.Port = r.Port
	rc.Password = r.Password
	rc.DB = r.DB
	rc.PoolSize = r.PoolSize
	rc.MinIdleConns = r.MinIdleConns
	rc.DialTimeout = r.DialTimeout
	rc.ReadTimeout = r.ReadTimeout
	rc.WriteTimeout = r.WriteTimeout
	rc.Namespace = r.Namespace
	return rc
}

func httpConfig(cfg *config.Config) apihttp.Config {
	hc := apihttp.DefaultConfig()
	hc.Host = cfg.HTTP.Host
	hc.Port = cfg.HTTP.Port
	hc.ReadTimeout = cfg.HTTP.ReadTimeout
	hc.IdleTimeout = cfg.HTTP.IdleTimeout
	hc.RequestTimeout = cfg.HTTP.RequestTimeout
	hc.EnableCORS = cfg.HTTP.EnableCORS
	hc.AllowedOrigins = cfg.HTTP.AllowedOrigins
	hc.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	hc.StreamHeartbeat = cfg.HTTP.StreamHeartbeat
	hc.JWTSecret = cfg.Auth.JWTSecret
	hc.JWTIssuer = cfg.Auth.JWTIssuer
	return hc
}

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
