// Package main is the entry point of the background worker.
//
// The worker runs periodic jobs:
//   - replay of session rewards that were saved but never applied
//   - audit of stored vote counts against the vote rows
//
// Several workers may run side by side; each scheduled run takes a Redis lease
// so a job executes on one of them at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prepwise/progression-engine/config"
	"github.com/prepwise/progression-engine/internal/application/command"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/internal/infrastructure/messaging"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/redis"
	"github.com/prepwise/progression-engine/internal/infrastructure/scheduler"
	"github.com/prepwise/progression-engine/internal/infrastructure/scheduler/jobs"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
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
	if cfg.Database.Storage != config.StoragePostgres {
		return fmt.Errorf("worker requires STORAGE=postgres, got %q", cfg.Database.Storage)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("worker requires DATABASE_URL")
	}
	if !cfg.Scheduler.Enabled {
		fmt.Fprintln(os.Stderr, "scheduler disabled (SCHEDULER_ENABLED=false), nothing to do")
		return nil
	}

	log := setupLogger(cfg)
	log.Info("starting progression engine worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Strings("features", cfg.Features.Enabled()),
	)
	clock := timeutil.SystemClock{}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, err := postgres.NewConnection(connectCtx, postgresConfig(cfg.Database))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		conn.Close()
	}()

	profiles := postgres.NewProfileRepository(conn, clock)
	sessions := postgres.NewSessionRepository(conn)
	ideas := postgres.NewRoadmapRepository(conn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS LEASES
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log.Slog()
	schedConfig.TickInterval = cfg.Scheduler.TickInterval
	schedConfig.LockTTL = cfg.Scheduler.LockTTL

	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer cache.Close()
		schedConfig.Locker = redis.NewLocker(cache)
	} else {
		log.Warn("redis disabled, jobs run without leases; run a single worker")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	// Rewards replayed here still publish their events; nothing in the worker
	// listens, so they are only logged.
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log.Slog()
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() { _ = bus.Close() }()

	rewarder := command.NewRecordSessionHandler(profiles, sessions, bus, clock, log)
	if cfg.Database.TxRetryAttempts > 1 {
		rewarder.WithContentionRetry(retry.TransactionRetrier(shared.IsContention, retry.WithMaxAttempts(cfg.Database.TxRetryAttempts)))
	}

	replayConfig := jobs.DefaultReplayRewardsConfig()
	replayConfig.GracePeriod = cfg.Scheduler.ReplayGracePeriod
	replayConfig.BatchSize = cfg.Scheduler.ReplayBatchSize
	replayConfig.Timeout = cfg.Scheduler.JobTimeout
	replay := jobs.NewReplayRewardsJob(sessions, rewarder, cfg.Features, clock, log, replayConfig)

	audit := jobs.NewAuditVoteCountsJob(ideas, cfg.Features, log)
	auditSchedule, err := scheduler.ParseCron(cfg.Scheduler.AuditCron)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULER_AUDIT_CRON: %w", err)
	}

	sched := scheduler.NewScheduler(schedConfig)
	if err := sched.Register(replay, scheduler.Every(cfg.Scheduler.ReplayInterval)); err != nil {
		return fmt.Errorf("failed to register %s: %w", replay.Name(), err)
	}
	if err := sched.Register(audit, auditSchedule); err != nil {
		return fmt.Errorf("failed to register %s: %w", audit.Name(), err)
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if r.Error != nil {
			log.Error("job failed",
				logger.String("job", r.JobName),
				logger.Duration("duration", r.Duration),
				logger.Err(r.Error),
			)
		}
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. RUN UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, info := range sched.ListJobs() {
		log.Info("job scheduled", logger.String("job", info.Name), logger.Time("next_run", info.NextRun))
	}

	<-ctx.Done()
	log.Info("received shutdown signal, stopping scheduler",
		logger.Duration("timeout", cfg.App.ShutdownTimeout))

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			log.Error("scheduler stop failed", logger.Err(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time")
	}

	m := sched.GetMetrics().Snapshot()
	log.Info("shutdown completed",
		logger.Int64("executions", m.TotalExecutions),
		logger.Int64("failures", m.TotalFailures),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

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

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name+"-worker"),
		logger.String("env", string(cfg.App.Environment)),
	)
}
