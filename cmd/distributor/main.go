// Package main runs the course reward distributor as a line-oriented host:
// JSON call envelopes are read from stdin and one JSON response per envelope
// is written to stdout. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/course-rewards/config"
	"github.com/alem-hub/course-rewards/internal/application/distributor"
	"github.com/alem-hub/course-rewards/internal/domain/certificate"
	"github.com/alem-hub/course-rewards/internal/domain/shared"
	"github.com/alem-hub/course-rewards/internal/infrastructure/messaging"
	"github.com/alem-hub/course-rewards/internal/infrastructure/metrics"
	"github.com/alem-hub/course-rewards/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/course-rewards/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/course-rewards/internal/infrastructure/quiz"
	"github.com/alem-hub/course-rewards/internal/infrastructure/scheduler"
	"github.com/alem-hub/course-rewards/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/course-rewards/internal/infrastructure/service"
	"github.com/alem-hub/course-rewards/internal/interface/dispatch"
	httpserver "github.com/alem-hub/course-rewards/internal/interface/http"
	"github.com/alem-hub/course-rewards/internal/interface/http/handlers"
	"github.com/alem-hub/course-rewards/pkg/circuitbreaker"
	"github.com/alem-hub/course-rewards/pkg/logger"
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
	log.Info("starting course reward distributor",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"backend", cfg.Rewards.Backend,
	)

	domainLog := logger.New(logger.Options{
		Output: os.Stderr,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.String("app", cfg.App.Name))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. COLLABORATORS
	// ─────────────────────────────────────────────────────────────────────────
	back, err := buildBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer back.close()

	for course, key := range cfg.Rewards.AnswerKeys {
		if err := back.keys.SetAnswerKey(ctx, shared.CourseID(course), key); err != nil {
			return fmt.Errorf("failed to seed answer key for course %d: %w", course, err)
		}
	}
	log.Info("answer keys seeded", "courses", len(cfg.Rewards.AnswerKeys))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.HandlerAttempts = cfg.Rewards.EventHandlerAttempts
	busCfg.Logger = log
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		if err := bus.Close(); err != nil {
			log.Error("failed to close event bus", "error", err)
		}
	}()

	if back.audit != nil {
		if err := bus.SubscribeAll(back.audit.Handler(cfg.Database.QueryTimeout)); err != nil {
			return fmt.Errorf("failed to subscribe audit log: %w", err)
		}
	}
	if back.cache != nil {
		relay := redis.NewEventRelay(back.cache, cfg.Redis.WriteTimeout, log)
		if err := bus.SubscribeAll(relay.Handler()); err != nil {
			return fmt.Errorf("failed to subscribe event relay: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	var observer distributor.Observer = distributor.NopObserver{}
	var metricsHandler http.Handler

	if cfg.Observability.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prom, err := metrics.NewPrometheus(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		observer = prom
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. DISTRIBUTOR
	// ─────────────────────────────────────────────────────────────────────────
	clock := distributor.NewHeightClock(0)
	dist, err := distributor.New(distributor.Config{
		Admin:      shared.Identity(cfg.Rewards.Admin),
		Multiplier: cfg.Rewards.Multiplier,
	}, distributor.Dependencies{
		Scorer:       back.scorer,
		Minter:       back.minter,
		Progress:     back.progress,
		Certificates: certificate.New(certificate.Strategy(cfg.Rewards.CertificateStrategy), cfg.Rewards.CertificateSalt),
		Clock:        clock,
		Events:       bus,
		Observer:     observer,
		Logger:       domainLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create distributor: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. OPS SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var opsServer *httpserver.Server

	if cfg.Observability.MetricsEnabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		if back.conn != nil {
			health.AddCheck("postgres", handlers.NewPingCheck(back.conn))
		}
		if back.cache != nil {
			health.AddCheck("redis", handlers.NewPingCheck(back.cache))
		}

		opsCfg := httpserver.DefaultConfig()
		opsCfg.Host = ""
		opsCfg.Port = cfg.Observability.MetricsPort

		opsServer = httpserver.NewServer(opsCfg, httpserver.Dependencies{
			Rewards:       dist,
			Metrics:       metricsHandler,
			HealthChecker: health,
			Version:       cfg.App.Version,
			Logger:        domainLog,
		})
		go func() {
			if err := <-opsServer.StartAsync(); err != nil {
				log.Error("ops server failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. MAINTENANCE JOBS
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler

	if cfg.Rewards.ReconcileInterval > 0 {
		schedCfg := scheduler.DefaultConfig()
		schedCfg.Logger = log
		schedCfg.JobTimeout = cfg.Database.QueryTimeout
		sched = scheduler.New(schedCfg)

		job := jobs.NewReconcileTotalJob(dist, back.supply, log)
		if err := sched.Register(job, cfg.Rewards.ReconcileInterval); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SERVE
	// ─────────────────────────────────────────────────────────────────────────
	host := dispatch.NewDispatcher(dist, clock, domainLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- host.Serve(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("dispatcher stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
		}
	}
	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop ops server", "error", err)
		}
	}

	log.Info("distributor stopped",
		"total_rewards_minted", dist.TotalRewardsMinted().Dec(),
		"completions", len(dist.Completions()),
		"events_published", bus.Published(),
		"handler_failures", bus.HandlerFailures(),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKEND
// ══════════════════════════════════════════════════════════════════════════════

type answerKeys interface {
	quiz.KeySource
	SetAnswerKey(ctx context.Context, course shared.CourseID, key []uint64) error
}

type backend struct {
	keys     answerKeys
	scorer   distributor.QuizScorer
	minter   distributor.TokenMinter
	progress distributor.ProgressTracker
	supply   jobs.SupplyFunc

	conn  *postgres.Connection
	audit *postgres.AuditRepository
	cache *redis.Cache

	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func buildBackend(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backend, error) {
	b := &backend{}

	var (
		minter   distributor.TokenMinter
		progress distributor.ProgressTracker
	)

	switch cfg.Rewards.Backend {
	case config.BackendPostgres:
		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.conn = conn
		b.closers = append(b.closers, func() {
			log.Info("closing database connection...")
			conn.Close()
		})

		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				b.close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}

		ledger := postgres.NewTokenLedger(conn)
		if err := ledger.SetSupplyCap(ctx, cfg.Rewards.SupplyCap); err != nil {
			b.close()
			return nil, fmt.Errorf("failed to set supply cap: %w", err)
		}
		minter = ledger
		b.supply = ledger.Supply
		warnVolatileLedger(log, cfg.Rewards.Backend)
		progress = postgres.NewProgressRepository(conn)
		b.audit = postgres.NewAuditRepository(conn)

		if !cfg.Redis.Disabled {
			log.Info("connecting to Redis...")
			cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
			if err != nil {
				b.close()
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			b.closers = append(b.closers, func() {
				if err := cache.Close(); err != nil {
					log.Error("failed to close redis", "error", err)
				}
			})
			b.cache = cache
			b.keys = redis.NewAnswerKeyStore(cache)
		}

	default:
		mem := service.NewMemoryMinter(cfg.Rewards.SupplyCap)
		minter = mem
		b.supply = func(context.Context) (*uint256.Int, error) { return mem.Supply(), nil }
		progress = service.NewMemoryProgress()
	}

	if b.keys == nil {
		b.keys = quiz.NewMemoryKeys()
	}

	onStateChange := func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}
	breaker := func(name string) *circuitbreaker.CircuitBreaker {
		return circuitbreaker.New(name,
			circuitbreaker.WithFailureThreshold(cfg.Rewards.BreakerThreshold),
			circuitbreaker.WithSuccessThreshold(1),
			circuitbreaker.WithTimeout(cfg.Rewards.BreakerTimeout),
			circuitbreaker.WithMaxHalfOpenRequests(1),
			circuitbreaker.WithOnStateChange(onStateChange),
		)
	}

	b.scorer = service.NewGuardedScorer(quiz.NewAnswerKeyScorer(b.keys), breaker("quiz_scorer"))
	b.minter = service.NewGuardedMinter(minter, breaker("token_minter"))
	b.progress = service.NewGuardedProgress(progress, breaker("progress_tracker"))
	return b, nil
}

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = c.URL
	pc.Host = c.Host
	pc.Port = c.Port
	pc.Database = c.Name
	pc.User = c.User
	pc.Password = c.Password
	pc.SSLMode = c.SSLMode
	pc.MaxConns = int32(c.MaxConns)
	pc.MinConns = int32(c.MinConns)
	pc.MaxConnLifetime = c.ConnMaxLifetime
	pc.MaxConnIdleTime = c.ConnMaxIdleTime
	return pc
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	return rc
}

// warnVolatileLedger flags backends whose balances outlive the process while
// the completion ledger and minted total do not. After a restart such a
// deployment accepts a second claim for an already paid course.
func warnVolatileLedger(log *slog.Logger, backend config.Backend) bool {
	if backend == config.BackendMemory {
		return false
	}
	log.Warn("completion ledger is in-memory; completions and the minted total do not survive a restart while balances do",
		"backend", backend,
	)
	return true
}

// setupLogger configures slog on stderr; stdout carries responses.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
