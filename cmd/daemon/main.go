// SPDX-License-Identifier: MIT

// The daemon wraps Azure AI Content Safety behind a moderation API: thin
// analysis proxies, a staged filtering pipeline with LLM adjudication and
// automatic blocklisting, blocklist management and decision reporting.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/Azure-Samples/content-safety/internal/api"
	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/blocklist"
	"github.com/Azure-Samples/content-safety/internal/cache"
	"github.com/Azure-Samples/content-safety/internal/config"
	"github.com/Azure-Samples/content-safety/internal/filter"
	"github.com/Azure-Samples/content-safety/internal/health"
	"github.com/Azure-Samples/content-safety/internal/llm"
	cslog "github.com/Azure-Samples/content-safety/internal/log"
	"github.com/Azure-Samples/content-safety/internal/ratelimit"
	"github.com/Azure-Samples/content-safety/internal/reports"
	"github.com/Azure-Samples/content-safety/internal/resilience"
	"github.com/Azure-Samples/content-safety/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cslog.Configure(cslog.Config{
		Level:   "info",
		Service: "content-safety",
		Version: version,
	})
	logger := cslog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(cslog.FieldEvent, "config.load_failed").
			Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str(cslog.FieldEvent, "config.invalid").
			Msg("configuration is invalid")
	}

	cslog.Configure(cslog.Config{
		Level:   cfg.LogLevel,
		Service: "content-safety",
		Version: version,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().
			Err(err).
			Str(cslog.FieldPath, cfg.DataDir).
			Msg("failed to create data directory")
	}

	logger.Info().
		Str(cslog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("addr", cfg.Listen).
		Str(cslog.FieldEndpoint, cfg.Upstream.Endpoint).
		Msg("starting content-safety daemon")
	if cfg.APIToken == "" {
		logger.Warn().Msg("CONTENTSAFETY_API_TOKEN not set, all API requests will be denied")
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "content-safety",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise tracing")
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	// Upstream client: rate limited, circuit broken, traced.
	breaker := resilience.NewCircuitBreaker("upstream", 5, 30*time.Second)
	upstream := azcs.New(cfg.Upstream.Endpoint, cfg.Upstream.Key,
		azcs.WithAPIVersion(cfg.Upstream.APIVersion),
		azcs.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Upstream.RateLimit), cfg.Upstream.RateBurst)),
		azcs.WithBreaker(breaker),
		azcs.WithHTTPClient(&http.Client{
			Timeout:   cfg.Upstream.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)

	healthMgr := health.NewManager(version)
	healthMgr.Register(health.NewPingChecker("upstream", upstream, false))
	healthMgr.Register(health.NewDataDirChecker(cfg.DataDir))

	// Decision cache: Redis when configured, in-process memory otherwise.
	var decisionCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cslog.WithComponent("cache"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() { _ = redisCache.Close() }()
		healthMgr.Register(health.CheckFunc{
			ComponentName: "redis",
			Fn: func(ctx context.Context) health.CheckResult {
				if err := redisCache.HealthCheck(ctx); err != nil {
					return health.CheckResult{Status: health.StatusDegraded, Error: err.Error()}
				}
				return health.CheckResult{Status: health.StatusHealthy}
			},
		})
		decisionCache = redisCache
	} else {
		decisionCache = cache.NewMemoryCache(time.Minute)
	}

	store, err := reports.Open(filepath.Join(cfg.DataDir, "decisions.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open decision store")
	}
	defer func() { _ = store.Close() }()
	healthMgr.Register(health.CheckFunc{
		ComponentName: "sqlite",
		Fn: func(ctx context.Context) health.CheckResult {
			if err := store.Verify(ctx); err != nil {
				return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
			}
			return health.CheckResult{Status: health.StatusHealthy}
		},
	})

	var adjudicator filter.Adjudicator
	if cfg.LLM.Endpoint != "" {
		adjudicator = llm.New(cfg.LLM.Endpoint, cfg.LLM.Key)
	} else {
		logger.Warn().Msg("no LLM endpoint configured, contested content is blocked without adjudication")
	}

	pipeline := filter.NewPipeline(upstream, filter.Options{
		Adjudicator: adjudicator,
		Blocklists:  upstream,
		Recorder:    store,
		Cache:       decisionCache,
		CacheTTL:    cfg.Pipeline.CacheTTL,
		Blocklist:   cfg.Pipeline.Blocklist,
		FailOpen:    cfg.Pipeline.FailOpen,
	})

	// The pipeline blocklist must exist before the primary filter names it.
	if _, err := upstream.CreateOrUpdateBlocklist(ctx, cfg.Pipeline.Blocklist, "populated by the moderation pipeline"); err != nil {
		logger.Error().
			Err(err).
			Str(cslog.FieldBlocklist, cfg.Pipeline.Blocklist).
			Msg("failed to ensure pipeline blocklist, continuing")
	}

	if cfg.Pipeline.SeedFile != "" {
		seeder := blocklist.NewSeeder(upstream, cfg.Pipeline.SeedFile)
		defer seeder.Stop()
		if err := seeder.Sync(ctx); err != nil {
			logger.Fatal().
				Err(err).
				Str(cslog.FieldPath, cfg.Pipeline.SeedFile).
				Msg("failed to seed blocklists")
		}
		if err := seeder.Watch(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to watch blocklist seed file, hot reload disabled")
		}
	}

	srv := api.New(cfg, api.Deps{
		Upstream: upstream,
		Pipeline: pipeline,
		Store:    store,
		Health:   healthMgr,
		Breaker:  breaker,
		Limiter:  ratelimit.New(ratelimit.DefaultConfig()),
		Version:  version,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Str(cslog.FieldEvent, "shutdown").Msg("signal received, shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("daemon stopped")
}
