package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/playlake/dashboard/api/config"
	"github.com/playlake/dashboard/api/handlers"
	"github.com/playlake/dashboard/api/metrics"
	"github.com/playlake/dashboard/api/queries"
	"github.com/playlake/dashboard/api/warehouse"
	"github.com/playlake/dashboard/utils/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", config.DefaultListenAddr, "HTTP server listen address (or set PORT env var)")
	metricsAddrFlag := flag.String("metrics-addr", config.DefaultMetricsAddr, "Address to listen on for prometheus metrics (empty to disable)")
	engineFlag := flag.String("engine", warehouse.EngineBigQuery, "Warehouse engine: bigquery or clickhouse (or set WAREHOUSE_ENGINE env var)")
	flag.Parse()

	// godotenv does not override existing env vars, so later files don't
	// overwrite earlier ones.
	_ = godotenv.Load()           // .env in current working directory
	_ = godotenv.Load("api/.env") // api/.env when running from repo root

	log := logger.New(*verboseFlag)

	cfg := config.Default()
	cfg.ListenAddr = *listenAddrFlag
	cfg.MetricsAddr = *metricsAddrFlag
	cfg.Engine = *engineFlag
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Warn("config: " + w)
	}

	log.Info("dashboard api starting",
		"version", version,
		"commit", commit,
		"date", date,
		"engine", cfg.Engine,
		"listen_addr", cfg.ListenAddr,
		"query_timeout", cfg.QueryTimeout,
	)

	// Sentry is optional and a no-op when the DSN is not set.
	if cfg.SentryDSN != "" {
		release := version
		if commit != "none" {
			release = version + "-" + commit
		}
		// TracesSampleRate: 1.0 for development, 0.1 (10%) otherwise
		tracesSampleRate := 0.1
		if cfg.SentryEnvironment == "development" {
			tracesSampleRate = 1.0
		}
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          release,
			EnableTracing:    true,
			TracesSampleRate: tracesSampleRate,
		})
		if err != nil {
			log.Warn("sentry initialization failed", "error", err)
		} else {
			log.Info("sentry initialized", "env", cfg.SentryEnvironment, "release", release)
			defer sentry.Flush(2 * time.Second)
		}
	}

	dispatcher, err := queries.NewDispatcher(queries.Dialect(cfg.Engine), cfg.Tables)
	if err != nil {
		return fmt.Errorf("failed to create query dispatcher: %w", err)
	}

	provider := warehouse.NewProvider(log, cfg.Engine, newWarehouseFactory(log, cfg))
	defer func() {
		if err := provider.Close(); err != nil {
			log.Warn("failed to close warehouse client", "error", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		listener, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			log.Error("failed to start prometheus metrics server listener", "error", err)
		} else {
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			metricsServer = &http.Server{Handler: mux}
			go func() {
				if err := metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	api := handlers.New(log, dispatcher, provider, cfg.QueryTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)

	// Before Recoverer so panics are captured.
	if cfg.SentryDSN != "" {
		sentryHandler := sentryhttp.New(sentryhttp.Options{
			Repanic: true,
		})
		r.Use(sentryHandler.Handle)
	}

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(corsOptions(cfg.CORSOrigins)))

	var rateLimit func(http.Handler) http.Handler
	if cfg.RateLimitEnabled() {
		rateLimit = handlers.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
	api.Routes(r, rateLimit)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QueryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("api server listening", "address", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-shutdown:
		log.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Readiness fails immediately so the load balancer stops routing here.
	api.MarkShuttingDown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown error", "error", err)
	} else {
		log.Info("server stopped gracefully")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown error", "error", err)
		}
	}

	return nil
}

// corsOptions allows credentialed requests from the dashboard origins.
// Preflight requests are answered by the cors handler itself.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// newWarehouseFactory returns the constructor for the configured engine. It
// runs lazily on the first request that needs a client.
func newWarehouseFactory(log *slog.Logger, cfg *config.Config) warehouse.Factory {
	switch cfg.Engine {
	case warehouse.EngineClickHouse:
		chCfg := cfg.ClickHouse
		return func(ctx context.Context) (warehouse.Client, error) {
			client, err := warehouse.NewClickHouseClient(ctx, log, chCfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	default:
		bqCfg := cfg.BigQuery
		return func(ctx context.Context) (warehouse.Client, error) {
			client, err := warehouse.NewBigQueryClient(ctx, log, bqCfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
}
