package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/vocal-vent/cmd/mainconfig"
	"github.com/wolfman30/vocal-vent/internal/admin"
	"github.com/wolfman30/vocal-vent/internal/api/router"
	"github.com/wolfman30/vocal-vent/internal/chat"
	appconfig "github.com/wolfman30/vocal-vent/internal/config"
	"github.com/wolfman30/vocal-vent/internal/flows"
	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/internal/notify"
	"github.com/wolfman30/vocal-vent/internal/observability/metrics"
	"github.com/wolfman30/vocal-vent/internal/pages"
	"github.com/wolfman30/vocal-vent/internal/payments"
	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting vocal-vent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsHandler, siteMetrics := setupMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	// Redis backs preferences, realtime fan-out and the payment velocity check
	redisClient := connectRedis(ctx, cfg, logger)
	var (
		prefsBackend prefs.Backend
		broker       gateway.Broker
	)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		prefsBackend = prefs.NewRedisBackend(redisClient, cfg.PrefsTTL)
		broker = gateway.NewRedisBroker(redisClient, logger)
	} else {
		prefsBackend = prefs.NewMemoryBackend()
		broker = gateway.NewMemoryBroker(logger)
	}
	// A DynamoDB table, when configured, takes over preference storage
	if dynamo := setupDynamoPrefs(ctx, cfg, logger); dynamo != nil {
		prefsBackend = dynamo
	}

	// Postgres backs the document gateway and admin stats
	var backend gateway.Backend
	var stats pages.StatsSource
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
		backend = gateway.NewPostgresBackend(pool, broker,
			gateway.WithLatencyObserver(siteMetrics),
			gateway.WithPublishObserver(siteMetrics),
			gateway.WithLogger(logger),
		)
		if db := openStatsDB(cfg.DatabaseURL, logger); db != nil {
			defer func() { _ = db.Close() }()
			stats = admin.NewStatsStore(db)
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory gateway")
		backend = gateway.NewMemoryBackend(broker).ObservePublishes(logger, siteMetrics)
	}
	if stats == nil {
		stats = pages.GatewayStats{Backend: backend}
	}

	notifier := notify.NewService(setupEmailSender(ctx, cfg, logger), cfg.OperatorEmail, logger)

	chatService := chat.NewService(backend, logger)
	registry := flows.NewRegistry(flows.Options{
		Prefs:    prefs.NewProvider(prefsBackend),
		Sessions: session.NewManager(cfg.NotificationLimit, siteMetrics, logger),
		Backend:  backend,
		Notifier: notifier,
		Metrics:  siteMetrics,
		Rooms:    chatService,
		IdleTTL:  cfg.ControllerIdleTTL,
		Logger:   logger,
	})
	defer registry.Stop()

	paymentClient := payments.NewClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.PaymentTimeout, logger)
	velocity := payments.NewVelocityChecker(redisClient, cfg.PaymentMaxAttempts, cfg.PaymentAttemptWindow, logger)

	adminHandler := admin.NewHandler(admin.Options{
		Auth:         admin.NewAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash),
		Tokens:       admin.NewTokenIssuer(cfg.AdminJWTSecret, cfg.AdminTokenTTL),
		Backend:      backend,
		Sessions:     registry,
		Stats:        stats,
		SecureCookie: !cfg.IsDevelopment(),
		Logger:       logger,
	})

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Stop()
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Site:               handlers.NewSiteHandler(registry, pages.NewDispatcher(stats, logger), logger),
		Chat:               chat.NewHandler(chatService, cfg.CORSAllowedOrigins, logger),
		Payments:           payments.NewHandler(paymentClient, velocity, logger),
		Admin:              adminHandler,
		AdminJWTSecret:     cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		VisitorCookie:      cfg.VisitorCookie,
		SecureCookies:      !cfg.IsDevelopment(),
		RateLimiter:        limiter,
	})

	// Create HTTP server; no write timeout so chat streams stay open
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// setupMetrics registers the site collectors on reg and returns the handler
// that exposes gatherer.
func setupMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) (http.Handler, *metrics.SiteMetrics) {
	siteMetrics := metrics.NewSiteMetrics(reg)
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}), siteMetrics
}

// connectRedis returns nil when REDIS_ADDR is unset or unreachable; callers
// then fall back to in-memory stores.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	opts := &redis.Options{Addr: addr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable; using in-memory stores", "error", err, "addr", addr)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", addr)
	return client
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

// openStatsDB opens the database/sql handle the admin stats query runs on.
func openStatsDB(url string, logger *logging.Logger) *sql.DB {
	db, err := sql.Open("pgx", url)
	if err != nil {
		logger.Warn("stats db unavailable; counting through the gateway", "error", err)
		return nil
	}
	db.SetMaxOpenConns(2)
	return db
}

// setupEmailSender prefers SendGrid, then SES, then a logging stub.
func setupEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("operator email via sendgrid")
		return sg
	}
	if strings.TrimSpace(cfg.SESFromEmail) != "" {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Warn("failed to load AWS config; operator email disabled", "error", err)
		} else if ses := notify.NewSESSender(mainconfig.NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); ses != nil {
			logger.Info("operator email via ses")
			return ses
		}
	}
	logger.Warn("no email provider configured; operator notifications are logged only")
	return notify.NewStubEmailSender(logger)
}

// setupDynamoPrefs returns nil unless PREFS_DYNAMO_TABLE is set.
func setupDynamoPrefs(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *prefs.DynamoBackend {
	table := strings.TrimSpace(cfg.PrefsDynamoTable)
	if table == "" {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("failed to load AWS config; dynamodb preferences disabled", "error", err)
		return nil
	}
	logger.Info("preferences stored in dynamodb", "table", table)
	return prefs.NewDynamoBackend(mainconfig.NewDynamoClient(awsCfg, cfg), table, cfg.PrefsTTL)
}
