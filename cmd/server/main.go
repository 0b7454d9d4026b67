// server runs the analytics HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	analyticshandler "web-analytics/backend/internal/analytics/handler"
	analyticsrepo "web-analytics/backend/internal/analytics/repository"
	analyticsservice "web-analytics/backend/internal/analytics/service"
	apprepo "web-analytics/backend/internal/app/repository"
	apikeyhandler "web-analytics/backend/internal/apikey/handler"
	apikeyrepo "web-analytics/backend/internal/apikey/repository"
	apikeyservice "web-analytics/backend/internal/apikey/service"
	"web-analytics/backend/internal/audit"
	auditrepo "web-analytics/backend/internal/audit/repository"
	"web-analytics/backend/internal/cache"
	"web-analytics/backend/internal/config"
	"web-analytics/backend/internal/db"
	healthhandler "web-analytics/backend/internal/health/handler"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/policy/engine"
	"web-analytics/backend/internal/security"
	"web-analytics/backend/internal/server"
	"web-analytics/backend/internal/telemetry"
	otelsetup "web-analytics/backend/internal/telemetry/otel"
	"web-analytics/backend/internal/telemetry/producer"
	userhandler "web-analytics/backend/internal/user/handler"
	userrepo "web-analytics/backend/internal/user/repository"
)

const (
	serviceName     = "web-analytics-api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: serviceName})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("server: exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	providers, err := otelsetup.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.Env, cfg.OTelInsecure)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logging.Warn().Err(err).Msg("otel: shutdown")
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	tokens, err := security.NewSessionProvider(security.SessionSettings{
		Secret:     cfg.JWTSecret,
		PrivateKey: cfg.JWTPrivateKey,
		PublicKey:  cfg.JWTPublicKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		TTL:        cfg.SessionTTL(),
	})
	if err != nil {
		return fmt.Errorf("session tokens (set JWT_SECRET or JWT_PRIVATE_KEY/JWT_PUBLIC_KEY): %w", err)
	}

	authz, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	// The cache is advisory: a backend that cannot be reached at startup leaves it disabled.
	store, err := cache.NewStoreFromConfig(cfg)
	if err != nil {
		logging.Warn().Err(err).Str("backend", cfg.CacheBackend).Msg("cache: backend unavailable, running without cache")
		store = nil
	}
	aggCache := cache.New(store, cache.Options{
		TTL:             cfg.CacheTTL,
		OpTimeout:       cfg.CacheOpTimeout,
		BreakerFailures: cfg.CacheBreakerFailures,
	})
	defer aggCache.Close()

	var emitters []telemetry.EventEmitter
	var kafka *producer.KafkaProducer
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kafka = producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		emitters = append(emitters, kafka)
	}
	if cfg.OTelEndpoint != "" {
		emitters = append(emitters, otelsetup.NewEventEmitter(providers.LoggerProvider))
	}
	emitter := telemetry.Multi(emitters...)

	apps := apprepo.NewPostgresRepository(conn)
	keys := apikeyrepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)
	events := analyticsrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn))

	handler := server.NewRouter(server.Deps{
		Logger:                 logging.Logger(),
		Sessions:               tokens,
		APIKeys:                apikeyservice.NewAuthenticator(keys),
		Analytics:              analyticshandler.NewHandler(analyticsservice.NewService(events, apps, authz, aggCache, emitter)),
		Keys:                   apikeyhandler.NewHandler(apikeyservice.NewService(apps, keys, authz, auditLogger, cfg.APIKeyTTL())),
		Users:                  userhandler.NewHandler(users),
		Health:                 healthhandler.NewHandler(conn, authz, aggCache),
		CORSOrigins:            cfg.CORSOrigins(),
		RequestTimeout:         cfg.RequestTimeout,
		RateLimitMax:           cfg.RateLimitMaxRequests,
		RateLimitWindow:        cfg.RateLimitWindow,
		CollectRateLimitMax:    cfg.CollectRateLimitMax,
		CollectRateLimitWindow: cfg.CollectRateLimitWindow,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.HTTPAddr).Str("cache", cfg.CacheBackend).Msg("server: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logging.Info().Msg("server: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logging.Warn().Err(err).Msg("server: shutdown")
		}
	}

	// Let async telemetry emits started by the last requests finish.
	if kafka != nil {
		time.Sleep(telemetry.ShutdownDrainDuration)
		if err := kafka.Close(); err != nil {
			logging.Warn().Err(err).Msg("telemetry: kafka close")
		}
	}
	logging.Info().Msg("server: stopped")
	return nil
}
