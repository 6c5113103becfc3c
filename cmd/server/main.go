package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-ar-nonpayment/internal/client"
	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/handler"
	"github.com/pesio-ai/be-ar-nonpayment/internal/middleware"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/config"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/database"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/repository"
	"github.com/pesio-ai/be-ar-nonpayment/internal/service"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("time_zone", cfg.Service.TimeZone).
		Msg("Starting Non-Payment Reason Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	// Database is optional; without it submissions live in memory.
	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, database.Config{
			URL:         cfg.Database.URL,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnTime: cfg.Database.MaxConnTime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
			HealthCheck: cfg.Database.HealthCheck,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		log.Info().Msg("Database connection established")
	}

	var store service.SubmissionStore
	if db != nil {
		store = repository.NewSubmissionRepository(db, loc)
	} else {
		store = repository.NewMemorySubmissionRepository()
		log.Warn().Msg("DATABASE_URL not set, submissions are kept in memory")
	}

	reasons, err := buildTaxonomy(cfg, db, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize reason taxonomy")
	}

	identity, err := buildIdentity(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize identity client")
	}

	// Downstream sinks
	debtClient, err := client.NewDebtManagementGRPCClient(cfg.Sinks.DebtGRPCAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create debt management gRPC client")
	}
	defer debtClient.Close()
	interactionClient := client.NewInteractionLogClient(cfg.Sinks.InteractionURL, cfg.Sinks.Timeout)
	careClient := client.NewCareSystemClient(cfg.Sinks.CareURL, cfg.Sinks.Timeout)

	log.Info().
		Str("debt_grpc", cfg.Sinks.DebtGRPCAddr).
		Str("interaction_url", cfg.Sinks.InteractionURL).
		Str("care_url", cfg.Sinks.CareURL).
		Dur("sink_timeout", cfg.Sinks.Timeout).
		Msg("Downstream clients initialized")

	var events service.EventPublisherInterface
	if cfg.NATS.URL != "" {
		nc, err := client.ConnectNATS(cfg.NATS.URL, cfg.Service.Name)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, submission events disabled")
		} else {
			defer nc.Drain()
			events = client.NewSubmissionPublisher(nc, cfg.NATS.Subject, log.Component("events"))
			log.Info().Str("subject", cfg.NATS.Subject).Msg("Submission events enabled")
		}
	}

	// Services
	validator := validation.New(now)
	dispatcher := dispatch.New(debtClient, interactionClient, careClient, validator, cfg.Sinks.Timeout, log.Component("dispatch"))
	reasonService := service.NewReasonService(reasons, log.Component("reasons"))
	submissionService := service.NewSubmissionService(identity, reasons, store, dispatcher, validator, events, log.Component("submissions"))
	historyService := service.NewHistoryService(store, identity, now, log.Component("history"))

	// HTTP
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(&log.Logger))
	r.Use(middleware.Recovery(&log.Logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.NewHTTPHandler(reasonService, submissionService, historyService, loc, log.Component("http")).Routes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(handler.UnaryLogger(log.Component("grpc"))))
	handler.RegisterNonPaymentReasonServer(grpcServer,
		handler.NewGRPCHandler(reasonService, submissionService, historyService, loc, log))
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("Server stopped")
}

// buildTaxonomy picks the reason source and fronts it with the Redis cache
// when REDIS_ADDR is set.
func buildTaxonomy(cfg *config.Config, db *database.DB, log *logger.Logger) (taxonomy.Provider, error) {
	var source taxonomy.Provider
	switch strings.ToLower(cfg.Taxonomy.Source) {
	case "postgres":
		source = repository.NewReasonRepository(db)
	default:
		static, err := taxonomy.LoadStatic(cfg.Taxonomy.File)
		if err != nil {
			return nil, err
		}
		source = static
	}

	if cfg.Redis.Addr == "" {
		return source, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Reason cache enabled")
	return taxonomy.NewCachedProvider(source, rdb, cfg.Redis.TTL, log.Component("reason-cache")), nil
}

func buildIdentity(cfg *config.Config) (service.IdentityClientInterface, error) {
	if cfg.Identity.URL != "" {
		return client.NewIdentityHTTPClient(cfg.Identity.URL, cfg.Sinks.Timeout), nil
	}
	return client.LoadStaticIdentity(cfg.Identity.DirectoryFile)
}
