package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronicle/internal/audit/batch"
	"chronicle/internal/audit/handler"
	"chronicle/internal/audit/query"
	"chronicle/internal/audit/recorder"
	"chronicle/internal/audit/service"
	kafkasink "chronicle/internal/audit/sink/kafka"
	"chronicle/internal/audit/store/postgres"
	"chronicle/internal/jwttoken"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/metrics"
	"chronicle/internal/platform/middleware"
	platformredis "chronicle/internal/platform/redis"
	"chronicle/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Correlator: Redis when configured so batch counters survive restarts
	// and shared-nothing replicas agree; in-process otherwise.
	var correlator batch.Correlator = batch.NewMemoryCorrelator()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		correlator = batch.NewRedisCorrelator(redisClient.Client)
		log.Info("batch correlator using redis")
	}

	store := postgres.New(db)
	recOpts := []recorder.Option{
		recorder.WithLogger(log),
		recorder.WithMetrics(recorder.NewMetrics()),
		recorder.WithTimeout(cfg.AppendTimeout),
		recorder.WithBreaker(recorder.NewCircuitBreaker(5, 30*time.Second)),
	}

	// Security events additionally stream to Kafka for SIEM consumption.
	if len(cfg.KafkaBrokers) > 0 {
		sinkCtx, cancelSink := context.WithTimeout(context.Background(), 10*time.Second)
		sink, err := kafkasink.New(sinkCtx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		cancelSink()
		if err != nil {
			log.Error("kafka sink init failed", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		recOpts = append(recOpts, recorder.WithSecuritySink(sink))
		log.Info("security events forwarding to kafka", "brokers", cfg.KafkaBrokers)
	}

	rec := recorder.New(store, recOpts...)
	defer rec.Close()

	auditService := service.New(rec, correlator,
		service.WithLogger(log),
		service.WithIgnoredFields(cfg.IgnoredDiffFields...),
	)

	queryService := query.New(store)
	auditHandler := handler.New(queryService, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "chronicle", "chronicle-console")
	httpMetrics := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	router.Use(metadata.ClientMetadata)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, auditService, log))
		r.Use(func(next http.Handler) http.Handler {
			return httpMetrics.Instrument("audit", next)
		})
		auditHandler.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting chronicle", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
