package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/api"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/auth"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/cache"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/config"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/domain"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/events"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/observability"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/outbox"
	"github.com/TeioDM/Site-de-Registro-de-Atividades/internal/persistence/memory"
	pgrepo "github.com/TeioDM/Site-de-Registro-de-Atividades/internal/persistence/postgres"
	httptransport "github.com/TeioDM/Site-de-Registro-de-Atividades/internal/transport/http"
)

type revocationStore interface {
	domain.SessionRevoker
	auth.RevocationChecker
}

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo       domain.Repository
		dispatcher *outbox.Dispatcher
	)
	if cfg.UsePostgres() {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("postgres_connect_failed", zap.Error(err))
		}
		defer pool.Close()
		repo = pgrepo.NewRepository(pool)

		if cfg.EventsEnabled() {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()
			if err := producer.EnsureTopics(ctx, 3, events.Topics()...); err != nil {
				logger.Warn("kafka_topic_setup_failed", zap.Error(err))
			}

			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, logger, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
			go dispatcher.Start(ctx)
		} else {
			logger.Info("outbox_dispatcher_disabled", zap.String("reason", "KAFKA_BROKERS not set"))
		}
	} else {
		logger.Warn("using_memory_store")
		repo = memory.NewRepository(nil)
	}

	var (
		leaderboard domain.LeaderboardCache = cache.NewMemoryLeaderboard(cfg.LeaderboardCacheTTL)
		revocations revocationStore         = auth.NewMemoryRevocations()
	)
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Fatal("redis_connect_failed", zap.Error(err))
		}
		defer client.Close()
		leaderboard = cache.NewRedisLeaderboard(client, cfg.LeaderboardCacheTTL)
		revocations = cache.NewRedisSessions(client)
	}

	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.SessionTTL}
	service := domain.NewService(repo,
		domain.WithLogger(logger),
		domain.WithLeaderboardCache(leaderboard),
		domain.WithAuthenticator(auth.NewIssuer(authCfg), auth.BcryptHasher{Cost: cfg.BcryptCost}, revocations),
	)

	mux := http.NewServeMux()
	api.NewHandler(service, cfg.HistoryPageSize).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(authCfg, revocations)
	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.Recovery(logger),
		httptransport.CORS(cfg.CORSOrigins),
		observability.RequestLogger(logger),
		authMiddleware.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("api_listening", zap.String("addr", cfg.HTTPAddress), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server_error", zap.Error(err))
		}
	}()

	<-shutdownCh
	logger.Info("shutdown_requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful_shutdown_failed", zap.Error(err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
