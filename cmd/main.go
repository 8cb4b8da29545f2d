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

	"github.com/RishiKendai/aegis-local/internal/api"
	"github.com/RishiKendai/aegis-local/internal/config"
	"github.com/RishiKendai/aegis-local/internal/configs/env"
	"github.com/RishiKendai/aegis-local/internal/corpus"
	"github.com/RishiKendai/aegis-local/internal/infra/mongo"
	redisInfra "github.com/RishiKendai/aegis-local/internal/infra/redis"
	"github.com/RishiKendai/aegis-local/internal/logger"
	"github.com/RishiKendai/aegis-local/internal/metrics"
	"github.com/RishiKendai/aegis-local/internal/plagiarism"
	"github.com/RishiKendai/aegis-local/internal/repository"
	"github.com/RishiKendai/aegis-local/internal/stream"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := env.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file, continuing with system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	logger.Init(cfg.LogLevel)
	log.Info().Msg("Starting AEGIS local overlap service")

	// Initialize Prometheus metrics
	metrics.InitPrometheus()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.MetricsHandler())
	metricsServer := api.StartServer(metricsMux, cfg.MetricsPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reference corpus
	store := corpus.NewStore(cfg.CorpusDir)
	if err := store.Init(); err != nil {
		log.Fatal().Err(err).Str("root", cfg.CorpusDir).Msg("Failed to initialize corpus storage")
	}

	var source plagiarism.CorpusSource = store
	if cfg.CorpusCache {
		cache := corpus.NewCache(store)
		source = cache
		if cfg.CorpusWatch {
			go func() {
				if err := cache.Watch(ctx); err != nil {
					log.Error().Err(err).Msg("Corpus watcher stopped")
				}
			}()
		}
	}
	log.Info().
		Str("root", store.Root()).
		Bool("cache", cfg.CorpusCache).
		Bool("watch", cfg.CorpusWatch).
		Msg("Corpus store initialized")

	// Connect MongoDB
	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create MongoDB client")
	}
	defer mongoClient.Close(context.Background())

	// Connect Redis
	redisClient, err := redisInfra.NewClient(ctx, cfg.RedisHost, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis client")
	}
	defer redisClient.Close()

	// Initialize repositories
	mongoRepo := repository.NewMongoRepository(mongoClient)
	reportsRepo := repository.NewReportsRepository(mongoRepo)
	if err := reportsRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure report indexes")
	}

	statusTracker := plagiarism.NewStatusTracker(redisClient, cfg.StatusTTL)

	checker := &plagiarism.Checker{
		Detector: plagiarism.NewDetector(source),
		Reports:  reportsRepo,
		Status:   statusTracker,
		Timeout:  cfg.CheckTimeout,
	}

	// Checks are queued on the Redis stream when enabled, otherwise run
	// in-process on the worker pool
	var queue api.CheckQueue
	if cfg.StreamEnabled {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "unknown"
		}
		consumerName := fmt.Sprintf("consumer-%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])

		retryHandler := stream.NewRetryHandler(redisClient.Client, cfg.RedisDeadLetterKey)
		consumer := stream.NewConsumer(
			redisClient.Client,
			stream.ConsumerConfig{
				StreamKey:         cfg.RedisStreamKey,
				Group:             cfg.RedisConsumerGroup,
				Name:              consumerName,
				RetentionDuration: cfg.StreamRetentionDuration,
			},
			checker,
			retryHandler,
		)

		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Redis consumer error")
			}
		}()
		log.Info().Str("consumer_name", consumerName).Msg("Redis consumer started")

		queue = stream.NewProducer(redisClient.Client, cfg.RedisStreamKey)
	} else {
		workerPool := plagiarism.NewWorkerPool(ctx, cfg.Workers)
		defer workerPool.Close()

		queue = plagiarism.NewPoolQueue(workerPool, checker)
	}

	router := api.SetupRoutes(ctx, cfg, api.Dependencies{
		Corpus:  source,
		Queue:   queue,
		Status:  statusTracker,
		Reports: reportsRepo,
	})

	srv := api.StartServer(router, cfg.ServerPort)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down gracefully...")

	if err := api.ShutdownServer(srv, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down API server")
	}

	// Stop the consumer, watcher and workers before closing their clients
	cancel()

	if err := api.ShutdownServer(metricsServer, 5*time.Second); err != nil {
		log.Error().Err(err).Msg("Error shutting down metrics server")
	}

	log.Info().Msg("Shutdown complete")
}
