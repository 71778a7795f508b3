package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/internal/config"
	"github.com/jwebster45206/npc-engine/internal/engine"
	"github.com/jwebster45206/npc-engine/internal/handlers"
	"github.com/jwebster45206/npc-engine/internal/logger"
	"github.com/jwebster45206/npc-engine/internal/middleware"
	"github.com/jwebster45206/npc-engine/internal/services"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/internal/storage"
	"github.com/jwebster45206/npc-engine/internal/worker"
	pkgstorage "github.com/jwebster45206/npc-engine/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting NPC Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	var llmService services.LLMService
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" || cfg.ModelName == "" {
			log.Error("ANTHROPIC_API_KEY and MODEL_NAME are required when using anthropic provider")
			os.Exit(1)
		}
		llmService = services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.BackendModelName, log)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Error("OPENAI_API_KEY is required when using openai provider")
			os.Exit(1)
		}
		llmService = services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, cfg.BackendModelName, log)
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"anthropic", "openai"})
		os.Exit(1)
	}

	var (
		store       pkgstorage.Storage
		redisClient *redis.Client
	)
	switch cfg.StorageBackend {
	case config.StorageRedis:
		rs, err := storage.NewRedisStorage(cfg.RedisURL, cfg.DataDir, log)
		if err != nil {
			log.Error("Failed to create redis storage", "error", err)
			os.Exit(1)
		}
		store, redisClient = rs, rs.Client()
	case config.StorageSQLite:
		ss, err := storage.NewSQLiteStorage(cfg.SQLitePath, cfg.DataDir, log)
		if err != nil {
			log.Error("Failed to open sqlite storage", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		store = ss
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()
	if err := store.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	initCtx, initCancel := context.WithTimeout(context.Background(), time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	var publisher events.Publisher = events.Nop{}
	if redisClient != nil {
		publisher = events.NewBroadcaster(redisClient, log)
	}

	opts := worker.Options{
		SnapshotMin:          cfg.BeliefSnapshotMin,
		CompressionThreshold: cfg.CompressionThreshold,
	}
	if cfg.ConsolidationLock == config.LockRedis {
		opts.Locker = worker.NewRedisLocker(redisClient, worker.DefaultLockTTL, log)
		log.Info("Using Redis consolidation lock")
	}

	cog := services.NewCognition(llmService, log)
	consolidator := worker.NewConsolidator(store, cog, publisher, log, opts)
	eng := engine.New(store, cog, consolidator, publisher, log, cfg.BeliefSnapshotMin)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(map[string]handlers.Pinger{"storage": store}, log))
	mux.Handle("/v1/interact", handlers.NewInteractHandler(eng, log))
	mux.Handle("/v1/npcs/", handlers.NewNPCHandler(eng, store, consolidator, log))
	if redisClient != nil {
		mux.Handle("/v1/events/users/", handlers.NewEventsHandler(redisClient, log))
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the events endpoint streams.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Let running consolidation passes persist before the store closes.
	consolidator.Wait()

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
