package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unimate/backend/internal/api/handlers"
	"github.com/unimate/backend/internal/cache/redis"
	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/ingestion"
	"github.com/unimate/backend/internal/llm"
	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/internal/middleware/ratelimit"
	"github.com/unimate/backend/internal/middleware/security"
	"github.com/unimate/backend/internal/middleware/validation"
	"github.com/unimate/backend/internal/query"
	"github.com/unimate/backend/internal/session"
	"github.com/unimate/backend/internal/storage/sqlite"
	"github.com/unimate/backend/internal/vector"
	"github.com/unimate/backend/pkg/config"
	appLogger "github.com/unimate/backend/pkg/logger"
)

const version = "1.0.0"

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting UniMate API Server", zap.String("version", version))

	metrics.Init()

	for _, dir := range []string{cfg.Storage.BasePath, cfg.Storage.UploadDir, filepath.Dir(cfg.Storage.SQLitePath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			appLogger.Fatal("Failed to create storage directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	sqliteClient, err := sqlite.NewClient(cfg.Storage.SQLitePath)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	var embedder redis.Embedder = llmClient
	if cfg.Redis.Enabled {
		cacheClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, embedding cache disabled", zap.Error(err))
		} else {
			defer cacheClient.Close()
			embedder = redis.NewCachingEmbedder(cacheClient, llmClient, cfg.Redis.TTL)
			appLogger.Info("Embedding cache enabled")
		}
	}

	var backend vector.Backend
	switch cfg.Vector.Backend {
	case "milvus":
		milvusBackend, err := vector.NewMilvusBackend(cfg.Vector.Milvus.Endpoint, cfg.Vector.Milvus.APIKey, cfg.Vector.Dim)
		if err != nil {
			appLogger.Fatal("Failed to connect to Milvus", zap.Error(err))
		}
		defer milvusBackend.Close()
		backend = milvusBackend
		appLogger.Info("Using Milvus dense backend", zap.String("endpoint", cfg.Vector.Milvus.Endpoint))
	default:
		backend = vector.NewLocalBackend()
		appLogger.Info("Using local dense backend", zap.String("base_path", cfg.Storage.BasePath))
	}

	registry := collection.NewRegistry(cfg.Storage.BasePath)
	sessions := session.NewManager()

	opener := func(ctx context.Context, col collection.Info) (query.Searcher, error) {
		return vector.Open(ctx, col, backend, embedder)
	}
	aggregator := query.NewAggregator(
		registry,
		opener,
		cfg.Retrieval.TopKDense,
		cfg.Retrieval.FinalK,
		cfg.Retrieval.CollectionTimeout,
	)

	queryEngine := query.NewEngine(
		sessions,
		query.NewKeywordClassifier(),
		aggregator,
		llmClient,
		sqliteClient,
		cfg.Retrieval.LowConfidenceThreshold,
	)

	processor := ingestion.NewProcessor(sqliteClient, registry, backend, embedder, cfg.Vector.Dim, cfg.Storage.UploadDir)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Logging.Format == "console",
	}))

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{}))

	sessionHandler := handlers.NewSessionHandler(sessions)
	queryHandler := handlers.NewQueryHandler(queryEngine, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor, registry, sessions)
	wsHandler := handlers.NewWebSocketHandler(queryEngine)

	startTime := time.Now()

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":         "healthy",
			"version":        version,
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		})
	})

	api.Post("/session", sessionHandler.CreateSession)
	api.Post("/session/clear", sessionHandler.ClearSession)
	api.Get("/session/history", sessionHandler.SessionHistory)

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.UploadDocuments)
	api.Get("/collections", documentHandler.ListCollections)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
