package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/manual-hunter/backend/internal/api/handlers"
	redisCache "github.com/manual-hunter/backend/internal/cache/redis"
	"github.com/manual-hunter/backend/internal/judge"
	"github.com/manual-hunter/backend/internal/llm"
	"github.com/manual-hunter/backend/internal/metrics"
	"github.com/manual-hunter/backend/internal/middleware/ratelimit"
	"github.com/manual-hunter/backend/internal/middleware/security"
	"github.com/manual-hunter/backend/internal/middleware/validation"
	"github.com/manual-hunter/backend/internal/queue"
	"github.com/manual-hunter/backend/internal/resolver"
	"github.com/manual-hunter/backend/internal/search"
	"github.com/manual-hunter/backend/internal/storage/sqlite"
	"github.com/manual-hunter/backend/internal/validator"
	"github.com/manual-hunter/backend/pkg/config"
	appLogger "github.com/manual-hunter/backend/pkg/logger"
)

func main() {
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

	appLogger.Info("Starting Manual Resolution Engine")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Redis only carries the per-key claim lock and result hand-off; the
	// resolver degrades to in-process locking without it.
	var locker resolver.KeyLocker
	redisClient, err := redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, per-key claims are process-local", zap.Error(err))
	} else {
		defer redisClient.Close()
		locker = redisClient
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		time.Duration(cfg.LLM.TimeoutSec)*time.Second,
	)

	urlValidator := validator.New(cfg.Resolver.ValidatorTimeout())

	searchTimeout := time.Duration(cfg.Search.TimeoutSec) * time.Second
	providers := []search.Provider{
		search.NewSerpProvider(cfg.Search.SerpAPIKey, searchTimeout),
		search.NewScrapeProvider(searchTimeout),
		search.NewResearchProvider(llmClient, cfg.LLM.ResearchModel),
	}
	strategy := search.NewStrategy(providers, urlValidator, cfg.Resolver.TierTimeout(), cfg.Search.MaxCandidates)

	qualityJudge := judge.New(llmClient, cfg.Resolver.JudgeTimeout())
	reviewQueue := queue.NewService(store)

	engine := resolver.New(
		resolver.Config{
			AcceptanceThreshold: cfg.Resolver.AcceptanceThreshold,
			ValidationWeight:    cfg.Resolver.ValidationWeight,
			JudgeWeight:         cfg.Resolver.JudgeWeight,
			Budget:              cfg.Resolver.Budget(),
			ClaimTTL:            cfg.Resolver.ClaimTTL(),
			ClaimWait:           cfg.Resolver.ClaimWait(),
		},
		store, strategy, qualityJudge, urlValidator, reviewQueue, locker,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	resolveHandler := handlers.NewResolveHandler(engine)
	queueHandler := handlers.NewQueueHandler(reviewQueue)
	cacheHandler := handlers.NewCacheHandler(store)
	wsHandler := handlers.NewWebSocketHandler(engine)

	api := app.Group("/api/v1")

	api.Post("/resolve", resolveHandler.HandleResolve)
	api.Get("/queue", queueHandler.ListPending)
	api.Post("/queue/resolve", queueHandler.HandleResolve)
	api.Get("/cache/:manufacturer/:model", cacheHandler.HandleGet)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := store.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/resolve", websocket.New(wsHandler.HandleConnection))

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
