package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/pixelpress/api/internal/client"
	"github.com/pixelpress/api/internal/config"
	"github.com/pixelpress/api/internal/handler"
	"github.com/pixelpress/api/internal/middleware"
	"github.com/pixelpress/api/internal/registry"
	"github.com/pixelpress/api/internal/scheduler"
	"github.com/pixelpress/api/internal/service"
	"github.com/pixelpress/api/internal/settings"
	ws "github.com/pixelpress/api/internal/websocket"
)

// @title          PixelPress API
// @version        1.0
// @description    Batch image compression queue with bounded concurrency.
// @host           localhost:8000
// @BasePath       /
// @schemes        http https
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (rate limiting only; limiter is failure-open)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Compression capability (mock fallback when not configured)
	compressClient := client.NewCompressClient(&cfg.Compressor)
	if !compressClient.IsConfigured() {
		log.Println("Info: compression service not configured, using mock compressor")
	}

	// Core: registry, settings, scheduler
	reg := registry.New()
	settingsStore := settings.NewStore()
	sched := scheduler.New(reg, settingsStore, compressClient, hub, cfg.Queue.MaxConcurrent)

	// Services and handlers
	jobService := service.NewJobService(reg, sched)
	jobHandler := handler.NewJobHandler(jobService, sched)
	downloadHandler := handler.NewDownloadHandler(jobService)
	settingsHandler := handler.NewSettingsHandler(settingsStore, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimit * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"queue": fiber.Map{
				"maxConcurrent": sched.MaxConcurrent(),
				"active":        sched.ActiveCount(),
				"pending":       sched.PendingCount(),
				"paused":        sched.IsPaused(),
			},
			"services": fiber.Map{
				"compressor": compressClient.IsConfigured(),
				"redis":      redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.EnqueueLimit(cfg.RateLimit.EnqueuePerMin), jobHandler.Enqueue)
	jobs.Get("/", jobHandler.List)
	jobs.Delete("/", jobHandler.Clear)
	jobs.Get("/progress", jobHandler.Progress)
	jobs.Get("/download", downloadHandler.All)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Delete("/:jobId", jobHandler.Remove)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Post("/:jobId/rerun", jobHandler.Rerun)
	jobs.Get("/:jobId/download", downloadHandler.One)

	queue := api.Group("/queue")
	queue.Post("/pause", jobHandler.Pause)
	queue.Post("/resume", jobHandler.Resume)

	settingsGroup := api.Group("/settings")
	settingsGroup.Get("/", settingsHandler.Get)
	settingsGroup.Put("/", rateLimiter.SettingsLimit(cfg.RateLimit.SettingsPerMin), settingsHandler.Update)
	settingsGroup.Post("/preset/web", rateLimiter.SettingsLimit(cfg.RateLimit.SettingsPerMin), settingsHandler.WebPreset)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/queue", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, ws.TopicQueue)
	}))

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
