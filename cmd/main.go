package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authconfig "filestore/internal/auth/config"
	"filestore/internal/di"
	filesconfig "filestore/internal/files/config"
	"filestore/internal/shared/database"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/utils"

	"github.com/caarlos0/env/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"localhost"`
	Port string `env:"SERVER_PORT" envDefault:"3000"`
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	serverCfg := &ServerConfig{}
	if err := env.Parse(serverCfg); err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// Initialize Dependency Injection Container
	container := di.NewContainer(appLogger, zapLogger)
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Error("Failed to close container", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Load module configuration
	filesCfg, err := filesconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load files configuration: %v", err)
	}
	authCfg, err := authconfig.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load auth configuration: %v", err)
	}

	// Connect to MongoDB
	mongoManager, err := database.NewMongoManager(ctx, &database.MongoConfig{
		URI:            filesCfg.MongoDBURI,
		Database:       filesCfg.DatabaseName,
		ConnectTimeout: 30 * time.Second,
		MaxPoolSize:    100,
		MinPoolSize:    2,
	}, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := mongoManager.Close(context.Background()); err != nil {
			appLogger.Error("Failed to disconnect MongoDB", "error", err)
		}
	}()

	// Connect to Redis for event stream persistence
	redisClient := filesconfig.NewRedisClient(&filesCfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Warn("Redis unavailable, event persistence disabled", "error", err)
		_ = redisClient.Close()
		redisClient = nil
	}

	// Initialize modules through the container
	container.InitializeShared(mongoManager.Database(), redisClient)
	if err := container.InitializeAuth(ctx, authCfg); err != nil {
		log.Fatalf("Failed to initialize auth module: %v", err)
	}
	if err := container.InitializeFiles(filesCfg); err != nil {
		log.Fatalf("Failed to initialize files module: %v", err)
	}
	if err := container.InitializeProfile(); err != nil {
		log.Fatalf("Failed to initialize profile module: %v", err)
	}
	appLogger.Info("All modules initialized")

	// Setup HTTP server
	app := fiber.New(fiber.Config{
		AppName:      "Filestore API v1.0",
		BodyLimit:    int(filesCfg.MaxUploadSize),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: newErrorHandler(appLogger),
	})

	authModule := container.GetAuthModule()
	middleware := authModule.GetMiddleware()

	app.Use(recover.New())
	app.Use(middleware.CORS())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestContext())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		healthCtx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()

		if err := container.HealthCheck(healthCtx); err != nil {
			appLogger.Error("Health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "UNHEALTHY",
				"error":  err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status":    "HEALTHY",
			"timestamp": time.Now().UTC(),
			"modules": fiber.Map{
				"auth":    "initialized",
				"files":   "initialized",
				"profile": "initialized",
			},
		})
	})

	// Register module routes
	api := app.Group("/api/v1")
	authModule.RegisterRoutes(api)
	container.GetFilesModule().RegisterRoutes(api, middleware.OptionalAuth())
	container.GetProfileModule().RegisterRoutes(api)

	// Attach the profile state adapter to auth events and start the event
	// stream janitor
	container.GetProfileModule().Start()
	container.GetFilesModule().Start()

	serverAddr := fmt.Sprintf("%s:%s", serverCfg.Host, serverCfg.Port)
	appLogger.Info("Starting HTTP server", "addr", serverAddr)

	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(serverAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			log.Fatalf("Server startup failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Info("Received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", "error", err)
		}
		appLogger.Info("HTTP server stopped")
	}
}

// newErrorHandler maps errors escaping the handlers onto the shared error
// contract {message, errorKey, requestId}.
func newErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		key := "INTERNAL_ERROR"
		message := "Internal Server Error"

		var appErr *apperrors.AppError
		var fiberErr *fiber.Error
		if errors.As(err, &appErr) {
			status = appErr.HTTPCode
			message = appErr.Message
			if appErr.Code != "" {
				key = appErr.Code
			} else {
				key = string(appErr.Type)
			}
		} else if errors.As(err, &fiberErr) {
			status = fiberErr.Code
			message = fiberErr.Message
			key = "HTTP_ERROR"
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("Unhandled HTTP error", "status", status, "error", err)
		}

		return c.Status(status).JSON(fiber.Map{
			"message":   message,
			"errorKey":  key,
			"requestId": utils.GetRequestIDOrDefault(c.UserContext(), ""),
		})
	}
}
