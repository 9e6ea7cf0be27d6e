package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"filestore/internal/auth"
	authconfig "filestore/internal/auth/config"
	"filestore/internal/files"
	filesconfig "filestore/internal/files/config"
	"filestore/internal/profile"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Container represents a dependency injection container with proper lifecycle management
type Container struct {
	mu        sync.RWMutex
	services  map[reflect.Type]interface{}
	factories map[reflect.Type]func() (interface{}, error)

	// Module instances
	AuthModule    *auth.AuthModule
	FilesModule   *files.FilesModule
	ProfileModule *profile.ProfileModule

	// Shared infrastructure
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	EventBus    *eventbus.EventBus
	Broadcaster streaming.Broadcaster

	// Configuration
	AuthConfig  *authconfig.Config
	FilesConfig *filesconfig.FilesConfig

	// Loggers: logrus for the request path, zap for the realtime subsystem
	Logger    logger.Logger
	ZapLogger *zap.Logger
}

// NewContainer creates a new DI container
func NewContainer(log logger.Logger, zlog *zap.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	if zlog == nil {
		zlog = zap.NewNop()
	}
	return &Container{
		services:  make(map[reflect.Type]interface{}),
		factories: make(map[reflect.Type]func() (interface{}, error)),
		EventBus:  eventbus.NewEventBus(log),
		Logger:    log,
		ZapLogger: zlog,
	}
}

// InitializeShared wires the infrastructure every module depends on: the
// Mongo database handle, the optional Redis client, and the in-memory
// broadcaster behind all realtime subscriptions.
func (c *Container) InitializeShared(mongoDB *mongo.Database, redisClient *redis.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.MongoDB = mongoDB
	c.RedisClient = redisClient
	c.Broadcaster = streaming.NewBroadcaster(c.ZapLogger)
}

// InitializeAuth initializes the authentication module
func (c *Container) InitializeAuth(ctx context.Context, authConfig *authconfig.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MongoDB == nil {
		return fmt.Errorf("shared infrastructure must be initialized before the auth module")
	}

	c.AuthConfig = authConfig
	authModule, err := auth.NewAuthModule(ctx, c.MongoDB, c.EventBus, authConfig, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create auth module: %w", err)
	}

	c.AuthModule = authModule
	return nil
}

// InitializeFiles initializes the file storage module
func (c *Container) InitializeFiles(filesConfig *filesconfig.FilesConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MongoDB == nil {
		return fmt.Errorf("shared infrastructure must be initialized before the files module")
	}

	c.FilesConfig = filesConfig
	filesModule, err := files.NewFilesModule(
		c.MongoDB, c.RedisClient, c.EventBus, c.Broadcaster, filesConfig, c.Logger, c.ZapLogger)
	if err != nil {
		return fmt.Errorf("failed to create files module: %w", err)
	}

	c.FilesModule = filesModule
	return nil
}

// InitializeProfile initializes the profile module. The profile event stream
// reuses the files module's Redis event store when one is configured.
func (c *Container) InitializeProfile() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MongoDB == nil {
		return fmt.Errorf("shared infrastructure must be initialized before the profile module")
	}

	var eventStore streaming.EventStore
	if c.FilesModule != nil {
		eventStore = c.FilesModule.EventStore
	}

	profileModule, err := profile.NewProfileModule(
		c.MongoDB, c.EventBus, c.Broadcaster, eventStore, c.Logger, c.ZapLogger)
	if err != nil {
		return fmt.Errorf("failed to create profile module: %w", err)
	}

	c.ProfileModule = profileModule
	return nil
}

// Register registers a service instance
func (c *Container) Register(service interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	serviceType := reflect.TypeOf(service)
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	c.services[serviceType] = service
	return nil
}

// RegisterFactory registers a factory function for a service
func (c *Container) RegisterFactory(serviceType reflect.Type, factory func() (interface{}, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[serviceType] = factory
	return nil
}

// Resolve resolves a service by type
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()

	if service, exists := c.services[serviceType]; exists {
		c.mu.RUnlock()
		return service, nil
	}

	if factory, exists := c.factories[serviceType]; exists {
		c.mu.RUnlock()

		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service: %w", err)
		}

		c.mu.Lock()
		c.services[serviceType] = service
		c.mu.Unlock()

		return service, nil
	}

	c.mu.RUnlock()
	return nil, fmt.Errorf("service of type %v not registered", serviceType)
}

// GetService is a generic helper for resolving services
func GetService[T any](c *Container) (T, error) {
	var zero T
	serviceType := reflect.TypeOf(zero)

	service, err := c.Resolve(serviceType)
	if err != nil {
		return zero, err
	}

	if typedService, ok := service.(T); ok {
		return typedService, nil
	}

	return zero, fmt.Errorf("service is not of expected type %T", zero)
}

// GetAuthModule returns the auth module instance
func (c *Container) GetAuthModule() *auth.AuthModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AuthModule
}

// GetFilesModule returns the files module instance
func (c *Container) GetFilesModule() *files.FilesModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.FilesModule
}

// GetProfileModule returns the profile module instance
func (c *Container) GetProfileModule() *profile.ProfileModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ProfileModule
}

// HealthCheck performs health checks on shared infrastructure
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.MongoDB != nil {
		if err := c.MongoDB.Client().Ping(ctx, nil); err != nil {
			return fmt.Errorf("MongoDB health check failed: %w", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("Redis health check failed: %w", err)
		}
	}

	return nil
}

// Cleanup performs cleanup of registered services in reverse initialization order
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if c.ProfileModule != nil {
		if err := c.ProfileModule.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop profile module: %w", err))
		}
		c.ProfileModule = nil
	}

	if c.FilesModule != nil {
		if err := c.FilesModule.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop files module: %w", err))
		}
		c.FilesModule = nil
	}

	if c.AuthModule != nil {
		if err := c.AuthModule.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop auth module: %w", err))
		}
		c.AuthModule = nil
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
		c.RedisClient = nil
	}

	for _, service := range c.services {
		if cleaner, ok := service.(interface{ Cleanup(context.Context) error }); ok {
			if err := cleaner.Cleanup(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to cleanup service: %w", err))
			}
		}
	}

	c.services = make(map[reflect.Type]interface{})
	c.factories = make(map[reflect.Type]func() (interface{}, error))

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close gracefully shuts down all services in the container with timeout
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		c.Logger.Warn("Cleanup errors during container close", "error", err)
	}
	return nil
}
