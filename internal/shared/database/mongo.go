package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filestore/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds configuration for the MongoDB connection
type MongoConfig struct {
	URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGODB_DATABASE" envDefault:"filestore"`

	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"30s"`

	// Connection pooling
	MaxPoolSize uint64 `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize uint64 `env:"MONGODB_MIN_POOL_SIZE" envDefault:"2"`
}

// MongoManager owns the MongoDB client and the service database handle
type MongoManager struct {
	client   *mongo.Client
	database *mongo.Database
	mu       sync.RWMutex
	logger   logger.Logger
	config   *MongoConfig
}

// NewMongoManager connects to MongoDB and verifies the connection with a ping
func NewMongoManager(ctx context.Context, config *MongoConfig, log logger.Logger) (*MongoManager, error) {
	if config == nil {
		config = &MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "filestore",
			ConnectTimeout: 30 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    2,
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(config.MaxPoolSize).
		SetMinPoolSize(config.MinPoolSize)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"database":      config.Database,
		"max_pool_size": config.MaxPoolSize,
	}).Info("Connected to MongoDB")

	return &MongoManager{
		client:   client,
		database: client.Database(config.Database),
		logger:   log,
		config:   config,
	}, nil
}

// Client returns the underlying MongoDB client
func (m *MongoManager) Client() *mongo.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Database returns the service database handle
func (m *MongoManager) Database() *mongo.Database {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.database
}

// HealthCheck pings the primary and reports connection health
func (m *MongoManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("mongo client not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (m *MongoManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	m.client = nil
	m.database = nil
	m.logger.Info("Closed MongoDB connection")
	return nil
}

// ValidateDatabaseName validates a MongoDB database name
func ValidateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name cannot be empty")
	}

	if len(name) > 63 {
		return fmt.Errorf("database name too long (max 63 characters)")
	}

	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '-' || char == '_') {
			return fmt.Errorf("database name contains invalid characters")
		}
	}

	return nil
}
