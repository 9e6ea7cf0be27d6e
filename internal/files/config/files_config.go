package config

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
)

// FilesConfig holds all configuration for the files module.
type FilesConfig struct {
	MongoDBURI   string `env:"MONGODB_URI"`
	DatabaseName string `env:"MONGODB_DATABASE" envDefault:"filestore"`

	// ConverterURL is the base URL of the external PDF conversion service.
	// The module POSTs multipart bodies to {ConverterURL}/convert.
	ConverterURL     string        `env:"PDF_CONVERTER_URL"`
	ConverterTimeout time.Duration `env:"PDF_CONVERTER_TIMEOUT" envDefault:"45s"`

	// MaxUploadSize caps the request body size in bytes. Default 50 MiB.
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"52428800"`

	// ScratchDir is where incoming uploads are written before classification.
	// Empty means the OS temp directory.
	ScratchDir string `env:"UPLOAD_SCRATCH_DIR"`

	Redis RedisConfig
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*FilesConfig, error) {
	cfg := &FilesConfig{}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load files configuration from environment: " + err.Error())
	}

	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.New("failed to load redis configuration from environment: " + err.Error())
	}

	if cfg.MongoDBURI == "" {
		return nil, errors.New("MONGODB_URI environment variable is not set")
	}
	if cfg.ConverterURL == "" {
		return nil, errors.New("PDF_CONVERTER_URL environment variable is not set")
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 * 1024 * 1024
	}
	if cfg.ConverterTimeout <= 0 {
		cfg.ConverterTimeout = 45 * time.Second
	}

	return cfg, nil
}

// DefaultFilesConfig returns a FilesConfig with default values.
func DefaultFilesConfig() *FilesConfig {
	return &FilesConfig{
		MongoDBURI:       "mongodb://localhost:27017", // Default for local development
		DatabaseName:     "filestore",
		ConverterURL:     "http://localhost:9090",
		ConverterTimeout: 45 * time.Second,
		MaxUploadSize:    50 * 1024 * 1024,
		ScratchDir:       os.TempDir(),
		Redis:            DefaultRedisConfig(),
	}
}
