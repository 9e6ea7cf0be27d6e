package auth

import (
	"context"
	"fmt"

	authhttp "filestore/internal/auth/adapter/http"
	"filestore/internal/auth/adapter/persistence/mongodb"
	"filestore/internal/auth/adapter/security"
	"filestore/internal/auth/config"
	"filestore/internal/auth/domain/repository"
	"filestore/internal/auth/usecase"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuthModule represents the complete authentication module
type AuthModule struct {
	repository repository.UserRepository
	tokenSvc   repository.TokenService
	usecase    usecase.AuthUsecaseInterface
	handler    *authhttp.AuthHTTPHandler
	middleware *authhttp.AuthMiddleware
	config     *config.Config
}

// NewAuthModule creates a new authentication module instance
func NewAuthModule(ctx context.Context, db *mongo.Database, bus *eventbus.EventBus, cfg *config.Config, log logger.Logger) (*AuthModule, error) {
	if cfg == nil {
		loaded, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load auth config: %w", err)
		}
		cfg = loaded
	}

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create user repository: %w", err)
	}

	tokenSvc, err := security.NewJWTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	authUsecase := usecase.NewAuthUsecase(userRepo, tokenSvc, bus, log)
	handler := authhttp.NewAuthHTTPHandler(authUsecase, cfg)
	middleware := authhttp.NewAuthMiddleware(authUsecase, cfg.CookieName)

	return &AuthModule{
		repository: userRepo,
		tokenSvc:   tokenSvc,
		usecase:    authUsecase,
		handler:    handler,
		middleware: middleware,
		config:     cfg,
	}, nil
}

// RegisterRoutes registers authentication routes with the provided router
func (am *AuthModule) RegisterRoutes(router fiber.Router) {
	am.handler.RegisterRoutes(router, am.middleware)
}

// GetUsecase returns the auth usecase for external access
func (am *AuthModule) GetUsecase() usecase.AuthUsecaseInterface {
	return am.usecase
}

// GetMiddleware returns the auth middleware
func (am *AuthModule) GetMiddleware() *authhttp.AuthMiddleware {
	return am.middleware
}

// Stop performs cleanup when the module is shut down
func (am *AuthModule) Stop() error {
	return nil
}
