package di

import (
	"context"
	"errors"

	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/handler"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/middleware"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/repository"
	"github.com/yehezkieldio/virtualqueue/apps/api-service/internal/service"
	"github.com/yehezkieldio/virtualqueue/pkg/config"
	"github.com/yehezkieldio/virtualqueue/pkg/database"
	"github.com/yehezkieldio/virtualqueue/pkg/logger"
	pkgmw "github.com/yehezkieldio/virtualqueue/pkg/middleware"
	"github.com/yehezkieldio/virtualqueue/pkg/redis"
)

// Container holds all dependencies for the api service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	UserRepo    repository.UserRepository
	SessionRepo repository.SessionRepository
	Revocations repository.RevocationStore

	// Services
	TokenCodec  service.TokenCodec
	Events      service.AuthEventPublisher
	AuthService service.AuthService
	UserService service.UserService

	// Handlers
	Cookies       *middleware.Cookies
	HealthHandler *handler.HealthHandler
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler

	log *logger.Logger
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	DB     *database.PostgresDB
	Redis  *redis.Client
	// Events defaults to a no-op publisher
	Events service.AuthEventPublisher
	Log    *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	log := cfg.Log
	if log == nil {
		log = logger.Get()
	}
	events := cfg.Events
	if events == nil {
		events = service.NewNoOpAuthEventPublisher()
	}
	appCfg := cfg.Config

	c := &Container{
		DB:     cfg.DB,
		Redis:  cfg.Redis,
		Events: events,
		log:    log,
	}

	// Repositories
	c.UserRepo = repository.NewPostgresUserRepository(c.DB.Pool())
	c.SessionRepo = repository.NewPostgresSessionRepository(c.DB.Pool())
	c.Revocations = repository.NewRedisRevocationStore(c.Redis)

	// Services
	c.TokenCodec = service.NewTokenCodec(appCfg.JWT.Secret)
	c.AuthService = service.NewAuthService(
		c.UserRepo,
		c.SessionRepo,
		c.Revocations,
		c.TokenCodec,
		c.Events,
		service.AuthServiceConfig{
			AccessTokenTTL:    appCfg.JWT.AccessTokenTTL,
			RefreshTokenTTL:   appCfg.JWT.RefreshTokenTTL,
			RotationThreshold: appCfg.JWT.RotationThreshold,
		},
		log,
	)
	c.UserService = service.NewUserService(
		c.UserRepo,
		c.SessionRepo,
		service.UserServiceConfig{Environment: appCfg.App.Environment},
		log,
	)

	// Handlers
	c.Cookies = middleware.NewCookies(appCfg.IsProduction(), appCfg.JWT.AccessTokenTTL, appCfg.JWT.RefreshTokenTTL)
	c.HealthHandler = handler.NewHealthHandler(appCfg.App.Name, c.DB, c.Redis)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService, c.UserRepo, c.Cookies, log)
	c.UserHandler = handler.NewUserHandler(c.UserService, log)

	return c
}

// Routes returns the route table for handler.RegisterRoutes
func (c *Container) Routes() handler.Routes {
	return handler.Routes{
		Auth:          c.AuthHandler,
		Users:         c.UserHandler,
		Health:        c.HealthHandler,
		Authenticator: c.AuthService,
		UserLookup:    c.UserRepo,
		Cookies:       c.Cookies,
		Log:           c.log,
		Idempotency:   pkgmw.Idempotency(pkgmw.IdempotencyConfig{Redis: c.Redis}),
	}
}

// Close drains background work and releases clients in reverse order of construction
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.AuthService.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.Events.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Redis.Close(); err != nil {
		errs = append(errs, err)
	}
	c.DB.Close()
	return errors.Join(errs...)
}
