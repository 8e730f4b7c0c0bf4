// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	taskapp "github.com/taskops/taskboard/internal/application/task"
	userapp "github.com/taskops/taskboard/internal/application/user"
	"github.com/taskops/taskboard/internal/config"
	httphandler "github.com/taskops/taskboard/internal/handler/http"
	"github.com/taskops/taskboard/internal/infrastructure/auth"
	"github.com/taskops/taskboard/internal/infrastructure/cache"
	"github.com/taskops/taskboard/internal/infrastructure/httpserver"
	mongodbinfra "github.com/taskops/taskboard/internal/infrastructure/mongodb"
	"github.com/taskops/taskboard/internal/infrastructure/repository/mongodb"
	"github.com/taskops/taskboard/internal/middleware"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies and manages their lifecycle.
// It implements httpserver.HealthChecker for the health endpoints.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB *mongo.Client
	Redis   *redis.Client

	// Repositories
	TaskRepo *mongodb.MongoTaskRepository
	UserRepo *mongodb.MongoUserRepository

	// Application services
	TaskService    *taskapp.Service
	TaskAggregator *taskapp.Aggregator
	UserService    *userapp.Service

	// HTTP handlers
	TaskHandler *httphandler.TaskHandler
	UserHandler *httphandler.UserHandler

	// Auth
	TokenValidator middleware.TokenValidator
}

var _ httpserver.HealthChecker = (*Container)(nil)

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer creates the dependency injection container.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.setupInfrastructure(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	c.setupRepositories()

	if err := c.setupServices(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup services: %w", err)
	}

	c.setupHTTPHandlers()

	return c, nil
}

func (c *Container) setupInfrastructure() error {
	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setupMongoDB(ctx); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}

	if c.Config.Cache.Enabled {
		if err := c.setupRedis(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}

func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.MongoDB = client

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	db := client.Database(c.Config.MongoDB.Database)
	indexCtx, indexCancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer indexCancel()

	if indexErr := mongodbinfra.EnsureIndexes(indexCtx, db); indexErr != nil {
		return fmt.Errorf("failed to create indexes: %w", indexErr)
	}

	c.Logger.InfoContext(ctx, "MongoDB indexes ensured")

	return nil
}

func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

func (c *Container) setupRepositories() {
	db := c.MongoDB.Database(c.Config.MongoDB.Database)

	c.TaskRepo = mongodb.NewMongoTaskRepository(
		db.Collection(mongodb.TasksCollection),
		mongodb.WithTaskRepoLogger(c.Logger),
	)
	c.UserRepo = mongodb.NewMongoUserRepository(
		db.Collection(mongodb.UsersCollection),
		mongodb.WithUserRepoLogger(c.Logger),
	)
}

func (c *Container) setupServices() error {
	var statsCache taskapp.StatsCache
	if c.Redis != nil {
		statsCache = cache.NewRedisStatsCache(c.Redis, c.Config.Cache.StatsTTL)
	}

	c.TaskService = taskapp.NewService(taskapp.ServiceConfig{
		Repo:      c.TaskRepo,
		Directory: c.UserRepo,
		Cache:     statsCache,
		Logger:    c.Logger,
	})
	c.TaskAggregator = taskapp.NewAggregator(taskapp.AggregatorConfig{
		Repo:      c.TaskRepo,
		Directory: c.UserRepo,
		Cache:     statsCache,
		Logger:    c.Logger,
	})
	c.UserService = userapp.NewService(c.UserRepo, c.Logger)

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		Secret: c.Config.Auth.JWTSecret,
		Issuer: c.Config.Auth.Issuer,
		Leeway: c.Config.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("jwt validator: %w", err)
	}
	c.TokenValidator = validator

	return nil
}

func (c *Container) setupHTTPHandlers() {
	c.TaskHandler = httphandler.NewTaskHandler(c.TaskService, c.TaskAggregator)
	c.UserHandler = httphandler.NewUserHandler(c.UserService)
}

// IsReady reports whether all infrastructure components can serve traffic.
func (c *Container) IsReady(ctx context.Context) bool {
	if c.MongoDB == nil {
		return false
	}
	if err := c.MongoDB.Ping(ctx, nil); err != nil {
		c.Logger.WarnContext(ctx, "mongodb health check failed", slog.String("error", err.Error()))
		return false
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			c.Logger.WarnContext(ctx, "redis health check failed", slog.String("error", err.Error()))
			return false
		}
	}

	return true
}

// GetHealthStatus returns the per-component health status.
func (c *Container) GetHealthStatus(ctx context.Context) []httpserver.ComponentStatus {
	var components []httpserver.ComponentStatus

	mongoStatus := httpserver.ComponentStatus{Name: "mongodb", Status: httpserver.StatusHealthy}
	if c.MongoDB == nil {
		mongoStatus.Status = httpserver.StatusNotReady
		mongoStatus.Message = "not initialized"
	} else if err := c.MongoDB.Ping(ctx, nil); err != nil {
		mongoStatus.Status = httpserver.StatusNotReady
		mongoStatus.Message = err.Error()
	}
	components = append(components, mongoStatus)

	if c.Redis != nil {
		redisStatus := httpserver.ComponentStatus{Name: "redis", Status: httpserver.StatusHealthy}
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			redisStatus.Status = httpserver.StatusNotReady
			redisStatus.Message = err.Error()
		}
		components = append(components, redisStatus)
	}

	return components
}

// Close releases all container resources.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources...")

	var errs []error

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		} else {
			c.Logger.Debug("redis connection closed")
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		} else {
			c.Logger.Debug("mongodb connection closed")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.Logger.Info("all container resources closed")
	return nil
}
