package main

import (
	"github.com/labstack/echo/v4"

	"github.com/taskops/taskboard/internal/infrastructure/httpserver"
	"github.com/taskops/taskboard/internal/middleware"
)

// SetupRoutes configures all API routes and the middleware chain.
func SetupRoutes(c *Container) *httpserver.Router {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	routerConfig := httpserver.RouterConfig{
		Logger: c.Logger,
		AuthMiddleware: middleware.Auth(middleware.AuthConfig{
			Logger:         c.Logger,
			TokenValidator: c.TokenValidator,
			SkipPaths: []string{
				"/health",
				"/ready",
			},
		}),
		CORSConfig:     middleware.DefaultCORSConfig(),
		LoggingConfig:  middleware.LoggingConfig{Logger: c.Logger, SkipPaths: []string{"/health", "/ready"}},
		RecoveryConfig: middleware.RecoveryConfig{Logger: c.Logger, StackSize: middleware.DefaultStackSize},
		APIPrefix:      httpserver.DefaultAPIPrefix,
	}

	router := httpserver.NewRouter(e, routerConfig)

	router.RegisterHealthEndpoints(c)

	router.RegisterAll(
		c.TaskHandler,
		c.UserHandler,
	)

	return router
}
