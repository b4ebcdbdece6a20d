package router // package router wires HTTP routes to their handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/itportfolio/apptrack/internal/config"
	"github.com/itportfolio/apptrack/internal/handler"
	"github.com/itportfolio/apptrack/internal/middleware"
	"github.com/itportfolio/apptrack/internal/repository"
)

// RegisterRoutes registers routes that need no authentication at all.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the identity endpoints. Register and login live
// under /v1/auth behind the rate limiter; /v1/me requires a valid token
// and is the VerifyAndResolve surface clients hit on startup.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, users *repository.UserRepo, rdb *redis.Client, rl config.RateLimitConfig, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.Use(middleware.NewTokenBucket(rl, rdb))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	me := e.Group("/v1/me")
	me.Use(middleware.JWTAuth(jwtSecret, users))
	me.GET("", a.Me)
	me.PUT("", a.UpdateProfile)
}

// RegisterRegistry registers the application, phase and connected-service
// endpoints. Reads are public and served through the response cache; every
// write requires an authenticated operator.
func RegisterRegistry(
	e *echo.Echo,
	apps *handler.ApplicationHandler,
	phases *handler.PhaseHandler,
	services *handler.ConnectedServiceHandler,
	users *repository.UserRepo,
	rdb *redis.Client,
	cacheCfg config.CacheConfig,
	jwtSecret string,
) {
	// Public reads.
	pub := e.Group("/v1")
	pub.Use(middleware.NewRedisCache(cacheCfg, rdb))
	pub.GET("/applications", apps.List)
	pub.GET("/applications/:id", apps.Get)
	pub.GET("/applications/:id/phases", phases.List)
	pub.GET("/applications/:id/services", services.List)

	// Authenticated writes.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret, users))
	auth.POST("/applications", apps.Create)
	auth.PATCH("/applications/:id", apps.Rename)
	auth.DELETE("/applications/:id", apps.Delete)
	auth.POST("/applications/:id/phases", phases.Add)
	auth.PATCH("/phases/:id", phases.Update)
	auth.DELETE("/phases/:id", phases.Delete)
	auth.POST("/applications/:id/services", services.Add)
	auth.PATCH("/services/:id", services.Update)
	auth.DELETE("/services/:id", services.Delete)
}
