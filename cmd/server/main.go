package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/itportfolio/apptrack/internal/config"
	"github.com/itportfolio/apptrack/internal/database"
	"github.com/itportfolio/apptrack/internal/handler"
	"github.com/itportfolio/apptrack/internal/queue"
	"github.com/itportfolio/apptrack/internal/repository"
	"github.com/itportfolio/apptrack/internal/router"
	"github.com/itportfolio/apptrack/internal/uploader"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables cache and rate limiting
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	apps := repository.NewApplicationRepo(db)
	phases := repository.NewPhaseRepo(db)
	services := repository.NewConnectedServiceRepo(db)

	var up uploader.Uploader
	if cfg.UploaderURL != "" {
		up = uploader.New(cfg.UploaderURL)
	}

	authH := handler.NewAuthHandler(cfg, users, up)
	appH := handler.NewApplicationHandler(apps)
	phaseH := handler.NewPhaseHandler(apps, phases)
	svcH := handler.NewConnectedServiceHandler(services)

	// Background consumer records registry activity; it reconnects on its
	// own and never takes the server down.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, users, rdb, config.LoadRateLimitConfig(), cfg.JWTSecret)
	router.RegisterRegistry(e, appH, phaseH, svcH, users, rdb, config.LoadCacheConfig(), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
