package main // Entry point package

import (
	"context" // Context for startup deadlines
	"log"     // Logging library
	"time"    // Durations for token and cookie TTLs

	"github.com/joho/godotenv" // Loads .env files into the environment
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/database"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/queue"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/router"
	mailer "github.com/iliyamo/tour-booking/internal/service"
	"github.com/iliyamo/tour-booking/internal/utils"
)

func main() {
	// A missing .env is fine in deployed environments; variables arrive from
	// the process environment there.
	_ = godotenv.Load()
	cfg := config.Load()

	client, db, err := database.Open(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	idxCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(idxCtx, db); err != nil {
		cancel()
		log.Fatalf("ensure indexes: %v", err)
	}
	cancel()

	// Redis backs rate limiting and the response cache.  A nil client simply
	// disables both; the API degrades rather than refusing to start.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}

	// The email consumer runs for the lifetime of the process and reconnects
	// on broker failures.
	go queue.StartEmailConsumer()

	users := repository.NewUserRepo(db)
	tours := repository.NewTourRepo(db)
	reviews := repository.NewReviewRepo(db)

	tokens := utils.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTTTLMin)*time.Minute)
	cookieTTL := time.Duration(cfg.CookieTTLMin) * time.Minute

	deps := router.Deps{
		Health:  handler.NewHealthHandler(client),
		Auth:    handler.NewAuthHandler(users, tokens, mailer.Broker{}, cookieTTL, cfg.BcryptCost, cfg.Production()),
		Users:   handler.NewUserHandler(users),
		Tours:   handler.NewTourHandler(tours),
		Reviews: handler.NewReviewHandler(reviews),

		Protect:     middleware.Protect(tokens, users),
		CurrentUser: middleware.CurrentUser(tokens, users),
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:       middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.Handler(cfg.Env)
	router.Register(e, deps)

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
