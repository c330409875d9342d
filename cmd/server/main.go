package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/shoplite/auth-service/internal/auth"
	"github.com/shoplite/auth-service/internal/config"
	"github.com/shoplite/auth-service/internal/database"
	"github.com/shoplite/auth-service/internal/handler"
	"github.com/shoplite/auth-service/internal/mailer"
	"github.com/shoplite/auth-service/internal/queue"
	"github.com/shoplite/auth-service/internal/repository"
	"github.com/shoplite/auth-service/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; revocation checks fall back to SQL, rate limiting disabled")
	}

	accounts := repository.NewAccountRepo(db)
	revocations := repository.NewRevocationRepo(db)

	tokenTTL := time.Duration(cfg.AccessTTLMin) * time.Minute
	registry := auth.NewRegistry(revocations, rdb, tokenTTL)
	tokens := auth.NewTokenService(cfg.JWTSecret, tokenTTL)

	svc := auth.NewService(accounts, registry, tokens, mailer.NewPublisher(), auth.Config{
		BcryptCost:          cfg.BcryptCost,
		VerificationCodeTTL: cfg.VerificationCodeTTL,
		ResetCodeTTL:        cfg.ResetCodeTTL,
		ResetTokenTTL:       cfg.ResetTokenTTL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureSuperadmin(ctx, cfg.SuperadminName, cfg.SuperadminEmail, cfg.SuperadminPass); err != nil {
		log.Printf("seed: superadmin failed: %v", err)
	}
	cancel()

	// Background delivery of queued email requests.
	go func() {
		if err := queue.StartEmailConsumer(); err != nil {
			log.Printf("email-consumer: %v", err)
		}
	}()

	// Lazy cleanup of revocation rows whose tokens expired naturally.
	go func() {
		for range time.Tick(time.Hour) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := revocations.PruneExpired(ctx); err != nil {
				log.Printf("revocation: prune failed: %v", err)
			} else if n > 0 {
				log.Printf("revocation: pruned %d expired entries", n)
			}
			cancel()
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(svc), svc, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
