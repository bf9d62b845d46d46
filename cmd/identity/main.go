package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
	"github.com/orqestra/campaign-hub/internal/repository/postgres"
	"github.com/orqestra/campaign-hub/internal/service/identity"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetService("identity")
	if cfg.IsProduction() {
		logger.SetRedactPII(true)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	tokens, err := identity.NewTokenIssuer(cfg.JWT.Secret, cfg.Identity.AccessTTL())
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}
	svc := identity.NewService(postgres.NewIdentityRepo(db), tokens,
		cfg.Identity.BcryptCost, cfg.Identity.RefreshTTL())
	h := identity.NewHandler(svc, cfg.Identity.CookieDomain,
		cfg.Identity.AccessTTL(), cfg.Identity.RefreshTTL(), cfg.IsProduction())

	addr := fmt.Sprintf("%s:%d", cfg.Identity.Server.GetHost(), cfg.Identity.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("identity listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	logger.Info("identity stopped")
}
