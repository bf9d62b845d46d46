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
	"github.com/orqestra/campaign-hub/internal/service/campaign"
	"github.com/orqestra/campaign-hub/internal/storage"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetService("campaigns")
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

	store, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("object store: %v", err)
	}

	svc := campaign.NewService(postgres.NewCampaignRepo(db))
	h := campaign.NewHandler(svc, store, cfg.Campaigns.MaxUploadBytes)

	addr := fmt.Sprintf("%s:%d", cfg.Campaigns.Server.GetHost(), cfg.Campaigns.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("campaigns listening", "addr", addr)
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
	logger.Info("campaigns stopped")
}
