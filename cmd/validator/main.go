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

	"github.com/redis/go-redis/v9"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/llm"
	"github.com/orqestra/campaign-hub/internal/orchestrator"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
	"github.com/orqestra/campaign-hub/internal/repository/postgres"
	"github.com/orqestra/campaign-hub/internal/validator/brand"
	"github.com/orqestra/campaign-hub/internal/validator/legal"
	"github.com/orqestra/campaign-hub/internal/validator/specs"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetService("validator")
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

	model, err := llm.NewBedrock(ctx, cfg.Bedrock)
	if err != nil {
		log.Fatalf("bedrock client: %v", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	agent, err := legal.New(ctx, cfg.Validator, model, redisClient)
	if err != nil {
		log.Fatalf("legal agent: %v", err)
	}

	specsValidator := specs.New(specs.NewToolSource(
		cfg.Validator.SpecsServiceURL, nil, specs.NewStaticSource(cfg.Specs)))

	orch := orchestrator.New(
		specsValidator,
		brand.New(cfg.Brand),
		agent,
		orchestrator.NewContentClient(cfg.Validator.ContentServiceURL, nil),
		orchestrator.NewRenderClient(cfg.Validator.RenderServiceURL, nil),
		postgres.NewValidationRepo(db),
		cfg.Validator.MaxImageBytes,
		cfg.Validator.TotalTimeout(),
	)
	h := orchestrator.NewHandler(orch, model)

	addr := fmt.Sprintf("%s:%d", cfg.Validator.Server.GetHost(), cfg.Validator.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("validator listening", "addr", addr)
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
	logger.Info("validator stopped")
}
