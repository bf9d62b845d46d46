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
	"github.com/orqestra/campaign-hub/internal/gateway"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetService("gateway")
	if cfg.IsProduction() {
		logger.SetRedactPII(true)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("build gateway: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Server.GetHost(), cfg.Gateway.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", addr)
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
	logger.Info("gateway stopped")
}
