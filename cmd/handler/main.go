package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/api"
	"github.com/migueljbento/percenseo/internal/app"
	"github.com/migueljbento/percenseo/internal/config"
	"github.com/migueljbento/percenseo/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", ""), "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	container, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())
	lg := container.Logger.Named("handler")

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	handlerSet, err := container.HandlerSet(ctx)
	if err != nil {
		log.Fatalf("failed to create handlers: %v", err)
	}

	server := api.NewServer(cfg.HTTP, handlerSet)
	lg.Info("starting result handler", zap.Int("port", cfg.HTTP.Port))
	if err := server.Start(ctx); err != nil {
		lg.Error("server terminated", zap.Error(err))
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
