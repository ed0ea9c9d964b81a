//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/TubeTuner/internal/config"
	"github.com/himanishpuri/TubeTuner/pkg/logger"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
)

var (
	configPath     string
	port           int
	dbPath         string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML or TOML config file")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, resolved, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if allowedOrigins != "" {
		cfg.Server.AllowedOrigins = splitOrigins(allowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel())
	if resolved != "" {
		log.Infof("Loaded config from %s", resolved)
	}

	opts := append(cfg.ServiceOptions(), tubetuner.WithLogger(log.Named("tuner")))
	service, err := tubetuner.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:                cfg.Server.Port,
		DBPath:              cfg.Storage.DBPath,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		Environment:         cfg.Environment(),
		SimilarityThreshold: cfg.Engine.SimilarityThreshold,
		ToneDuration:        cfg.ToneDuration(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}

func splitOrigins(raw string) []string {
	if raw == "*" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
