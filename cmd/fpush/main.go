package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gsanchietti/fpush/internal/config"
	"github.com/gsanchietti/fpush/internal/demo"
	"github.com/gsanchietti/fpush/internal/logging"
	"github.com/gsanchietti/fpush/internal/metrics"
	"github.com/gsanchietti/fpush/internal/push"
	"github.com/gsanchietti/fpush/internal/supervisor"
)

const defaultSettingsPath = "./settings.json"

func main() {
	flag.Parse()

	settingsPath := flag.Arg(0)
	if settingsPath == "" {
		settingsPath = defaultSettingsPath
	}

	cfg, err := config.LoadConfigFromFile(settingsPath)
	if err != nil {
		log.Fatalf("failed loading config %s: %v", settingsPath, err)
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}
	if err := cfg.Check(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	cleanup, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer cleanup()

	logging.Get().Info().Str("settings", settingsPath).Msg("configuration loaded")
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Str("warning", w).Msg("config validation")
	}

	// Any configured backend that cannot be constructed is fatal: running
	// with a partially initialized backend would silently drop
	// notifications.
	dispatcher, err := push.NewDispatcher(cfg)
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("failed to initialize push backends")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startDemoServer()
	startMetrics(ctx, cfg)

	supervisor.New(cfg, dispatcher).Run(ctx)
	logging.Get().Info().Msg("shutting down")
}

// startDemoServer runs the canned /fetch_messages endpoint. Its lifecycle
// is independent of the push core.
func startDemoServer() {
	bind := os.Getenv("HTTP_BIND")
	if bind == "" {
		bind = "127.0.0.1:8080"
	}
	go func() {
		if err := demo.ListenAndServe(bind); err != nil {
			logging.Get().Error().Err(err).Msg("demo http server stopped")
		}
	}()
}

func startMetrics(ctx context.Context, cfg *config.Config) {
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.PromHandler())
		mux.Handle("/stats", metrics.JSONHandler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		go func() {
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logging.Get().Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(ctx, cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}
