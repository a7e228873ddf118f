package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/anemometer/cmd/meter/app"
	"github.com/roman-kulish/anemometer/internal/config"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		profile    string
		duration   config.Duration
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&profile, "profile", os.Getenv("ANEMOMETER_PROFILE"), "Configuration profile to apply")
	flag.TextVar(&duration, "duration", config.Duration(0), "Stop the measurement after this duration, e.g. 1m")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath, profile)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}
	if duration > 0 {
		cfg.Settings.SessionDuration = duration
	}

	if err = logLevel.UnmarshalText([]byte(cfg.Settings.LogLevel)); err != nil {
		logger.Warn("invalid log level, using INFO", slog.String("level", cfg.Settings.LogLevel))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, cfg, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
