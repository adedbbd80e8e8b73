// Package main is the entry point for the rainbow overlay.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/rainbow-overlay/internal/config"
	"github.com/Faultbox/rainbow-overlay/internal/host"
	"github.com/Faultbox/rainbow-overlay/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.SaveRequested() {
		path, err := cfg.Save()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Save error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("config written to", path)
		return
	}

	// Initialize logger; the terminal host owns stdout, so logs go to file only
	initLog := logger.Init
	if cfg.Host.Mode == config.ModeTerm {
		initLog = logger.InitForTerminal
	}
	if err := initLog(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Rainbow Overlay ===", zap.String("mode", cfg.Host.Mode))
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("overlay error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("overlay closed normally")
}

func run(ctx context.Context, cfg *config.Config) error {
	h, err := host.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}
	defer h.Close()

	if err := h.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
