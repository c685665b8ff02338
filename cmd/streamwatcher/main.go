package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"StockAgent/internal/app"
	"StockAgent/internal/config"
	"StockAgent/internal/logging"
)

type options struct {
	Config string `short:"c" long:"config" env:"STOCK_AGENT_CONFIG" description:"Path to YAML configuration file"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	cfg := config.Load(opts.Config)
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.RunStream(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stream watcher stopped", "error", err)
		os.Exit(1)
	}
}
