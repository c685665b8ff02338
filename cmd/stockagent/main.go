package main

import (
	"context"
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
	Once   bool   `long:"once" description:"Run a single polling cycle and exit (cron mode)"`
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

	if opts.Once {
		err = application.RunOnce(ctx)
	} else {
		err = application.RunAgent(ctx)
	}
	if err != nil {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}
