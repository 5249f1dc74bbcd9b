package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/kbupload/internal/client/cli"
	"github.com/dmitrijs2005/kbupload/internal/client/config"
	"github.com/dmitrijs2005/kbupload/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app := cli.NewApp(cfg, os.Stdout, logger)
	if err := app.Run(ctx, args); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "kbupload failed", "error", err)
		stop()
		os.Exit(1)
	}
}
