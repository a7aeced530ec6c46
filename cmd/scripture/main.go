package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/scriptureforge/offline/internal/client/cli"
	"github.com/scriptureforge/offline/internal/config"
	"github.com/scriptureforge/offline/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// REPL output owns stdout.
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
