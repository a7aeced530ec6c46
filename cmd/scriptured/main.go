package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/scriptureforge/offline/internal/auth"
	"github.com/scriptureforge/offline/internal/config"
	"github.com/scriptureforge/offline/internal/flagx"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/server"
)

func main() {
	args := os.Args[1:]

	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// -issue-token prints a bearer token for the CLI's login command and exits.
	if uid, ttl := tokenFlags(args); uid != "" {
		tok, err := auth.GenerateToken(uid, []byte(cfg.SecretKey), ttl)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(tok)
		return
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	ctx := context.Background()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func tokenFlags(args []string) (string, time.Duration) {
	var (
		uid string
		ttl time.Duration
	)
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&uid, "issue-token", "", "print a token for this user id and exit")
	fs.DurationVar(&ttl, "token-ttl", 30*24*time.Hour, "validity of issued tokens")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-issue-token", "-token-ttl"}))
	return uid, ttl
}
