// Package server wires and runs the scriptured daemon: the offline store,
// the content cache on top of it, the request rate limiter and the local
// gRPC endpoint.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/config"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/ratelimit"
	"github.com/scriptureforge/offline/internal/services"
	"github.com/scriptureforge/offline/internal/store"

	gs "github.com/scriptureforge/offline/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *store.DB
	content   services.ContentService
	responder ai.Responder
	limiter   *ratelimit.Limiter
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := store.Open(ctx, c.DatabasePath, store.WithQuota(c.StorageQuota), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var (
		translator ai.Translator = ai.NopTranslator{}
		responder  ai.Responder
	)
	if c.AIEnabled() {
		translator = ai.NewOpenAITranslator(c.AI(), logger)
		responder = ai.NewOpenAIResponder(c.AI(), logger)
	} else {
		logger.Warn(ctx, "no OpenAI key configured, translation disabled")
	}

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		content:   services.NewContentService(db, translator, logger),
		responder: responder,
		limiter:   ratelimit.New(c.RateLimit()),
	}, nil
}

// Run serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then stops gracefully and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "closing store", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.content, app.responder, app.limiter, app.config.SecretKey)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	return nil
}
