package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/auth"
	"github.com/scriptureforge/offline/internal/config"
	"github.com/scriptureforge/offline/internal/cloudsync"
	"github.com/scriptureforge/offline/internal/history"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/ratelimit"
	"github.com/scriptureforge/offline/internal/repositories/metadata"
	"github.com/scriptureforge/offline/internal/services"
	"github.com/scriptureforge/offline/internal/store"
)

// localCaller is the rate limit identifier used before login.
const localCaller = "local"

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *store.DB
	content     services.ContentService
	annotations services.AnnotationService
	history     *history.Manager
	session     *auth.Session
	responder   ai.Responder
	limiter     *ratelimit.Limiter
	pusher      *cloudsync.Pusher
	reader      *bufio.Reader
	out         io.Writer
	language    string

	syncMu     sync.Mutex
	stopSync   context.CancelFunc
	syncDoneCh chan struct{}
}

// NewApp opens the offline store named in c and wires every component the
// REPL needs. Call Close when done.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := store.Open(ctx, c.DatabasePath, store.WithQuota(c.StorageQuota), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var (
		translator ai.Translator = ai.NopTranslator{}
		responder  ai.Responder
	)
	if c.AIEnabled() {
		translator = ai.NewOpenAITranslator(c.AI(), logger)
		responder = ai.NewOpenAIResponder(c.AI(), logger)
	}

	annotations := services.NewAnnotationService(db, logger)
	meta := metadata.NewSQLiteRepository(db.SQL())

	var objects cloudsync.ObjectStore
	if c.S3Bucket != "" {
		client, err := cloudsync.NewS3Client(ctx, c.S3())
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		objects = client
	}

	session := &auth.Session{}
	hm, err := history.NewManager(ctx, meta, session,
		history.WithKey(c.HistoryKey), history.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		content:     services.NewContentService(db, translator, logger),
		annotations: annotations,
		history:     hm,
		session:     session,
		responder:   responder,
		limiter:     ratelimit.New(c.RateLimit()),
		pusher:      cloudsync.NewPusher(objects, c.S3Bucket, annotations, meta, logger),
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		language:    ai.SourceLanguage,
	}, nil
}

// Run blocks in the REPL until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	go a.limiter.Run(ctx)

	fmt.Fprintln(a.out, "Scripture offline CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close stops background sync and closes the store.
func (a *App) Close() error {
	a.stopAutoSync()
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

func (a *App) getStatus() string {
	s := a.language
	if a.isLoggedIn() {
		s = a.session.UserID() + " " + s
	}
	if c := a.history.Current(); c != nil {
		s += " #" + c.ID
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) callerID() string {
	if a.isLoggedIn() {
		return "user:" + a.session.UserID()
	}
	return localCaller
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
