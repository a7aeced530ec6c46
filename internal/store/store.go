// Package store is the durable key-value layer of the offline content
// store: one SQLite database holding the verses, translations and
// user-content collections (plus a small metadata table), versioned with
// embedded goose migrations.
//
// Typed access lives in internal/repositories; this package owns opening,
// schema migration, atomic multi-collection wipes and usage accounting.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/scriptureforge/offline/internal/common"
	"github.com/scriptureforge/offline/internal/dbx"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/store/migrations"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Collection names a record collection.
type Collection string

const (
	CollectionVerses       Collection = "verses"
	CollectionTranslations Collection = "translations"
	CollectionUserContent  Collection = "user_content"
)

// AllCollections are the collections wiped by "erase all offline data".
var AllCollections = []Collection{CollectionVerses, CollectionTranslations, CollectionUserContent}

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

type DB struct {
	db     *sql.DB
	path   string
	quota  int64
	logger logging.Logger
}

type Option func(*DB)

// WithQuota sets the byte quota reported by Usage.
func WithQuota(bytes int64) Option {
	return func(s *DB) { s.quota = bytes }
}

func WithLogger(l logging.Logger) Option {
	return func(s *DB) { s.logger = l }
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema version. Opening an up-to-date database is a no-op.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	s := &DB{path: strings.TrimSpace(path), logger: logging.Nop()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "store")

	if s.path == "" {
		return nil, fmt.Errorf("%w: missing database path", common.ErrStorageUnavailable)
	}
	if s.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, s.path, err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers the way the single-threaded client expects.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if err := s.configure(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", common.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "store opened", "path", s.path)
	return s, nil
}

func (s *DB) configure(ctx context.Context) error {
	pragmas := []string{`PRAGMA busy_timeout = 5000`, `PRAGMA foreign_keys = ON`}
	if s.path != MemoryPath {
		pragmas = append(pragmas, `PRAGMA journal_mode = WAL`)
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *DB) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, l: s.logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

// Version reports the applied schema version.
func (s *DB) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// SQL exposes the underlying handle for repositories and transactions.
func (s *DB) SQL() *sql.DB {
	return s.db
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Clear deletes every record of the given collections in one transaction.
// Unknown collection names are rejected before anything is deleted.
func (s *DB) Clear(ctx context.Context, collections ...Collection) error {
	for _, c := range collections {
		if !c.valid() {
			return fmt.Errorf("%w: %q", common.ErrUnknownCollection, c)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, c := range collections {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+string(c)); err != nil {
				return fmt.Errorf("clear %s: %w", c, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "collections cleared", "collections", collections)
	return nil
}

func (c Collection) valid() bool {
	for _, known := range AllCollections {
		if c == known {
			return true
		}
	}
	return false
}

// Usage is the storage estimate of the database.
type Usage struct {
	Used       int64
	Quota      int64
	Percentage float64
}

func (s *DB) Usage(ctx context.Context) (Usage, error) {
	var pages, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
		return Usage{}, fmt.Errorf("%w: page_count: %w", common.ErrStorageUnavailable, err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return Usage{}, fmt.Errorf("%w: page_size: %w", common.ErrStorageUnavailable, err)
	}

	u := Usage{Used: pages * pageSize, Quota: s.quota}
	if u.Quota > 0 {
		u.Percentage = float64(u.Used) / float64(u.Quota) * 100
	}
	return u, nil
}

type gooseLogger struct {
	ctx context.Context
	l   logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	g.l.Error(g.ctx, msg)
	panic(msg)
}
