// Package ratelimit bounds how many AI-backed requests one caller may make
// per time window. It is an in-memory, single-process limiter; replicas do
// not share counters.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMax        = 20
	DefaultWindow     = 60 * time.Second
	DefaultMaxEntries = 10000
)

type Config struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the length of a counting window, starting at the first
	// request of the window.
	Window time.Duration
	// MaxEntries bounds the number of tracked callers.
	MaxEntries int
}

func DefaultConfig() Config {
	return Config{Max: DefaultMax, Window: DefaultWindow, MaxEntries: DefaultMaxEntries}
}

// Result is the outcome of CheckAndConsume. A denied request is a normal
// result, not an error.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	entries map[string]*entry
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	l := &Limiter{cfg: cfg, now: time.Now, entries: make(map[string]*entry)}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// CheckAndConsume counts one request for id. A window is over once the
// current time is strictly after its reset time.
func (l *Limiter) CheckAndConsume(id string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[id]
	if !ok || now.After(e.resetAt) {
		if !ok {
			l.makeRoom(now)
		}
		e = &entry{count: 1, resetAt: now.Add(l.cfg.Window)}
		l.entries[id] = e
		return Result{Allowed: true, Remaining: l.cfg.Max - 1, ResetAt: e.resetAt}
	}

	if e.count >= l.cfg.Max {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}
	e.count++
	return Result{Allowed: true, Remaining: l.cfg.Max - e.count, ResetAt: e.resetAt}
}

// makeRoom keeps the map under MaxEntries: expired entries go first, then
// the entry whose window ends soonest.
func (l *Limiter) makeRoom(now time.Time) {
	if len(l.entries) < l.cfg.MaxEntries {
		return
	}
	l.sweep(now)
	for len(l.entries) >= l.cfg.MaxEntries {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, e := range l.entries {
			if oldestID == "" || e.resetAt.Before(oldest) {
				oldestID, oldest = id, e.resetAt
			}
		}
		delete(l.entries, oldestID)
	}
}

// Sweep drops entries whose window has expired and returns how many.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweep(l.now())
}

func (l *Limiter) sweep(now time.Time) int {
	n := 0
	for id, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, id)
			n++
		}
	}
	return n
}

// Len reports the number of tracked callers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps once per window until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
