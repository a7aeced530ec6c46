// Package config assembles runtime settings for the scripture CLI and the
// scriptured daemon.
//
// Values are layered: built-in defaults, then an optional JSON or YAML file
// named with -c/-config, then individual command-line flags. Later layers
// win.
package config

import (
	"os"
	"time"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/cloudsync"
	"github.com/scriptureforge/offline/internal/history"
	"github.com/scriptureforge/offline/internal/ratelimit"
)

type Config struct {
	DatabasePath string
	StorageQuota int64

	GRPCAddr  string
	SecretKey string

	LogLevel  string
	LogFormat string

	RateLimitMax        int
	RateLimitWindow     time.Duration
	RateLimitMaxEntries int

	HistoryKey string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
	SyncInterval   time.Duration
}

// LoadDefaults populates c with defaults. The OpenAI key is taken from
// OPENAI_API_KEY when set.
func (c *Config) LoadDefaults() {
	rl := ratelimit.DefaultConfig()

	c.DatabasePath = "scripture.db"
	c.StorageQuota = 0
	c.GRPCAddr = "127.0.0.1:50051"
	c.SecretKey = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.RateLimitMax = rl.Max
	c.RateLimitWindow = rl.Window
	c.RateLimitMaxEntries = rl.MaxEntries
	c.HistoryKey = history.DefaultKey
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIBaseURL = ""
	c.OpenAIModel = ai.DefaultModel
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3AccessKey = ""
	c.S3SecretKey = ""
	c.SyncInterval = 5 * time.Minute
}

// LoadConfig builds a Config from defaults, the config file and flags found
// in args (usually os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) RateLimit() ratelimit.Config {
	return ratelimit.Config{
		Max:        c.RateLimitMax,
		Window:     c.RateLimitWindow,
		MaxEntries: c.RateLimitMaxEntries,
	}
}

func (c *Config) AI() ai.Config {
	return ai.Config{
		APIKey:  c.OpenAIAPIKey,
		BaseURL: c.OpenAIBaseURL,
		Model:   c.OpenAIModel,
	}
}

// AIEnabled reports whether an OpenAI-compatible key is configured.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) S3() cloudsync.S3Config {
	return cloudsync.S3Config{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
	}
}
