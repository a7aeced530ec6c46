package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scriptureforge/offline/internal/flagx"
	"github.com/scriptureforge/offline/internal/timex"
)

// fileConfig is the on-disk shape of the config file. It is seeded from the
// current Config before decoding, so keys missing from the file keep their
// earlier value.
type fileConfig struct {
	DatabasePath string `json:"database_path" yaml:"database_path"`
	StorageQuota int64  `json:"storage_quota" yaml:"storage_quota"`

	GRPCAddr  string `json:"grpc_addr" yaml:"grpc_addr"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	RateLimitMax        int            `json:"rate_limit_max" yaml:"rate_limit_max"`
	RateLimitWindow     timex.Duration `json:"rate_limit_window" yaml:"rate_limit_window"`
	RateLimitMaxEntries int            `json:"rate_limit_max_entries" yaml:"rate_limit_max_entries"`

	HistoryKey string `json:"history_key" yaml:"history_key"`

	OpenAIAPIKey  string `json:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL string `json:"openai_base_url" yaml:"openai_base_url"`
	OpenAIModel   string `json:"openai_model" yaml:"openai_model"`

	S3Bucket       string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3AccessKey    string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	SyncInterval   timex.Duration `json:"sync_interval" yaml:"sync_interval"`
}

func newFileConfig(c *Config) fileConfig {
	return fileConfig{
		DatabasePath:        c.DatabasePath,
		StorageQuota:        c.StorageQuota,
		GRPCAddr:            c.GRPCAddr,
		SecretKey:           c.SecretKey,
		LogLevel:            c.LogLevel,
		LogFormat:           c.LogFormat,
		RateLimitMax:        c.RateLimitMax,
		RateLimitWindow:     timex.Duration{Duration: c.RateLimitWindow},
		RateLimitMaxEntries: c.RateLimitMaxEntries,
		HistoryKey:          c.HistoryKey,
		OpenAIAPIKey:        c.OpenAIAPIKey,
		OpenAIBaseURL:       c.OpenAIBaseURL,
		OpenAIModel:         c.OpenAIModel,
		S3Bucket:            c.S3Bucket,
		S3Region:            c.S3Region,
		S3BaseEndpoint:      c.S3BaseEndpoint,
		S3AccessKey:         c.S3AccessKey,
		S3SecretKey:         c.S3SecretKey,
		SyncInterval:        timex.Duration{Duration: c.SyncInterval},
	}
}

func (f fileConfig) apply(c *Config) {
	c.DatabasePath = f.DatabasePath
	c.StorageQuota = f.StorageQuota
	c.GRPCAddr = f.GRPCAddr
	c.SecretKey = f.SecretKey
	c.LogLevel = f.LogLevel
	c.LogFormat = f.LogFormat
	c.RateLimitMax = f.RateLimitMax
	c.RateLimitWindow = f.RateLimitWindow.Duration
	c.RateLimitMaxEntries = f.RateLimitMaxEntries
	c.HistoryKey = f.HistoryKey
	c.OpenAIAPIKey = f.OpenAIAPIKey
	c.OpenAIBaseURL = f.OpenAIBaseURL
	c.OpenAIModel = f.OpenAIModel
	c.S3Bucket = f.S3Bucket
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.S3AccessKey = f.S3AccessKey
	c.S3SecretKey = f.S3SecretKey
	c.SyncInterval = f.SyncInterval.Duration
}

// parseFile overlays cfg with the file named by -c/-config in args. Files
// ending in .yaml or .yml are decoded as YAML, anything else as JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc := newFileConfig(cfg)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}
