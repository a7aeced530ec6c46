package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/scriptureforge/offline/internal/flagx"
)

var knownFlags = []string{
	"-db", "-a", "-secret", "-log-level", "-log-format",
	"-rate-max", "-rate-window", "-history-key",
	"-openai-url", "-openai-model",
	"-s3-bucket", "-s3-region", "-s3-endpoint", "-sync-interval",
}

// parseFlags overlays cfg with the flags it recognises in args. Credentials
// for OpenAI and S3 are file-only.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to the offline database (\":memory:\" for a scratch store)")
	fs.StringVar(&cfg.GRPCAddr, "a", cfg.GRPCAddr, "address the daemon listens on")
	fs.StringVar(&cfg.SecretKey, "secret", cfg.SecretKey, "HMAC secret used to verify bearer tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	fs.IntVar(&cfg.RateLimitMax, "rate-max", cfg.RateLimitMax, "AI requests allowed per window")
	fs.DurationVar(&cfg.RateLimitWindow, "rate-window", cfg.RateLimitWindow, "rate limit window")
	fs.StringVar(&cfg.HistoryKey, "history-key", cfg.HistoryKey, "storage key of the conversation history")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-url", cfg.OpenAIBaseURL, "base URL of an OpenAI-compatible API")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "model used for translation and chat")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "bucket that receives synced annotations")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "custom S3 endpoint (MinIO, LocalStack)")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "interval of background sync")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
