// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
	// ErrS3BucketRequired is returned when S3_REGION is set without S3_BUCKET.
	ErrS3BucketRequired = errors.New("config: S3_BUCKET is required when S3_REGION is set")
	// ErrInvalidToolTimeout is returned when TOOL_TIMEOUT is not positive.
	ErrInvalidToolTimeout = errors.New("config: TOOL_TIMEOUT must be positive")
	// ErrInvalidUploadLimit is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidUploadLimit = errors.New("config: MAX_UPLOAD_MB must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=3000" json:"port"`

	// Filesystem settings
	BaseDir    string `env:"BASE_DIR" json:"base_dir,omitempty"` // Empty means the working directory
	ScratchDir string `env:"SCRATCH_DIR, default=/tmp" json:"scratch_dir"`

	// Deployment detection
	Vercel    string `env:"VERCEL" json:"vercel,omitempty"`
	ServerEnv string `env:"SERVER_ENV" json:"server_env,omitempty"`

	// External tools
	FFmpegPath  string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string        `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	ToolTimeout time.Duration `env:"TOOL_TIMEOUT, default=2m" json:"tool_timeout"`

	// Upload settings
	MaxUploadMB int `env:"MAX_UPLOAD_MB, default=50" json:"max_upload_mb"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Restricted reports whether the deployment only allows writes under ScratchDir.
func (c *Config) Restricted() bool {
	return c.Vercel == "1" || strings.EqualFold(c.ServerEnv, "vercel")
}

// MaxUploadBytes returns the multipart body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper is Load with an explicit variable source.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	if c.S3Region != "" && c.S3Bucket == "" {
		return ErrS3BucketRequired
	}
	if c.ToolTimeout <= 0 {
		return ErrInvalidToolTimeout
	}
	if c.MaxUploadMB <= 0 {
		return ErrInvalidUploadLimit
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, BaseDir: %s, ScratchDir: %s, Restricted: %t, FFmpegPath: %s, FFprobePath: %s, ToolTimeout: %s, MaxUploadMB: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.BaseDir,
		c.ScratchDir,
		c.Restricted(),
		c.FFmpegPath,
		c.FFprobePath,
		c.ToolTimeout,
		c.MaxUploadMB,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
