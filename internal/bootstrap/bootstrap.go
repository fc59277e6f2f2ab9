// Package bootstrap provides dependency initialization for the Cyn voice API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/config"
	"github.com/maauso/cyn-api/internal/environment"
	"github.com/maauso/cyn-api/internal/observability"
	"github.com/maauso/cyn-api/internal/sample"
	"github.com/maauso/cyn-api/internal/server"
	"github.com/maauso/cyn-api/internal/storage"
	"github.com/maauso/cyn-api/internal/trainer"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Resolver *environment.Resolver
	Metrics  *observability.Metrics
	Samples  *sample.Service
	Trainer  *trainer.Trainer
	Storage  storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	resolver, err := environment.NewResolver(environment.Options{
		Restricted: cfg.Restricted(),
		BaseDir:    cfg.BaseDir,
		ScratchDir: cfg.ScratchDir,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create environment resolver: %w", err)
	}

	store, err := initStorage(cfg, resolver, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	tool := audio.NewFFmpegTool(cfg.FFmpegPath,
		audio.WithFFprobePath(cfg.FFprobePath),
		audio.WithTimeout(cfg.ToolTimeout),
		audio.WithObserver(metrics.ObserveTool),
	)

	return &Dependencies{
		Resolver: resolver,
		Metrics:  metrics,
		Samples:  sample.NewService(tool, resolver, logger, sample.WithRecorder(metrics)),
		Trainer:  trainer.New(resolver, logger),
		Storage:  store,
	}, nil
}

// Handler builds the HTTP handler serving the API.
func (d *Dependencies) Handler(cfg *config.Config, logger *slog.Logger) *server.Handlers {
	return server.NewHandlers(d.Samples, d.Trainer, d.Storage, logger,
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	)
}

// initStorage creates the appropriate storage backend based on configuration.
// Uploads are staged in the resolver's uploads location.
func initStorage(cfg *config.Config, resolver *environment.Resolver, logger *slog.Logger) (storage.Storage, error) {
	uploads, err := resolver.EnsureWritableDirectory(resolver.Resolve(environment.Uploads))
	if err != nil {
		return nil, fmt.Errorf("prepare uploads directory: %w", err)
	}

	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(uploads, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("uploads_dir", uploads),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(uploads)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("uploads_dir", uploads),
	)
	return localStore, nil
}
