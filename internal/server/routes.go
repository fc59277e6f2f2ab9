package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/voice-samples", h.ListSamples)
	mux.HandleFunc("POST /api/voice-samples", h.UploadSamples)
	mux.HandleFunc("POST /api/voice-samples/split", h.SplitSamples)

	mux.HandleFunc("POST /api/voices", h.CreateVoice)
	mux.HandleFunc("POST /api/voices/{id}/training-data", h.PrepareTrainingData)
	mux.HandleFunc("POST /api/voices/{id}/train", h.TrainVoice)
	mux.HandleFunc("POST /api/voices/{id}/synthesize", h.Synthesize)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
