// Package sample implements the voice sample pipeline: batch setup of
// uploaded files and splitting of long samples into bounded chunks.
//
// Processing is sequential. Individual files may fail; batches never do.
package sample

import (
	"log/slog"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/environment"
)

// Recorder receives pipeline events, typically for metrics.
type Recorder interface {
	ObserveOutcome(stage string, kind audio.OutcomeKind)
	AddChunks(n int)
}

// Pipeline stages reported to the Recorder.
const (
	StageSetup = "setup"
	StageSplit = "split"
)

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(string, audio.OutcomeKind) {}
func (nopRecorder) AddChunks(int)                            {}

// Service wires the converter, the splitter and the storage locations.
type Service struct {
	tool      audio.Tool
	converter *audio.Converter
	locator   environment.Locator
	logger    *slog.Logger
	recorder  Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the event recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a new Service.
func NewService(tool audio.Tool, locator environment.Locator, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		tool:      tool,
		converter: audio.NewConverter(tool, locator, logger),
		locator:   locator,
		logger:    logger,
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SamplesDir returns the directory holding canonical samples.
func (s *Service) SamplesDir() string {
	return s.locator.Resolve(environment.Samples)
}
