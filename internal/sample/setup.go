package sample

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/environment"
)

// BatchResult is the outcome of Setup.
type BatchResult struct {
	// Processed lists the canonical sample paths produced, in input order.
	Processed []string `json:"processed"`
	// Files holds one outcome per input file, in input order.
	Files []audio.Outcome `json:"files"`
}

// Setup places each raw upload into the sample directory. Compressed files
// are staged in the compressed-input directory, converted, and moved next
// to the canonical samples. Files that fail or only degrade are left out of
// Processed.
func (s *Service) Setup(ctx context.Context, files []string) BatchResult {
	s.logger.Info("setting up voice samples", slog.Int("files", len(files)))

	samplesDir := s.ensureDir(s.locator.Resolve(environment.Samples))
	inputDir := s.ensureDir(s.locator.Resolve(environment.CompressedInput))

	result := BatchResult{
		Processed: make([]string, 0, len(files)),
		Files:     make([]audio.Outcome, 0, len(files)),
	}

	for _, file := range files {
		var outcome audio.Outcome
		if err := ctx.Err(); err != nil {
			outcome = audio.Failed(file, err.Error())
		} else {
			outcome = s.setupOne(ctx, file, samplesDir, inputDir)
		}

		s.recorder.ObserveOutcome(StageSetup, outcome.Kind)
		result.Files = append(result.Files, outcome)

		switch outcome.Kind {
		case audio.OutcomeOK:
			result.Processed = append(result.Processed, outcome.Path)
			s.logger.Info("processed voice sample",
				slog.String("input", file),
				slog.String("path", outcome.Path),
			)
		default:
			s.logger.Warn("voice sample omitted from batch",
				slog.String("input", file),
				slog.String("outcome", string(outcome.Kind)),
				slog.String("reason", outcome.Reason),
			)
		}
	}

	s.logger.Info("completed voice sample setup",
		slog.Int("processed", len(result.Processed)),
		slog.Int("files", len(files)),
	)
	return result
}

func (s *Service) setupOne(ctx context.Context, file, samplesDir, inputDir string) audio.Outcome {
	compressed := audio.IsCompressed(file)
	target := samplesDir
	if compressed {
		target = inputDir
	}

	outcome := s.converter.ProcessVoiceSample(ctx, file, target)
	if !outcome.OK() || !compressed {
		return outcome
	}

	converted := s.converter.ConvertToCanonical(ctx, outcome.Path)
	if !converted.OK() {
		return audio.Degraded(file, converted.Path, converted.Reason)
	}

	final := filepath.Join(samplesDir, filepath.Base(converted.Path))
	if err := audio.MoveFile(converted.Path, final); err != nil {
		return audio.Failed(file, fmt.Sprintf("move converted sample: %v", err))
	}
	return audio.OK(file, final)
}

// ensureDir returns the writable substitute for dir, or dir itself when it
// cannot be created; later per-file steps then fail individually.
func (s *Service) ensureDir(dir string) string {
	actual, err := s.locator.EnsureWritableDirectory(dir)
	if err != nil {
		s.logger.Error("could not create directory",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)
		return dir
	}
	return actual
}
