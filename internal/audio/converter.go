package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/cyn-api/internal/environment"
)

// Converter copies uploaded samples into place and transcodes compressed
// ones to the canonical format. It never returns an error: every problem is
// reported through the Outcome so a batch can carry on.
type Converter struct {
	tool    Tool
	locator environment.Locator
	logger  *slog.Logger
}

// NewConverter creates a new Converter.
func NewConverter(tool Tool, locator environment.Locator, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		tool:    tool,
		locator: locator,
		logger:  logger,
	}
}

// ConvertToCanonical transcodes in to a sibling file with the canonical
// extension. Canonical inputs are returned unchanged. When the tool fails the
// outcome is degraded and its Path is in itself.
func (c *Converter) ConvertToCanonical(ctx context.Context, in string) Outcome {
	if IsCanonical(in) {
		return OK(in, in)
	}

	out := CanonicalPath(in)
	c.logger.Info("converting sample to canonical format",
		slog.String("input", in),
		slog.String("output", out),
	)

	if err := c.tool.Transcode(ctx, in, out); err != nil {
		c.logger.Warn("conversion failed, continuing with original file",
			slog.String("input", in),
			slog.String("error", err.Error()),
		)
		return Degraded(in, in, fmt.Sprintf("conversion failed: %v", err))
	}

	return OK(in, out)
}

// ProcessVoiceSample copies in into targetDir (or its writable substitute)
// and converts the copy when it is compressed. The pre-conversion copy is
// removed only when conversion produced a different file.
func (c *Converter) ProcessVoiceSample(ctx context.Context, in, targetDir string) Outcome {
	dir, err := c.locator.EnsureWritableDirectory(targetDir)
	if err != nil {
		return c.fail(in, fmt.Errorf("prepare target directory: %w", err))
	}

	dst := filepath.Join(dir, filepath.Base(in))
	if err := CopyFile(in, dst); err != nil && !errors.Is(err, ErrSameFile) {
		return c.fail(in, fmt.Errorf("copy sample: %w", err))
	}
	c.logger.Debug("copied sample",
		slog.String("input", in),
		slog.String("path", dst),
	)

	if !IsCompressed(dst) {
		return OK(in, dst)
	}

	result := c.ConvertToCanonical(ctx, dst)
	if result.Path != dst {
		if err := os.Remove(dst); err != nil {
			c.logger.Warn("could not remove pre-conversion copy",
				slog.String("path", dst),
				slog.String("error", err.Error()),
			)
		}
	}
	result.Input = in
	return result
}

func (c *Converter) fail(in string, err error) Outcome {
	c.logger.Error("failed to process voice sample",
		slog.String("input", in),
		slog.String("error", err.Error()),
	)
	return Failed(in, err.Error())
}
