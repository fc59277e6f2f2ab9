// Package environment resolves where the service may write files.
//
// In a restricted deployment (a serverless runtime) only a single scratch
// directory is writable, so every directory the service needs is redirected
// beneath it. Components ask the Locator for logical locations instead of
// building paths themselves.
package environment

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logical location names understood by Resolve.
const (
	Samples         = "voice-samples"
	CompressedInput = "mp3-input"
	Uploads         = "uploads"
	Voices          = "voices"
	TrainingData    = "training-data"
	Models          = "models"
	Temp            = "tmp"
)

// DefaultScratchDir is the writable directory of a restricted deployment.
const DefaultScratchDir = "/tmp"

// ErrEmptyPath is returned when EnsureWritableDirectory is called without a path.
var ErrEmptyPath = errors.New("environment: empty directory path")

// Locator is the storage location provider used by the sample pipeline.
type Locator interface {
	// Resolve maps a logical location name to a concrete directory path.
	Resolve(name string) string

	// EnsureWritableDirectory creates dir, or its restricted-mode substitute,
	// and returns the directory that is actually usable. Callers must write
	// to the returned path.
	EnsureWritableDirectory(dir string) (string, error)
}

// Options configures a Resolver.
type Options struct {
	// Restricted enables scratch-directory redirection.
	Restricted bool
	// BaseDir is the project base directory. Empty means the working directory.
	BaseDir string
	// ScratchDir is the only writable directory when Restricted is set.
	// Empty means DefaultScratchDir.
	ScratchDir string
	// Logger receives directory creation events. Nil means slog.Default().
	Logger *slog.Logger
}

// Resolver implements Locator for local and restricted deployments.
type Resolver struct {
	restricted bool
	baseDir    string
	scratchDir string
	logger     *slog.Logger
}

// Compile-time check that Resolver implements Locator.
var _ Locator = (*Resolver)(nil)

// NewResolver creates a Resolver from opts.
func NewResolver(opts Options) (*Resolver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	scratch := opts.ScratchDir
	if scratch == "" {
		scratch = DefaultScratchDir
	}

	return &Resolver{
		restricted: opts.Restricted,
		baseDir:    base,
		scratchDir: filepath.Clean(scratch),
		logger:     logger,
	}, nil
}

// IsRestricted reports whether only the scratch directory is writable.
func (r *Resolver) IsRestricted() bool {
	return r.restricted
}

// TempDir returns the directory for temporary files.
func (r *Resolver) TempDir() string {
	if r.restricted {
		return r.scratchDir
	}
	return filepath.Join(r.baseDir, "tmp")
}

// BaseDir returns the project base directory.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Resolve implements Locator. Unknown names resolve beneath TempDir.
func (r *Resolver) Resolve(name string) string {
	if r.restricted {
		switch name {
		case Samples, CompressedInput, Uploads:
			return filepath.Join(r.scratchDir, name)
		case Voices, TrainingData, Models:
			return filepath.Join(r.scratchDir, "voice-training", name)
		case Temp:
			return r.scratchDir
		}
		return filepath.Join(r.scratchDir, name)
	}

	samples := filepath.Join(r.baseDir, "training-data", "voice-samples")
	switch name {
	case Samples:
		return samples
	case CompressedInput:
		return filepath.Join(samples, CompressedInput)
	case Uploads:
		return filepath.Join(r.TempDir(), Uploads)
	case Voices, TrainingData, Models:
		return filepath.Join(r.baseDir, "voice-training", name)
	case Temp:
		return r.TempDir()
	}
	return filepath.Join(r.TempDir(), name)
}

// EnsureWritableDirectory implements Locator.
//
// In restricted mode a directory outside the scratch directory is replaced
// by scratch/<basename>. Two requested directories sharing a basename map to
// the same substitute.
func (r *Resolver) EnsureWritableDirectory(dir string) (string, error) {
	if dir == "" {
		return "", ErrEmptyPath
	}

	target := filepath.Clean(dir)
	if r.restricted && !r.withinScratch(target) {
		target = filepath.Join(r.scratchDir, filepath.Base(target))
		r.logger.Debug("redirected directory to scratch",
			slog.String("requested", dir),
			slog.String("actual", target),
		)
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return target, nil
	}

	if err := os.MkdirAll(target, 0750); err != nil {
		return "", fmt.Errorf("create directory %s: %w", target, err)
	}
	r.logger.Info("created directory", slog.String("path", target))

	return target, nil
}

func (r *Resolver) withinScratch(path string) bool {
	if path == r.scratchDir {
		return true
	}
	rel, err := filepath.Rel(r.scratchDir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// LogValue implements slog.LogValuer so the resolver can be logged at startup.
func (r *Resolver) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("restricted", r.restricted),
		slog.String("base_dir", r.baseDir),
		slog.String("temp_dir", r.TempDir()),
		slog.String("samples_dir", r.Resolve(Samples)),
	)
}
