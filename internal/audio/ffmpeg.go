package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Static errors for external tool invocations.
var (
	// ErrToolTimeout is returned when an external tool exceeds its timeout.
	ErrToolTimeout = errors.New("external tool timed out")
	// ErrToolNotFound is returned when the tool binary cannot be executed.
	ErrToolNotFound = errors.New("external tool not found")
	// ErrDurationUnavailable is returned when ffprobe reports no usable duration.
	ErrDurationUnavailable = errors.New("duration unavailable")
)

// DefaultToolTimeout bounds a single ffmpeg or ffprobe run.
const DefaultToolTimeout = 2 * time.Minute

// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
const waitDelay = 5 * time.Second

// Observer is notified after every tool invocation.
type Observer func(tool string, elapsed time.Duration, err error)

// FFmpegTool implements Tool using the ffmpeg and ffprobe CLIs.
type FFmpegTool struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	observer    Observer
}

// Option configures an FFmpegTool.
type Option func(*FFmpegTool)

// WithFFprobePath sets the ffprobe binary. Empty keeps the default.
func WithFFprobePath(path string) Option {
	return func(t *FFmpegTool) {
		if path != "" {
			t.ffprobePath = path
		}
	}
}

// WithTimeout sets the per-invocation timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(t *FFmpegTool) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithObserver registers an invocation observer, typically for metrics.
func WithObserver(o Observer) Option {
	return func(t *FFmpegTool) {
		t.observer = o
	}
}

// NewFFmpegTool creates a new FFmpegTool.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegTool(ffmpegPath string, opts ...Option) *FFmpegTool {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	t := &FFmpegTool{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		timeout:     DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Verify interface implementation at compile time.
var _ Tool = (*FFmpegTool)(nil)

// Transcode implements Tool.Transcode.
func (t *FFmpegTool) Transcode(ctx context.Context, in, out string) error {
	args := []string{
		"-y", // Overwrite output
		"-i", in,
		"-acodec", CanonicalCodec,
		"-ar", strconv.Itoa(CanonicalSampleRate),
		out,
	}
	_, err := t.run(ctx, "ffmpeg", t.ffmpegPath, args)
	return err
}

// Extract implements Tool.Extract.
func (t *FFmpegTool) Extract(ctx context.Context, in, out string, start, length float64) error {
	args := []string{
		"-y",
		"-i", in,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-c", "copy", // Copy without re-encoding
		out,
	}
	_, err := t.run(ctx, "ffmpeg", t.ffmpegPath, args)
	return err
}

// Duration implements Tool.Duration using ffprobe format metadata.
func (t *FFmpegTool) Duration(ctx context.Context, in string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		in,
	}
	out, err := t.run(ctx, "ffprobe", t.ffprobePath, args)
	if err != nil {
		return 0, err
	}
	return parseDuration(out)
}

// run executes bin under the configured timeout and returns its stdout.
func (t *FFmpegTool) run(ctx context.Context, name, bin string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// #nosec G204 - binary paths come from configuration, not user input
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	err = t.classify(ctx, name, bin, args, stderr.String(), err)
	if t.observer != nil {
		t.observer(name, time.Since(start), err)
	}
	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func (t *FFmpegTool) classify(ctx context.Context, name, bin string, args []string, stderr string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrToolTimeout, name, t.timeout)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrToolNotFound, bin, err)
	}
	return &ToolError{
		Tool:   name,
		Args:   args,
		Stderr: stderr,
		Err:    err,
	}
}

// ToolError represents a failed ffmpeg or ffprobe run, including the stderr output.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Tool, e.Err, e.Args, strings.TrimSpace(e.Stderr))
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// parseDuration parses the single value ffprobe prints for format=duration.
func parseDuration(out string) (float64, error) {
	value := strings.TrimSpace(out)
	if value == "" || value == "N/A" {
		return 0, ErrDurationUnavailable
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %q: %w", ErrDurationUnavailable, value, err)
	}
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, fmt.Errorf("%w: %q", ErrDurationUnavailable, value)
	}
	return d, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
