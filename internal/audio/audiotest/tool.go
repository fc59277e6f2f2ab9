// Package audiotest provides an in-process audio.Tool for tests.
package audiotest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maauso/cyn-api/internal/audio"
)

// ExtractCall records one Extract invocation.
type ExtractCall struct {
	In     string
	Out    string
	Start  float64
	Length float64
}

// Tool is a fake audio.Tool. Durations and failures are keyed by file base
// name. Transcode and Extract write real output files so callers can
// inspect the directory afterwards.
type Tool struct {
	mu sync.Mutex

	// Durations maps a base name to the duration Duration reports.
	// Names not present fail with audio.ErrDurationUnavailable.
	Durations map[string]float64
	// TranscodeErrs maps an input base name to the error Transcode returns.
	TranscodeErrs map[string]error
	// ExtractErr, when set, is returned by every Extract call.
	ExtractErr error

	transcodes []string
	extracts   []ExtractCall
	probes     []string
}

// New returns an empty fake.
func New() *Tool {
	return &Tool{
		Durations:     map[string]float64{},
		TranscodeErrs: map[string]error{},
	}
}

// Verify interface implementation at compile time.
var _ audio.Tool = (*Tool)(nil)

// Transcode implements audio.Tool by copying in to out.
func (t *Tool) Transcode(_ context.Context, in, out string) error {
	t.mu.Lock()
	t.transcodes = append(t.transcodes, in)
	err := t.TranscodeErrs[filepath.Base(in)]
	t.mu.Unlock()

	if err != nil {
		return err
	}
	data, err := os.ReadFile(in) // #nosec G304 - test helper
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0600)
}

// Extract implements audio.Tool by writing a small marker file.
func (t *Tool) Extract(_ context.Context, in, out string, start, length float64) error {
	t.mu.Lock()
	t.extracts = append(t.extracts, ExtractCall{In: in, Out: out, Start: start, Length: length})
	err := t.ExtractErr
	t.mu.Unlock()

	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte(fmt.Sprintf("%s@%g+%g", filepath.Base(in), start, length)), 0600)
}

// Duration implements audio.Tool.
func (t *Tool) Duration(_ context.Context, in string) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probes = append(t.probes, in)

	d, ok := t.Durations[filepath.Base(in)]
	if !ok {
		return 0, fmt.Errorf("%w: no fake duration for %s", audio.ErrDurationUnavailable, filepath.Base(in))
	}
	return d, nil
}

// Transcodes returns the inputs passed to Transcode in call order.
func (t *Tool) Transcodes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.transcodes...)
}

// Extracts returns the recorded Extract calls in call order.
func (t *Tool) Extracts() []ExtractCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ExtractCall(nil), t.extracts...)
}

// Probes returns the inputs passed to Duration in call order.
func (t *Tool) Probes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.probes...)
}
