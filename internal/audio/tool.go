// Package audio provides the external audio tool wrapper, the sample file
// naming conventions, and conversion of uploads into the canonical format.
package audio

import "context"

// Canonical output parameters.
const (
	// CanonicalSampleRate is the sample rate of every converted sample in Hz.
	CanonicalSampleRate = 22050
	// CanonicalCodec is the ffmpeg codec name of the canonical format.
	CanonicalCodec = "pcm_s16le"
)

// Tool defines the external audio operations the pipeline depends on.
// Implementations shell out to ffmpeg and ffprobe; tests substitute fakes.
type Tool interface {
	// Transcode converts in to the canonical format (16-bit little-endian
	// PCM at CanonicalSampleRate, channel count preserved) and writes out.
	Transcode(ctx context.Context, in, out string) error

	// Extract copies length seconds of in, starting at start, into out
	// without re-encoding.
	Extract(ctx context.Context, in, out string, start, length float64) error

	// Duration returns the duration of in in seconds.
	Duration(ctx context.Context, in string) (float64, error)
}
