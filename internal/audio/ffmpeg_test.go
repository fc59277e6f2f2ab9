package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkFFmpeg skips test if ffmpeg or ffprobe is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// fakeBinary writes an executable shell script that logs its arguments to
// <dir>/args and then runs body.
func fakeBinary(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH, skipping test")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "tool")
	argsFile = filepath.Join(dir, "args")
	script := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n" + body + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0700))
	return bin, argsFile
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestFFmpegTool_Defaults(t *testing.T) {
	tool := NewFFmpegTool("")
	assert.Equal(t, "ffmpeg", tool.ffmpegPath)
	assert.Equal(t, "ffprobe", tool.ffprobePath)
	assert.Equal(t, DefaultToolTimeout, tool.timeout)

	tool = NewFFmpegTool("/bin/ffmpeg", WithFFprobePath(""), WithTimeout(-1))
	assert.Equal(t, "/bin/ffmpeg", tool.ffmpegPath)
	assert.Equal(t, "ffprobe", tool.ffprobePath)
	assert.Equal(t, DefaultToolTimeout, tool.timeout)
}

func TestFFmpegTool_TranscodeArgs(t *testing.T) {
	bin, argsFile := fakeBinary(t, "exit 0")
	tool := NewFFmpegTool(bin)

	err := tool.Transcode(context.Background(), "/in/voice.mp3", "/in/voice.wav")
	require.NoError(t, err)
	assert.Equal(t, "-y -i /in/voice.mp3 -acodec pcm_s16le -ar 22050 /in/voice.wav", readArgs(t, argsFile))
}

func TestFFmpegTool_ExtractArgs(t *testing.T) {
	bin, argsFile := fakeBinary(t, "exit 0")
	tool := NewFFmpegTool(bin)

	err := tool.Extract(context.Background(), "/s/voice.wav", "/s/voice_chunk_2.wav", 30, 30)
	require.NoError(t, err)
	assert.Equal(t, "-y -i /s/voice.wav -ss 30 -t 30 -c copy /s/voice_chunk_2.wav", readArgs(t, argsFile))
}

func TestFFmpegTool_Duration(t *testing.T) {
	bin, argsFile := fakeBinary(t, "echo 42.5")
	tool := NewFFmpegTool("", WithFFprobePath(bin))

	d, err := tool.Duration(context.Background(), "/s/voice.wav")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, d, 1e-9)
	assert.Equal(t, "-v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 /s/voice.wav", readArgs(t, argsFile))
}

func TestFFmpegTool_Failure(t *testing.T) {
	bin, _ := fakeBinary(t, "echo 'Invalid data found' >&2\nexit 1")
	tool := NewFFmpegTool(bin)

	err := tool.Transcode(context.Background(), "in.mp3", "out.wav")
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "ffmpeg", toolErr.Tool)
	assert.Contains(t, toolErr.Stderr, "Invalid data found")
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestFFmpegTool_NotFound(t *testing.T) {
	tool := NewFFmpegTool(filepath.Join(t.TempDir(), "missing-ffmpeg"),
		WithFFprobePath("definitely-not-a-real-ffprobe"))

	err := tool.Transcode(context.Background(), "in.mp3", "out.wav")
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = tool.Duration(context.Background(), "in.wav")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestFFmpegTool_Timeout(t *testing.T) {
	bin, _ := fakeBinary(t, "exec sleep 10")
	tool := NewFFmpegTool(bin, WithTimeout(100*time.Millisecond))

	start := time.Now()
	err := tool.Transcode(context.Background(), "in.mp3", "out.wav")
	assert.ErrorIs(t, err, ErrToolTimeout)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestFFmpegTool_Cancelled(t *testing.T) {
	bin, _ := fakeBinary(t, "exit 0")
	tool := NewFFmpegTool(bin)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tool.Transcode(ctx, "in.mp3", "out.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrToolTimeout)
}

func TestFFmpegTool_Observer(t *testing.T) {
	okBin, _ := fakeBinary(t, "echo 3")
	failBin, _ := fakeBinary(t, "exit 2")

	var mu sync.Mutex
	var seen []string
	var errs []error
	observer := func(tool string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tool)
		errs = append(errs, err)
	}

	tool := NewFFmpegTool(failBin, WithFFprobePath(okBin), WithObserver(observer))
	_, err := tool.Duration(context.Background(), "x.wav")
	require.NoError(t, err)
	_ = tool.Transcode(context.Background(), "x.mp3", "x.wav")

	assert.Equal(t, []string{"ffprobe", "ffmpeg"}, seen)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"12.345\n", 12.345, false},
		{"  0 ", 0, false},
		{"N/A", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
		{"NaN", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDurationUnavailable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// createTestAudio creates a sine wave of durationSec seconds at path.
func createTestAudio(t *testing.T, path string, durationSec float64) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+formatSeconds(durationSec),
		"-ar", "44100", "-ac", "1",
		path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test audio: %v\n%s", err, out)
	}
}

func TestFFmpegTool_Integration(t *testing.T) {
	checkFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "tone.mp3")
	createTestAudio(t, src, 3)

	tool := NewFFmpegTool("")
	ctx := context.Background()

	wav := CanonicalPath(src)
	require.NoError(t, tool.Transcode(ctx, src, wav))
	assert.FileExists(t, wav)

	d, err := tool.Duration(ctx, wav)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 0.2)

	chunk := filepath.Join(dir, ChunkName("tone.wav", 1))
	require.NoError(t, tool.Extract(ctx, wav, chunk, 1, 1))
	cd, err := tool.Duration(ctx, chunk)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cd, 0.2)
}
