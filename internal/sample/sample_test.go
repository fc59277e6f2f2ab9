package sample

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/audio/audiotest"
	"github.com/maauso/cyn-api/internal/environment"
)

// mockRecorder implements Recorder for testing.
type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveOutcome(stage string, kind audio.OutcomeKind) {
	m.Called(stage, kind)
}

func (m *mockRecorder) AddChunks(n int) {
	m.Called(n)
}

type fixture struct {
	svc      *Service
	tool     *audiotest.Tool
	resolver *environment.Resolver
	uploads  string
}

func newFixture(t *testing.T, restricted bool, opts ...Option) *fixture {
	t.Helper()
	resolver, err := environment.NewResolver(environment.Options{
		Restricted: restricted,
		BaseDir:    filepath.Join(t.TempDir(), "project"),
		ScratchDir: t.TempDir(),
	})
	require.NoError(t, err)

	tool := audiotest.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:      NewService(tool, resolver, logger, opts...),
		tool:     tool,
		resolver: resolver,
		uploads:  t.TempDir(),
	}
}

// upload writes a raw upload outside the sample directories.
func (f *fixture) upload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.uploads, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// sample writes a file of size bytes directly into the sample directory.
func (f *fixture) sample(t *testing.T, name string, size int64) string {
	t.Helper()
	dir := f.svc.SamplesDir()
	require.NoError(t, os.MkdirAll(dir, 0750))
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, file.Truncate(size))
	require.NoError(t, file.Close())
	return path
}

func (f *fixture) names(t *testing.T) []string {
	t.Helper()
	entries, err := f.svc.List()
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestSetup_MixedBatch(t *testing.T) {
	f := newFixture(t, false)
	valid := f.upload(t, "valid.wav", "pcm-1")
	corrupt := f.upload(t, "corrupt.mp3", "garbage")
	valid2 := f.upload(t, "valid2.mp3", "mp3-2")
	f.tool.TranscodeErrs["corrupt.mp3"] = errors.New("invalid data found when processing input")

	result := f.svc.Setup(context.Background(), []string{valid, corrupt, valid2})

	samplesDir := f.resolver.Resolve(environment.Samples)
	assert.Equal(t, []string{
		filepath.Join(samplesDir, "valid.wav"),
		filepath.Join(samplesDir, "valid2.wav"),
	}, result.Processed)

	require.Len(t, result.Files, 3)
	assert.Equal(t, audio.OutcomeOK, result.Files[0].Kind)
	assert.Equal(t, audio.OutcomeDegraded, result.Files[1].Kind)
	assert.Equal(t, corrupt, result.Files[1].Input)
	assert.Contains(t, result.Files[1].Reason, "invalid data")
	assert.Equal(t, audio.OutcomeOK, result.Files[2].Kind)

	for _, p := range result.Processed {
		assert.FileExists(t, p)
	}

	inputDir := f.resolver.Resolve(environment.CompressedInput)
	assert.NoFileExists(t, filepath.Join(inputDir, "valid2.mp3"))
	assert.NoFileExists(t, filepath.Join(inputDir, "valid2.wav"))
	assert.FileExists(t, filepath.Join(inputDir, "corrupt.mp3"))
}

func TestSetup_MissingFileOmitted(t *testing.T) {
	f := newFixture(t, false)
	valid := f.upload(t, "valid.wav", "pcm")

	result := f.svc.Setup(context.Background(), []string{filepath.Join(f.uploads, "gone.wav"), valid})

	require.Len(t, result.Processed, 1)
	assert.Equal(t, audio.OutcomeFailed, result.Files[0].Kind)
	assert.Equal(t, audio.OutcomeOK, result.Files[1].Kind)
}

func TestSetup_Empty(t *testing.T) {
	f := newFixture(t, false)

	result := f.svc.Setup(context.Background(), nil)

	assert.Empty(t, result.Processed)
	assert.NotNil(t, result.Processed)
	assert.DirExists(t, f.resolver.Resolve(environment.Samples))
	assert.DirExists(t, f.resolver.Resolve(environment.CompressedInput))
}

func TestSetup_Restricted(t *testing.T) {
	f := newFixture(t, true)
	valid := f.upload(t, "voice.m4a", "aac")

	result := f.svc.Setup(context.Background(), []string{valid})

	require.Len(t, result.Processed, 1)
	assert.Equal(t, filepath.Join(f.resolver.TempDir(), "voice-samples", "voice.wav"), result.Processed[0])
	assert.FileExists(t, result.Processed[0])
}

func TestSetup_CancelledContext(t *testing.T) {
	f := newFixture(t, false)
	valid := f.upload(t, "valid.wav", "pcm")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := f.svc.Setup(ctx, []string{valid})

	assert.Empty(t, result.Processed)
	require.Len(t, result.Files, 1)
	assert.Equal(t, audio.OutcomeFailed, result.Files[0].Kind)
}

func TestSetup_RecordsOutcomes(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("ObserveOutcome", StageSetup, audio.OutcomeOK).Once()
	rec.On("ObserveOutcome", StageSetup, audio.OutcomeFailed).Once()

	f := newFixture(t, false, WithRecorder(rec))
	valid := f.upload(t, "valid.wav", "pcm")

	f.svc.Setup(context.Background(), []string{valid, filepath.Join(f.uploads, "missing.wav")})

	rec.AssertExpectations(t)
}

func TestSplit_CreatesMissingDirectory(t *testing.T) {
	f := newFixture(t, false)

	result := f.svc.Split(context.Background())

	assert.True(t, result.Success)
	assert.Equal(t, MsgDirectoryCreated, result.Message)
	assert.DirExists(t, f.svc.SamplesDir())
}

func TestSplit_NoSamples(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.MkdirAll(f.svc.SamplesDir(), 0750))
	f.sample(t, "notes.txt", 10)

	result := f.svc.Split(context.Background())

	assert.False(t, result.Success)
	assert.Equal(t, MsgNoSamples, result.Message)
}

func TestSplit_UnderCeilingsUntouched(t *testing.T) {
	f := newFixture(t, false)
	f.sample(t, "short.wav", 1<<20)
	f.tool.Durations["short.wav"] = 12.5

	result := f.svc.Split(context.Background())

	assert.True(t, result.Success)
	assert.Empty(t, result.Processed)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"short.wav"}, f.names(t))
	assert.Empty(t, f.tool.Extracts())
}

func TestSplit_DurationOverCeiling(t *testing.T) {
	f := newFixture(t, false)
	f.sample(t, "long.wav", 2<<20)
	f.tool.Durations["long.wav"] = 75

	result := f.svc.Split(context.Background())

	require.True(t, result.Success)
	require.Len(t, result.Processed, 1)
	rec := result.Processed[0]
	assert.Equal(t, "long.wav", rec.File)
	assert.Equal(t, 3, rec.Chunks)
	assert.Equal(t, "75.00 seconds", rec.Duration)
	assert.Equal(t, "2.00MB", rec.OriginalSize)
	assert.Equal(t, audio.OutcomeOK, rec.Outcome)
	assert.False(t, rec.Placeholder)
	assert.Equal(t, filepath.Join(f.svc.SamplesDir(), "long_original.wav.bak"), rec.BackupPath)

	assert.Equal(t, []string{
		"long_chunk_1.wav",
		"long_chunk_2.wav",
		"long_chunk_3.wav",
		"long_original.wav.bak",
	}, f.names(t))

	extracts := f.tool.Extracts()
	require.Len(t, extracts, 3)
	for i, call := range extracts {
		assert.InDelta(t, float64(i*MaxChunkSeconds), call.Start, 1e-9)
		assert.InDelta(t, MaxChunkSeconds, call.Length, 1e-9)
	}
}

func TestSplit_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	f.sample(t, "long.wav", 1<<20)
	f.tool.Durations["long.wav"] = 61

	first := f.svc.Split(context.Background())
	require.Len(t, first.Processed, 1)
	assert.Equal(t, 3, first.Processed[0].Chunks)
	before := f.names(t)

	second := f.svc.Split(context.Background())

	assert.False(t, second.Success)
	assert.Equal(t, MsgNoSamples, second.Message)
	assert.Equal(t, before, f.names(t))
	assert.Len(t, f.tool.Extracts(), 3)
}

func TestSplit_SizeOverCeiling(t *testing.T) {
	f := newFixture(t, false)
	f.sample(t, "big.wav", 6<<20)
	f.tool.Durations["big.wav"] = 20

	result := f.svc.Split(context.Background())

	require.Len(t, result.Processed, 1)
	assert.Equal(t, 1, result.Processed[0].Chunks)
	assert.Equal(t, []string{"big_chunk_1.wav", "big_original.wav.bak"}, f.names(t))
}

func TestSplit_PlaceholderWhenDurationUnknown(t *testing.T) {
	tests := []struct {
		name   string
		size   int64
		chunks int
	}{
		{"just over ceiling", 6 << 20, 2},
		{"capped", 16 << 20, MaxPlaceholderChunks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.sample(t, "big.wav", tt.size)

			result := f.svc.Split(context.Background())

			require.True(t, result.Success)
			require.Len(t, result.Processed, 1)
			rec := result.Processed[0]
			assert.True(t, rec.Placeholder)
			assert.Equal(t, audio.OutcomeDegraded, rec.Outcome)
			assert.Equal(t, tt.chunks, rec.Chunks)
			assert.Empty(t, rec.Duration)
			assert.Contains(t, rec.Reason, "placeholder")
			assert.Empty(t, f.tool.Extracts())

			for _, p := range rec.ChunkPaths {
				info, err := os.Stat(p)
				require.NoError(t, err)
				assert.Equal(t, tt.size, info.Size())
			}
			assert.FileExists(t, rec.BackupPath)
		})
	}
}

func TestSplit_DurationUnknownSmallUntouched(t *testing.T) {
	f := newFixture(t, false)
	f.sample(t, "small.wav", 1024)

	result := f.svc.Split(context.Background())

	assert.True(t, result.Success)
	assert.Empty(t, result.Processed)
	assert.Equal(t, []string{"small.wav"}, f.names(t))
}

func TestSplit_ExtractFailureKeepsOriginal(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("ObserveOutcome", StageSplit, audio.OutcomeFailed).Once()

	f := newFixture(t, false, WithRecorder(rec))
	f.sample(t, "long.wav", 1024)
	f.tool.Durations["long.wav"] = 45
	f.tool.ExtractErr = errors.New("disk full")

	result := f.svc.Split(context.Background())

	assert.True(t, result.Success)
	assert.Empty(t, result.Processed)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, audio.OutcomeFailed, result.Failed[0].Outcome)
	assert.Contains(t, result.Failed[0].Reason, "disk full")
	assert.FileExists(t, filepath.Join(f.svc.SamplesDir(), "long.wav"))
	rec.AssertExpectations(t)
}

func TestSplit_SkipsDerivedFiles(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("ObserveOutcome", StageSplit, audio.OutcomeOK).Once()
	rec.On("AddChunks", 2).Once()

	f := newFixture(t, false, WithRecorder(rec))
	f.sample(t, "a_chunk_1.wav", 10<<20)
	f.sample(t, "a_original.wav.bak", 10<<20)
	f.sample(t, "b.wav", 1024)
	f.tool.Durations["b.wav"] = 31

	result := f.svc.Split(context.Background())

	require.Len(t, result.Processed, 1)
	assert.Equal(t, "b.wav", result.Processed[0].File)
	assert.Equal(t, []string{filepath.Join(f.svc.SamplesDir(), "b.wav")}, f.tool.Probes())
	rec.AssertExpectations(t)
}

func TestListAndTrainable(t *testing.T) {
	f := newFixture(t, false)

	entries, err := f.svc.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	f.sample(t, "a.wav", 10)
	f.sample(t, "b_chunk_1.wav", 20)
	f.sample(t, "b_original.wav.bak", 30)
	f.sample(t, "readme.txt", 1)

	entries, err = f.svc.List()
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "a.wav", Class: audio.ClassUnprocessed, SizeBytes: 10},
		{Name: "b_chunk_1.wav", Class: audio.ClassChunk, SizeBytes: 20},
		{Name: "b_original.wav.bak", Class: audio.ClassBackup, SizeBytes: 30},
		{Name: "readme.txt", Class: audio.ClassOther, SizeBytes: 1},
	}, entries)

	paths, err := f.svc.Trainable()
	require.NoError(t, err)
	dir := f.svc.SamplesDir()
	assert.Equal(t, []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b_chunk_1.wav")}, paths)
}
