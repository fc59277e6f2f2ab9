package sample

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/maauso/cyn-api/internal/audio"
)

// Splitting thresholds.
const (
	// MaxChunkSeconds is both the split trigger and the chunk length.
	MaxChunkSeconds = 30
	// MaxSampleBytes triggers a split regardless of duration.
	MaxSampleBytes = 5 << 20
	// MaxPlaceholderChunks caps the copies made when duration is unknown.
	MaxPlaceholderChunks = 3
)

// Messages returned by Split.
const (
	MsgDirectoryCreated = "Voice samples directory created. Please upload samples."
	MsgNoSamples        = "No voice samples found"
)

// SplitResult is the envelope returned by Split.
type SplitResult struct {
	Success   bool          `json:"success"`
	Processed []SplitRecord `json:"processed,omitempty"`
	Failed    []SplitRecord `json:"failed,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SplitRecord describes what happened to one sample during Split.
type SplitRecord struct {
	File         string            `json:"file"`
	OriginalSize string            `json:"original_size"`
	SizeBytes    int64             `json:"size_bytes"`
	Duration     string            `json:"duration,omitempty"`
	DurationSec  float64           `json:"duration_sec,omitempty"`
	Chunks       int               `json:"chunks"`
	ChunkPaths   []string          `json:"chunk_paths,omitempty"`
	BackupPath   string            `json:"backup_path,omitempty"`
	Placeholder  bool              `json:"placeholder,omitempty"`
	Outcome      audio.OutcomeKind `json:"outcome"`
	Reason       string            `json:"reason,omitempty"`
}

// Split scans the sample directory and splits every unprocessed sample
// longer than MaxChunkSeconds or larger than MaxSampleBytes into
// MaxChunkSeconds chunks, renaming the original to its backup name. Chunks
// and backups are never candidates, so repeated runs do not re-split.
//
// When the duration cannot be measured, samples over MaxSampleBytes get up
// to MaxPlaceholderChunks verbatim copies instead and are marked degraded.
func (s *Service) Split(ctx context.Context) SplitResult {
	dir := s.SamplesDir()
	s.logger.Info("starting voice sample split", slog.String("dir", dir))

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if _, err := s.locator.EnsureWritableDirectory(dir); err != nil {
			return SplitResult{Success: false, Error: err.Error()}
		}
		return SplitResult{Success: true, Message: MsgDirectoryCreated}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("could not read voice samples directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()),
		)
		return SplitResult{Success: false, Error: fmt.Sprintf("read samples directory: %v", err)}
	}

	var candidates []string
	for _, e := range entries {
		if e.Type().IsRegular() && audio.Classify(e.Name()) == audio.ClassUnprocessed {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		s.logger.Info("no voice samples found to process")
		return SplitResult{Success: false, Message: MsgNoSamples}
	}

	result := SplitResult{Success: true}
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, SplitRecord{File: name, Outcome: audio.OutcomeFailed, Reason: err.Error()})
			continue
		}

		rec, err := s.splitFile(ctx, dir, name)
		switch {
		case err != nil:
			s.logger.Error("failed to split voice sample",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			rec.Outcome = audio.OutcomeFailed
			rec.Reason = err.Error()
			result.Failed = append(result.Failed, rec)
			s.recorder.ObserveOutcome(StageSplit, audio.OutcomeFailed)
		case rec.Chunks > 0:
			result.Processed = append(result.Processed, rec)
			s.recorder.ObserveOutcome(StageSplit, rec.Outcome)
			s.recorder.AddChunks(rec.Chunks)
		}
	}

	s.logger.Info("voice sample split finished",
		slog.Int("candidates", len(candidates)),
		slog.Int("processed", len(result.Processed)),
		slog.Int("failed", len(result.Failed)),
	)
	return result
}

// splitFile returns a record with zero Chunks when the sample is left as is.
func (s *Service) splitFile(ctx context.Context, dir, name string) (SplitRecord, error) {
	path := filepath.Join(dir, name)
	rec := SplitRecord{File: name}

	info, err := os.Stat(path)
	if err != nil {
		return rec, fmt.Errorf("stat sample: %w", err)
	}
	rec.SizeBytes = info.Size()
	rec.OriginalSize = fmt.Sprintf("%.2fMB", float64(info.Size())/(1<<20))

	duration, err := s.tool.Duration(ctx, path)
	if err != nil {
		if info.Size() <= MaxSampleBytes {
			s.logger.Debug("duration unavailable, sample under size ceiling",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			return rec, nil
		}
		s.logger.Warn("duration unavailable, creating placeholder chunks",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		return s.placeholderSplit(dir, name, rec, err)
	}

	rec.DurationSec = duration
	rec.Duration = fmt.Sprintf("%.2f seconds", duration)

	if duration <= MaxChunkSeconds && info.Size() <= MaxSampleBytes {
		s.logger.Debug("no splitting needed",
			slog.String("file", name),
			slog.Float64("duration", duration),
		)
		return rec, nil
	}

	count := max(int(math.Ceil(duration/MaxChunkSeconds)), 1)
	s.logger.Info("splitting voice sample",
		slog.String("file", name),
		slog.Float64("duration", duration),
		slog.Int("chunks", count),
	)

	for i := range count {
		out := filepath.Join(dir, audio.ChunkName(name, i+1))
		start := float64(i * MaxChunkSeconds)
		if err := s.tool.Extract(ctx, path, out, start, MaxChunkSeconds); err != nil {
			return rec, fmt.Errorf("extract chunk %d/%d: %w", i+1, count, err)
		}
		rec.ChunkPaths = append(rec.ChunkPaths, out)
	}

	backup, err := s.backup(dir, name)
	if err != nil {
		return rec, err
	}
	rec.BackupPath = backup
	rec.Chunks = count
	rec.Outcome = audio.OutcomeOK
	return rec, nil
}

func (s *Service) placeholderSplit(dir, name string, rec SplitRecord, cause error) (SplitRecord, error) {
	path := filepath.Join(dir, name)
	count := min(int(math.Ceil(float64(rec.SizeBytes)/MaxSampleBytes)), MaxPlaceholderChunks)

	for i := range count {
		out := filepath.Join(dir, audio.ChunkName(name, i+1))
		if err := audio.CopyFile(path, out); err != nil {
			return rec, fmt.Errorf("copy placeholder chunk %d/%d: %w", i+1, count, err)
		}
		rec.ChunkPaths = append(rec.ChunkPaths, out)
	}

	backup, err := s.backup(dir, name)
	if err != nil {
		return rec, err
	}
	rec.BackupPath = backup
	rec.Chunks = count
	rec.Placeholder = true
	rec.Outcome = audio.OutcomeDegraded
	rec.Reason = fmt.Sprintf("placeholder chunks, not real splits: %v", cause)
	return rec, nil
}

func (s *Service) backup(dir, name string) (string, error) {
	backup := filepath.Join(dir, audio.BackupName(name))
	if err := os.Rename(filepath.Join(dir, name), backup); err != nil {
		return "", fmt.Errorf("back up original: %w", err)
	}
	s.logger.Info("backed up original sample",
		slog.String("file", name),
		slog.String("backup", backup),
	)
	return backup, nil
}

// Entry is one file in the sample directory.
type Entry struct {
	Name      string      `json:"name"`
	Class     audio.Class `json:"class"`
	SizeBytes int64       `json:"size_bytes"`
}

// List returns the files in the sample directory sorted by name. A missing
// directory yields an empty list.
func (s *Service) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.SamplesDir())
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read samples directory: %w", err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:      e.Name(),
			Class:     audio.Classify(e.Name()),
			SizeBytes: info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Trainable returns the paths of canonical samples usable for training:
// unprocessed samples and chunks, sorted by name.
func (s *Service) Trainable() ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Class == audio.ClassUnprocessed || e.Class == audio.ClassChunk {
			paths = append(paths, filepath.Join(s.SamplesDir(), e.Name))
		}
	}
	return paths, nil
}
