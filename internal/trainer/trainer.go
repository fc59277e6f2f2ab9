package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/environment"
	"github.com/maauso/cyn-api/internal/trainer/id"
)

// Static errors for the trainer.
var (
	// ErrInvalidConfig is returned when a voice configuration fails validation.
	ErrInvalidConfig = errors.New("invalid voice configuration")
	// ErrInvalidVoiceID is returned for identifiers that are not a safe path component.
	ErrInvalidVoiceID = errors.New("invalid voice id")
	// ErrVoiceNotFound is returned when the voice has not been created.
	ErrVoiceNotFound = errors.New("voice not found")
	// ErrNoTrainingData is returned when a voice has no .wav training files.
	ErrNoTrainingData = errors.New("no training audio files found")
	// ErrModelNotFound is returned when synthesis is requested for an untrained voice.
	ErrModelNotFound = errors.New("model not found")
)

// File names inside the voice and model directories.
const (
	configFile = "config.json"
	modelFile  = "model.json"
)

// StatusTrained marks a model descriptor produced by Train.
const StatusTrained = "trained"

// Placeholder synthesis parameters.
const (
	toneFrequency = 440
	toneSeconds   = 2
	toneAmplitude = 0.8
)

// Model is the descriptor written by Train.
type Model struct {
	ID            string        `json:"id"`
	Config        VoiceConfig   `json:"config"`
	Features      ModelFeatures `json:"features"`
	TrainingFiles int           `json:"training_files"`
	Status        string        `json:"status"`
	Timestamp     time.Time     `json:"timestamp"`
}

// ModelFeatures lists the features the model was built with.
type ModelFeatures struct {
	MFCC   bool `json:"mfcc"`
	Pitch  bool `json:"pitch"`
	Energy bool `json:"energy"`
}

// Trainer stores voices beneath the directories provided by a Locator.
type Trainer struct {
	locator  environment.Locator
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates a Trainer. A nil logger means slog.Default().
func New(locator environment.Locator, logger *slog.Logger, opts ...Option) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Trainer{
		locator:  locator,
		logger:   logger,
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateVoice validates cfg and writes voices/<id>/config.json, replacing
// any existing configuration for the same ID.
func (t *Trainer) CreateVoice(ctx context.Context, cfg VoiceConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := t.validate.Struct(cfg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	dir, err := t.locator.EnsureWritableDirectory(t.voiceDir(cfg.VoiceID))
	if err != nil {
		return "", fmt.Errorf("create voice directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, configFile), cfg); err != nil {
		return "", fmt.Errorf("save voice config: %w", err)
	}

	t.logger.Info("created voice",
		slog.String("voice_id", cfg.VoiceID),
		slog.String("name", cfg.Name),
		slog.Int("sampling_rate", cfg.SamplingRate),
	)
	return cfg.VoiceID, nil
}

// Voice loads the stored configuration of a voice.
func (t *Trainer) Voice(voiceID string) (VoiceConfig, error) {
	if !id.Valid(voiceID) {
		return VoiceConfig{}, fmt.Errorf("%w: %q", ErrInvalidVoiceID, voiceID)
	}
	var cfg VoiceConfig
	if err := readJSON(filepath.Join(t.voiceDir(voiceID), configFile), &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return VoiceConfig{}, fmt.Errorf("%w: %s", ErrVoiceNotFound, voiceID)
		}
		return VoiceConfig{}, fmt.Errorf("load voice config for %s: %w", voiceID, err)
	}
	return cfg, nil
}

// PrepareTrainingData copies files into training-data/<id>/ under their
// base names. The first failed copy aborts and is returned; files copied
// before it stay in place.
func (t *Trainer) PrepareTrainingData(ctx context.Context, voiceID string, files []string) (int, error) {
	if !id.Valid(voiceID) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVoiceID, voiceID)
	}
	if _, err := os.Stat(t.voiceDir(voiceID)); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrVoiceNotFound, voiceID)
	}

	dir, err := t.locator.EnsureWritableDirectory(t.trainingDir(voiceID))
	if err != nil {
		return 0, fmt.Errorf("create training directory: %w", err)
	}

	copied := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		name := filepath.Base(f)
		if err := audio.CopyFile(f, filepath.Join(dir, name)); err != nil {
			t.logger.Error("failed to copy training file",
				slog.String("voice_id", voiceID),
				slog.String("file", f),
				slog.String("error", err.Error()),
			)
			return copied, fmt.Errorf("copy %s: %w", name, err)
		}
		copied++
		t.logger.Debug("copied training file",
			slog.String("voice_id", voiceID),
			slog.String("file", name),
		)
	}

	t.logger.Info("prepared training data",
		slog.String("voice_id", voiceID),
		slog.Int("files", copied),
	)
	return copied, nil
}

// Train checks the training data of a voice and writes models/<id>/model.json.
func (t *Trainer) Train(ctx context.Context, voiceID string) (Model, error) {
	cfg, err := t.Voice(voiceID)
	if err != nil {
		return Model{}, err
	}

	entries, err := os.ReadDir(t.trainingDir(voiceID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Model{}, fmt.Errorf("read training data: %w", err)
	}
	wavs := 0
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), audio.CanonicalExt) {
			wavs++
		}
	}
	if wavs == 0 {
		return Model{}, fmt.Errorf("%w: %s", ErrNoTrainingData, voiceID)
	}
	if err := ctx.Err(); err != nil {
		return Model{}, err
	}

	t.logger.Info("starting voice training",
		slog.String("voice_id", voiceID),
		slog.Int("files", wavs),
	)

	dir, err := t.locator.EnsureWritableDirectory(t.modelDir(voiceID))
	if err != nil {
		return Model{}, fmt.Errorf("create model directory: %w", err)
	}

	model := Model{
		ID:     voiceID,
		Config: cfg,
		Features: ModelFeatures{
			MFCC:   cfg.Features.UseMFCC,
			Pitch:  cfg.Features.UseF0,
			Energy: cfg.Features.UseProsody,
		},
		TrainingFiles: wavs,
		Status:        StatusTrained,
		Timestamp:     t.now().UTC(),
	}
	if err := writeJSON(filepath.Join(dir, modelFile), model); err != nil {
		return Model{}, fmt.Errorf("save model: %w", err)
	}

	t.logger.Info("completed voice training", slog.String("voice_id", voiceID))
	return model, nil
}

// Synthesize renders text with a trained voice. Until a real acoustic model
// exists it returns a fixed 440 Hz tone at the voice's sampling rate as WAV.
func (t *Trainer) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	if !id.Valid(voiceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoiceID, voiceID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var model Model
	if err := readJSON(filepath.Join(t.modelDir(voiceID), modelFile), &model); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, voiceID)
		}
		return nil, fmt.Errorf("load model for %s: %w", voiceID, err)
	}

	rate := model.Config.SamplingRate
	if rate <= 0 {
		rate = audio.CanonicalSampleRate
	}
	wav, err := audio.EncodeWAVPCM16(audio.Sine(toneFrequency, toneSeconds, rate, toneAmplitude), rate)
	if err != nil {
		return nil, fmt.Errorf("encode audio: %w", err)
	}

	t.logger.Info("generated placeholder audio",
		slog.String("voice_id", voiceID),
		slog.Int("text_length", len(text)),
		slog.Int("bytes", len(wav)),
	)
	return wav, nil
}

func (t *Trainer) voiceDir(voiceID string) string {
	return filepath.Join(t.locator.Resolve(environment.Voices), voiceID)
}

func (t *Trainer) trainingDir(voiceID string) string {
	return filepath.Join(t.locator.Resolve(environment.TrainingData), voiceID)
}

func (t *Trainer) modelDir(voiceID string) string {
	return filepath.Join(t.locator.Resolve(environment.Models), voiceID)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from a validated id
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
