package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/sample"
	"github.com/maauso/cyn-api/internal/storage"
	"github.com/maauso/cyn-api/internal/trainer"
	"github.com/maauso/cyn-api/internal/trainer/id"
)

// Upload limits.
const (
	// DefaultMaxUploadBytes bounds a multipart upload body.
	DefaultMaxUploadBytes = 50 << 20
	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 8 << 20
	// maxJSONBytes bounds JSON request bodies.
	maxJSONBytes = 1 << 20
	// samplesField is the multipart field carrying audio files.
	samplesField = "samples"
)

// Containers accepted alongside audio/* signatures; these formats may carry
// audio-only streams.
var audioContainers = []string{"video/webm", "application/ogg", "video/mp4"}

// SampleService is the sample pipeline used by the handlers.
type SampleService interface {
	Setup(ctx context.Context, files []string) sample.BatchResult
	Split(ctx context.Context) sample.SplitResult
	List() ([]sample.Entry, error)
	Trainable() ([]string, error)
	SamplesDir() string
}

// VoiceTrainer is the voice registry used by the handlers.
type VoiceTrainer interface {
	CreateVoice(ctx context.Context, cfg trainer.VoiceConfig) (string, error)
	PrepareTrainingData(ctx context.Context, voiceID string, files []string) (int, error)
	Train(ctx context.Context, voiceID string) (trainer.Model, error)
	Synthesize(ctx context.Context, voiceID, text string) ([]byte, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	samples        SampleService
	voices         VoiceTrainer
	storage        storage.Storage
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes sets the multipart body limit.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(samples SampleService, voices VoiceTrainer, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		samples:        samples,
		voices:         voices,
		storage:        store,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// UploadSamples handles POST /api/voice-samples requests.
//
// Every part is checked before anything is staged: a zero-byte part or a
// part whose header is not an audio signature rejects the whole request.
func (h *Handlers) UploadSamples(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes), "PAYLOAD_TOO_LARGE")
			return
		}
		log.Warn("failed to parse multipart form", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	parts := r.MultipartForm.File[samplesField]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no files in field \""+samplesField+"\"", "NO_FILES")
		return
	}

	pushToS3, ok := formBool(w, r, "push_to_s3")
	if !ok {
		return
	}
	split, ok := formBool(w, r, "split")
	if !ok {
		return
	}

	for _, part := range parts {
		if status, msg, code := checkPart(part); code != "" {
			log.Warn("rejected upload",
				slog.String("file", part.Filename),
				slog.String("code", code),
			)
			writeError(w, status, msg, code)
			return
		}
	}

	batchID := uuid.NewString()
	log = log.With(slog.String("batch_id", batchID))

	staged, err := h.stage(r.Context(), parts)
	defer h.cleanup(log, staged)
	if err != nil {
		log.Error("failed to stage upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to stage upload", "STAGING_FAILED")
		return
	}

	batch := h.samples.Setup(r.Context(), staged)

	resp := UploadResponse{
		Success:   len(batch.Processed) == len(parts),
		BatchID:   batchID,
		Processed: batch.Processed,
		Files:     make([]FileOutcome, 0, len(batch.Files)),
	}
	for i, o := range batch.Files {
		resp.Files = append(resp.Files, FileOutcome{
			Name:    parts[i].Filename,
			Outcome: o.Kind,
			Path:    o.Path,
			Reason:  o.Reason,
		})
	}

	if split {
		result := h.samples.Split(r.Context())
		resp.Split = &result
		if len(result.Processed) > 0 {
			resp.Processed = replaceSplit(batch.Processed, result.Processed)
		}
	}

	if pushToS3 {
		resp.Archived = h.archive(r.Context(), log, batchID, resp.Processed)
	}

	log.Info("voice samples uploaded",
		slog.Int("files", len(parts)),
		slog.Int("processed", len(batch.Processed)),
		slog.Bool("push_to_s3", pushToS3),
		slog.Bool("split", split),
	)
	writeJSON(w, http.StatusOK, resp)
}

// formBool parses an optional boolean form field, writing a 400 on failure.
func formBool(w http.ResponseWriter, r *http.Request, field string) (bool, bool) {
	v := r.FormValue(field)
	if v == "" {
		return false, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" must be a boolean", "VALIDATION_ERROR")
		return false, false
	}
	return b, true
}

// replaceSplit swaps each processed sample that was split for its chunks.
func replaceSplit(processed []string, records []sample.SplitRecord) []string {
	chunks := make(map[string][]string, len(records))
	for _, rec := range records {
		chunks[rec.File] = rec.ChunkPaths
	}
	out := make([]string, 0, len(processed))
	for _, p := range processed {
		if c, ok := chunks[filepath.Base(p)]; ok {
			out = append(out, c...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// checkPart returns a non-empty code when the part must be rejected.
func checkPart(part *multipart.FileHeader) (int, string, string) {
	name := part.Filename
	if part.Size == 0 {
		return http.StatusBadRequest, fmt.Sprintf("%s is empty", name), "EMPTY_FILE"
	}
	if !audio.IsSupported(name) {
		return http.StatusBadRequest, fmt.Sprintf("%s has an unsupported extension", name), "UNSUPPORTED_FORMAT"
	}

	f, err := part.Open()
	if err != nil {
		return http.StatusBadRequest, fmt.Sprintf("%s could not be read", name), "INVALID_AUDIO"
	}
	defer func() { _ = f.Close() }()

	mt, err := mimetype.DetectReader(f)
	if err != nil || !isAudio(mt) {
		detected := "unknown"
		if mt != nil {
			detected = mt.String()
		}
		return http.StatusBadRequest, fmt.Sprintf("%s is not audio (detected %s)", name, detected), "INVALID_AUDIO"
	}
	return 0, "", ""
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || slices.ContainsFunc(audioContainers, m.Is) {
			return true
		}
	}
	return false
}

// stage saves every part and returns the staged paths. On error the paths
// staged so far are still returned for cleanup.
func (h *Handlers) stage(ctx context.Context, parts []*multipart.FileHeader) ([]string, error) {
	staged := make([]string, 0, len(parts))
	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			return staged, fmt.Errorf("open part %s: %w", part.Filename, err)
		}
		p, err := h.storage.SaveTemp(ctx, part.Filename, f)
		_ = f.Close()
		if err != nil {
			return staged, fmt.Errorf("stage %s: %w", part.Filename, err)
		}
		staged = append(staged, p)
	}
	return staged, nil
}

func (h *Handlers) cleanup(log *slog.Logger, paths []string) {
	if len(paths) == 0 {
		return
	}
	// The request context may already be done.
	if err := h.storage.CleanupTemp(context.Background(), paths); err != nil {
		log.Warn("failed to clean staged uploads", slog.String("error", err.Error()))
	}
}

func (h *Handlers) archive(ctx context.Context, log *slog.Logger, batchID string, paths []string) []ArchivedSample {
	out := make([]ArchivedSample, 0, len(paths))
	for _, p := range paths {
		item := ArchivedSample{Path: p}
		url, err := h.upload(ctx, path.Join("voice-samples", batchID, filepath.Base(p)), p)
		if err != nil {
			log.Warn("failed to archive sample",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
			item.Error = err.Error()
		} else {
			item.URL = url
		}
		out = append(out, item)
	}
	return out
}

func (h *Handlers) upload(ctx context.Context, key, p string) (string, error) {
	rc, err := h.storage.LoadTemp(ctx, p)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	return h.storage.UploadToS3(ctx, key, rc)
}

// SplitSamples handles POST /api/voice-samples/split requests.
func (h *Handlers) SplitSamples(w http.ResponseWriter, r *http.Request) {
	result := h.samples.Split(r.Context())
	status := http.StatusOK
	if result.Error != "" {
		h.requestLogger(r).Error("voice sample split failed", slog.String("error", result.Error))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// ListSamples handles GET /api/voice-samples requests.
func (h *Handlers) ListSamples(w http.ResponseWriter, r *http.Request) {
	entries, err := h.samples.List()
	if err != nil {
		h.requestLogger(r).Error("failed to list samples", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list samples", "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, ListSamplesResponse{Dir: h.samples.SamplesDir(), Samples: entries})
}

// CreateVoice handles POST /api/voices requests. Omitted fields take their
// defaults; an omitted voice_id is generated.
func (h *Handlers) CreateVoice(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body", "INVALID_JSON")
		return
	}

	cfg, err := trainer.ParseVoiceConfig(body)
	if err != nil {
		h.requestLogger(r).Warn("failed to decode voice config", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	var probe struct {
		VoiceID *string `json:"voice_id"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &probe)
	}
	if probe.VoiceID == nil {
		cfg.VoiceID = id.Generate()
	}

	voiceID, err := h.voices.CreateVoice(r.Context(), cfg)
	if err != nil {
		h.writeTrainerError(w, r, "create voice", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateVoiceResponse{VoiceID: voiceID})
}

// PrepareTrainingData handles POST /api/voices/{id}/training-data requests.
func (h *Handlers) PrepareTrainingData(w http.ResponseWriter, r *http.Request) {
	voiceID, ok := h.voiceID(w, r)
	if !ok {
		return
	}

	var req TrainingDataRequest
	if !h.decodeJSON(w, r, &req, true) {
		return
	}

	var files []string
	if len(req.Samples) == 0 {
		trainable, err := h.samples.Trainable()
		if err != nil {
			h.requestLogger(r).Error("failed to list trainable samples", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to list samples", "LIST_FAILED")
			return
		}
		files = trainable
	} else {
		dir := h.samples.SamplesDir()
		for _, name := range req.Samples {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
				writeError(w, http.StatusNotFound, fmt.Sprintf("sample %s not found", name), "SAMPLE_NOT_FOUND")
				return
			}
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		writeError(w, http.StatusConflict, "no trainable samples available", "NO_TRAINING_DATA")
		return
	}

	n, err := h.voices.PrepareTrainingData(r.Context(), voiceID, files)
	if err != nil {
		h.writeTrainerError(w, r, "prepare training data", err)
		return
	}
	writeJSON(w, http.StatusOK, TrainingDataResponse{VoiceID: voiceID, Files: n})
}

// TrainVoice handles POST /api/voices/{id}/train requests.
func (h *Handlers) TrainVoice(w http.ResponseWriter, r *http.Request) {
	voiceID, ok := h.voiceID(w, r)
	if !ok {
		return
	}
	model, err := h.voices.Train(r.Context(), voiceID)
	if err != nil {
		h.writeTrainerError(w, r, "train voice", err)
		return
	}
	writeJSON(w, http.StatusOK, TrainResponse{VoiceID: voiceID, Model: model})
}

// Synthesize handles POST /api/voices/{id}/synthesize requests.
func (h *Handlers) Synthesize(w http.ResponseWriter, r *http.Request) {
	voiceID, ok := h.voiceID(w, r)
	if !ok {
		return
	}
	var req SynthesizeRequest
	if !h.decodeJSON(w, r, &req, false) {
		return
	}

	wav, err := h.voices.Synthesize(r.Context(), voiceID, req.Text)
	if err != nil {
		h.writeTrainerError(w, r, "synthesize", err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(wav); err != nil {
		h.requestLogger(r).Warn("failed to write audio response", slog.String("error", err.Error()))
	}
}

func (h *Handlers) voiceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	voiceID := r.PathValue("id")
	if !id.Valid(voiceID) {
		writeError(w, http.StatusBadRequest, "invalid voice id", "INVALID_VOICE_ID")
		return "", false
	}
	return voiceID, true
}

// decodeJSON decodes and validates the body into dst. With allowEmpty an
// empty body leaves dst at its zero value.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		h.requestLogger(r).Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.requestLogger(r).Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) writeTrainerError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, trainer.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, trainer.ErrInvalidVoiceID):
		writeError(w, http.StatusBadRequest, "invalid voice id", "INVALID_VOICE_ID")
	case errors.Is(err, trainer.ErrVoiceNotFound):
		writeError(w, http.StatusNotFound, "voice not found", "VOICE_NOT_FOUND")
	case errors.Is(err, trainer.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "model not found", "MODEL_NOT_FOUND")
	case errors.Is(err, trainer.ErrNoTrainingData):
		writeError(w, http.StatusConflict, "no training data", "NO_TRAINING_DATA")
	default:
		h.requestLogger(r).Error("voice operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed", "VOICE_OPERATION_FAILED")
	}
}

func (h *Handlers) requestLogger(r *http.Request) *slog.Logger {
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		return h.logger.With(slog.String("request_id", rid))
	}
	return h.logger
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
