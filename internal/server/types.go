// Package server provides the HTTP server for the Cyn voice API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/maauso/cyn-api/internal/audio"
	"github.com/maauso/cyn-api/internal/sample"
	"github.com/maauso/cyn-api/internal/trainer"
)

// UploadResponse is the HTTP response after uploading voice samples.
type UploadResponse struct {
	// Success is true when every uploaded file became a canonical sample.
	Success bool `json:"success"`
	// BatchID identifies this upload in logs and S3 keys.
	BatchID string `json:"batch_id"`
	// Processed lists the canonical sample paths produced. When split was
	// requested, split samples are replaced by their chunks.
	Processed []string `json:"processed"`
	// Files holds one outcome per uploaded file, in upload order.
	Files []FileOutcome `json:"files"`
	// Split is the splitter result when split was requested.
	Split *sample.SplitResult `json:"split,omitempty"`
	// Archived lists S3 uploads when push_to_s3 was requested.
	Archived []ArchivedSample `json:"archived,omitempty"`
}

// FileOutcome reports what happened to one uploaded file.
type FileOutcome struct {
	// Name is the client file name.
	Name string `json:"name"`
	// Outcome is ok, degraded or failed.
	Outcome audio.OutcomeKind `json:"outcome"`
	// Path is the resulting file, if any.
	Path string `json:"path,omitempty"`
	// Reason explains a degraded or failed outcome.
	Reason string `json:"reason,omitempty"`
}

// ArchivedSample is one processed sample pushed to S3.
type ArchivedSample struct {
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// ListSamplesResponse is the HTTP response for listing the sample directory.
type ListSamplesResponse struct {
	Dir     string         `json:"dir"`
	Samples []sample.Entry `json:"samples"`
}

// CreateVoiceResponse is the HTTP response after creating a voice.
type CreateVoiceResponse struct {
	VoiceID string `json:"voice_id"`
}

// TrainingDataRequest is the HTTP request body for preparing training data.
type TrainingDataRequest struct {
	// Samples are file names inside the sample directory. Empty selects
	// every trainable sample.
	Samples []string `json:"samples" validate:"omitempty,max=1000,dive,required,max=255,excludesall=/\\"`
}

// TrainingDataResponse is the HTTP response after preparing training data.
type TrainingDataResponse struct {
	VoiceID string `json:"voice_id"`
	Files   int    `json:"files"`
}

// TrainResponse is the HTTP response after training a voice.
type TrainResponse struct {
	VoiceID string        `json:"voice_id"`
	Model   trainer.Model `json:"model"`
}

// SynthesizeRequest is the HTTP request body for speech synthesis.
type SynthesizeRequest struct {
	// Text is the text to render.
	Text string `json:"text" validate:"required,max=5000"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
