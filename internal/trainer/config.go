// Package trainer manages custom voices: their configuration, training
// data, trained model descriptors and placeholder synthesis.
package trainer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/cyn-api/internal/trainer/id"
)

// VoiceConfig holds the identification and training parameters of a voice.
type VoiceConfig struct {
	VoiceID     string `json:"voice_id" validate:"required,voiceid"`
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description,omitempty" validate:"max=1024"`

	SamplingRate int `json:"sampling_rate" validate:"required,oneof=8000 16000 22050 24000 44100 48000"`
	FrameSize    int `json:"frame_size" validate:"required,min=64,max=8192"`
	HopSize      int `json:"hop_size" validate:"required,min=1,ltefield=FrameSize"`

	Features Features `json:"features"`

	Epochs       int     `json:"epochs" validate:"required,min=1,max=100000"`
	BatchSize    int     `json:"batch_size" validate:"required,min=1,max=4096"`
	LearningRate float64 `json:"learning_rate" validate:"gt=0,lte=1"`
}

// Features selects the acoustic features extracted during training.
type Features struct {
	UseMFCC    bool `json:"use_mfcc"`
	UseF0      bool `json:"use_f0"`
	UseProsody bool `json:"use_prosody"`
}

// DefaultVoiceConfig returns the configuration used for omitted fields.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		VoiceID:      "custom_voice_1",
		Name:         "Custom Voice",
		Description:  "Custom trained voice model",
		SamplingRate: 22050,
		FrameSize:    1024,
		HopSize:      256,
		Features: Features{
			UseMFCC:    true,
			UseF0:      true,
			UseProsody: true,
		},
		Epochs:       100,
		BatchSize:    32,
		LearningRate: 0.001,
	}
}

// ParseVoiceConfig decodes a partial JSON configuration over the defaults.
// An empty body yields the defaults.
func ParseVoiceConfig(data []byte) (VoiceConfig, error) {
	cfg := DefaultVoiceConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return VoiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("voiceid", func(fl validator.FieldLevel) bool {
		return id.Valid(fl.Field().String())
	})
	return v
}
