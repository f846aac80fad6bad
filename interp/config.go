package interp

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Config holds the interpreter's tunables. Grounded on the teacher's
// defaults->merge->validate pipeline (runtime/config.go's InitializeConfig).
type Config struct {
	// StepTimeoutSeconds bounds a single request step's round trip.
	StepTimeoutSeconds int `default:"30" validate:"min=1"`
	// InterStepDelayMS is applied between sibling steps when nonzero.
	InterStepDelayMS int `default:"0" validate:"min=0"`
	// ContinuousRunDelayMS is applied between continuous-run iterations.
	ContinuousRunDelayMS int `default:"1000" validate:"min=0"`
}

// NewConfig builds a Config by applying struct-tag defaults, decoding
// overrides on top (only keys present in overrides are touched), then
// validating the result.
func NewConfig(overrides map[string]any) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply interpreter config defaults: %w", err)
	}
	if len(overrides) > 0 {
		if err := mapstructure.Decode(overrides, cfg); err != nil {
			return nil, fmt.Errorf("failed to apply interpreter config overrides: %w", err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid interpreter config: %w", err)
	}
	return cfg, nil
}
