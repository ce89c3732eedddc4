package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`
	TickRateHz      int    `yaml:"tick_rate_hz"`

	Interactor   Interactor   `yaml:"interactor"`
	Interactable Interactable `yaml:"interactable"`
	Net          Net          `yaml:"net"`
}

type Interactor struct {
	ScanFrequencyMs int     `yaml:"scan_frequency_ms"`
	ScanDistance    float64 `yaml:"scan_distance"`
	CanInteract     bool    `yaml:"can_interact"`
	EyeHeight       float64 `yaml:"eye_height"`
}

// Interactable holds the defaults applied to catalog objects that leave a
// field unset.
type Interactable struct {
	InteractionTimeMs        int     `yaml:"interaction_time_ms"`
	InteractionDistance      float64 `yaml:"interaction_distance"`
	AllowMultipleInteractors bool    `yaml:"allow_multiple_interactors"`
	NameText                 string  `yaml:"name_text"`
	ActionText               string  `yaml:"action_text"`
}

type Net struct {
	ActRatePerSec float64 `yaml:"act_rate_per_sec"`
	ActBurst      int     `yaml:"act_burst"`
	MaxQueue      int     `yaml:"max_queue"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		Interactor: Interactor{
			ScanFrequencyMs: 0,
			ScanDistance:    1000,
			CanInteract:     true,
			EyeHeight:       64,
		},
		Interactable: Interactable{
			InteractionTimeMs:        0,
			InteractionDistance:      500,
			AllowMultipleInteractors: true,
			NameText:                 "Interactable Object",
			ActionText:               "Interact",
		},
		Net: Net{
			ActRatePerSec: 20,
			ActBurst:      40,
			MaxQueue:      256,
		},
	}
}

// Load reads path over Defaults(); keys missing from the file keep their
// default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0, got %d", t.TickRateHz)
	case t.Interactor.ScanFrequencyMs < 0:
		return fmt.Errorf("interactor.scan_frequency_ms must be >= 0")
	case t.Interactor.ScanDistance <= 0:
		return fmt.Errorf("interactor.scan_distance must be > 0")
	case t.Interactable.InteractionTimeMs < 0:
		return fmt.Errorf("interactable.interaction_time_ms must be >= 0")
	case t.Interactable.InteractionDistance <= 0:
		return fmt.Errorf("interactable.interaction_distance must be > 0")
	case t.Net.MaxQueue <= 0:
		return fmt.Errorf("net.max_queue must be > 0")
	}
	return nil
}

func (t Tuning) TickDuration() time.Duration {
	if t.TickRateHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(t.TickRateHz)
}

func (i Interactor) ScanFrequency() time.Duration {
	return time.Duration(i.ScanFrequencyMs) * time.Millisecond
}

func (i Interactable) InteractionTime() time.Duration {
	return time.Duration(i.InteractionTimeMs) * time.Millisecond
}
