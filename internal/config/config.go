// Package config loads the reticle YAML configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Mode selects what the control loop does with a selected target.
type Mode string

const (
	ModeTrack   Mode = "track"
	ModeTrigger Mode = "trigger"
)

// ParseMode accepts "track" or "trigger".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTrack, ModeTrigger:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

// Tuning is the part of the configuration a stored profile can override.
type Tuning struct {
	Kp       float32 `yaml:"kp" json:"kp"`
	Ki       float32 `yaml:"ki" json:"ki"`
	Kd       float32 `yaml:"kd" json:"kd"`
	MaxRange float32 `yaml:"max_range" json:"max_range"`
	MaxSpeed int32   `yaml:"max_speed" json:"max_speed"`

	TrackingOnLeft  bool `yaml:"tracking_on_left" json:"tracking_on_left"`
	TrackingOnRight bool `yaml:"tracking_on_right" json:"tracking_on_right"`
	TriggerBotMode  bool `yaml:"trigger_bot_mode" json:"trigger_bot_mode"`
	TriggerOnRight  bool `yaml:"trigger_on_right" json:"trigger_on_right"`
	TriggerOnSide   bool `yaml:"trigger_on_side" json:"trigger_on_side"`

	ConfThreshold     float32 `yaml:"conf_threshold" json:"conf_threshold"`
	IOUThreshold      float32 `yaml:"iou_threshold" json:"iou_threshold"`
	TriggerBoxPadding float32 `yaml:"trigger_box_padding" json:"trigger_box_padding"`
}

// Mode returns the loop mode implied by TriggerBotMode.
func (t Tuning) Mode() Mode {
	if t.TriggerBotMode {
		return ModeTrigger
	}
	return ModeTrack
}

// Overlay returns t with every key present in the JSON document raw
// replaced. Unknown keys are rejected.
func (t Tuning) Overlay(raw []byte) (Tuning, error) {
	out := t
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return t, fmt.Errorf("%w: profile settings: %v", ErrInvalidConfig, err)
	}
	return out, nil
}

// Config is the full runtime configuration.
type Config struct {
	Tuning `yaml:",inline"`

	ModelPath       string  `yaml:"model_path"`
	InputSize       int     `yaml:"input_size"`
	CaptureSource   string  `yaml:"capture_source"`
	CaptureFPS      int     `yaml:"capture_fps"`
	IdleFPS         int     `yaml:"idle_fps"`
	ScreenWidth     int     `yaml:"screen_width"`
	ScreenHeight    int     `yaml:"screen_height"`
	ChangeThreshold float64 `yaml:"change_threshold"`

	PluginDir      string `yaml:"plugin_dir"`
	ActuatorPlugin string `yaml:"actuator_plugin"`
	ListenerPlugin string `yaml:"listener_plugin"`
	PanicKey       string `yaml:"panic_key"`

	ServerAddr string `yaml:"server_addr"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`
	LogPretty  bool   `yaml:"log_pretty"`
	Tray       bool   `yaml:"tray"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Tuning: Tuning{
			Kp:                0.4,
			Ki:                0.02,
			Kd:                0.01,
			MaxRange:          300,
			MaxSpeed:          40,
			TrackingOnLeft:    true,
			TrackingOnRight:   false,
			TriggerOnRight:    true,
			ConfThreshold:     0.5,
			IOUThreshold:      0.45,
			TriggerBoxPadding: 4,
		},
		ModelPath:       "models/yolo.onnx",
		InputSize:       640,
		CaptureSource:   "screen",
		CaptureFPS:      60,
		IdleFPS:         5,
		ScreenWidth:     1920,
		ScreenHeight:    1080,
		ChangeThreshold: 0.2,
		PluginDir:       "plugins",
		ActuatorPlugin:  "xdotool",
		ListenerPlugin:  "evdev-listen",
		PanicKey:        "End",
		ServerAddr:      "127.0.0.1:8080",
		DBPath:          "reticle.db",
		LogLevel:        "info",
		LogPretty:       true,
		Tray:            true,
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the tuning ranges on their own. A profile overlaid on a
// valid base must still pass before it is used.
func (t Tuning) Validate() error {
	if errs := t.problems(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (t Tuning) problems() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(t.ConfThreshold >= 0 && t.ConfThreshold <= 1, "conf_threshold must be in [0,1], got %v", t.ConfThreshold)
	check(t.IOUThreshold >= 0 && t.IOUThreshold <= 1, "iou_threshold must be in [0,1], got %v", t.IOUThreshold)
	check(t.MaxRange >= 0, "max_range must be >= 0, got %v", t.MaxRange)
	check(t.MaxSpeed >= 0, "max_speed must be >= 0, got %v", t.MaxSpeed)
	return errs
}

// Validate checks ranges and returns every problem joined under
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	errs = append(errs, c.Tuning.problems()...)
	check(c.InputSize > 0, "input_size must be > 0, got %d", c.InputSize)
	check(c.CaptureFPS > 0, "capture_fps must be > 0, got %d", c.CaptureFPS)
	check(c.IdleFPS > 0 && c.IdleFPS <= c.CaptureFPS, "idle_fps must be in (0, capture_fps], got %d", c.IdleFPS)
	check(c.ScreenWidth > 0 && c.ScreenHeight > 0, "screen size must be positive, got %dx%d", c.ScreenWidth, c.ScreenHeight)
	check(c.ChangeThreshold >= 0, "change_threshold must be >= 0, got %v", c.ChangeThreshold)
	check(c.CaptureSource != "", "capture_source is required")

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
