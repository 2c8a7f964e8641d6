package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/marbeck/viperdojo/internal/interpret"
	"gopkg.in/yaml.v3"
)

// ValidVoiceNames lists the prebuilt Gemini voices known to work with the
// realtime audio models. Used by [Validate] to warn about likely typos.
var ValidVoiceNames = []string{
	"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals. An empty agent API key falls back to the GEMINI_API_KEY
// environment variable.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.Agent.APIKey == "" {
		cfg.Agent.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Agent
	if cfg.Agent.APIKey == "" {
		slog.Warn("agent.api_key is empty and GEMINI_API_KEY is not set; the session will fail to connect")
	}
	if v := cfg.Agent.Voice; v != "" && !slices.Contains(ValidVoiceNames, v) {
		slog.Warn("unknown voice name — may be a typo or a newly released voice",
			"voice", v,
			"known", ValidVoiceNames,
		)
	}

	// Capture
	if cfg.Capture.SampleRate < 16000 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is below the 16000 Hz wire rate; audio can only be downsampled", cfg.Capture.SampleRate))
	}
	if cfg.Capture.AudioFormat == "" {
		errs = append(errs, errors.New("capture.audio_format is required"))
	}

	// Recording
	if cfg.Recording.Dir == "" {
		errs = append(errs, errors.New("recording.dir is required"))
	}

	// Game tunables
	errs = append(errs, validateDeltas(cfg.Game.Deltas)...)
	if s := cfg.Game.Salience; s.ConfidenceDrop <= 0 || s.ConfidenceBoost <= 0 || s.PatienceDrop <= 0 {
		errs = append(errs, errors.New("game.salience thresholds must be positive"))
	}
	if cfg.Game.SilenceCheckInterval <= 0 {
		errs = append(errs, errors.New("game.silence_check_interval must be positive"))
	}
	if cfg.Game.SilenceTimeout < cfg.Game.SilenceCheckInterval {
		slog.Warn("game.silence_timeout is shorter than the check interval; every check will penalise",
			"timeout", cfg.Game.SilenceTimeout,
			"interval", cfg.Game.SilenceCheckInterval,
		)
	}
	if cfg.Game.SilencePenalty < 0 {
		errs = append(errs, fmt.Errorf("game.silence_penalty %d must not be negative", cfg.Game.SilencePenalty))
	}
	if cfg.Game.SpeakThreshold > cfg.Game.LoudThreshold {
		slog.Warn("game.speak_threshold exceeds game.loud_threshold; any speech counts as assertive",
			"speak", cfg.Game.SpeakThreshold,
			"loud", cfg.Game.LoudThreshold,
		)
	}
	if cfg.Game.LoudBoostEvery < 0 {
		errs = append(errs, fmt.Errorf("game.loud_boost_every %d must not be negative", cfg.Game.LoudBoostEvery))
	}
	if cfg.Game.VideoSampleInterval <= 0 {
		errs = append(errs, errors.New("game.video_sample_interval must be positive"))
	}

	// Analysis
	if cfg.Analysis.Enabled && cfg.Agent.APIKey == "" {
		slog.Warn("analysis.enabled is set but no API key is available; the debrief will be skipped")
	}

	return errors.Join(errs...)
}

// validateDeltas rejects negative score magnitudes. Deltas are stored as
// magnitudes and applied with their sign by the interpreter, so a negative
// value would silently invert a penalty into a reward.
func validateDeltas(d interpret.Deltas) []error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int
	}{
		{"weak_eye_contact", d.WeakEyeContact},
		{"strong_eye_contact", d.StrongEyeContact},
		{"bad_posture", d.BadPosture},
		{"good_posture", d.GoodPosture},
		{"nervous", d.Nervous},
		{"confident", d.Confident},
		{"impressed", d.Impressed},
		{"frustrated", d.Frustrated},
		{"dismissive", d.Dismissive},
		{"default", d.Default},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("game.deltas.%s %d must not be negative", f.name, f.value))
		}
	}
	return errs
}
