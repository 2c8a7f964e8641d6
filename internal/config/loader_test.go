package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("agent:\n  api_key: test-key\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, LogInfo)
	}
	if cfg.Capture.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.Capture.SampleRate)
	}
	if cfg.Capture.AudioFormat != "pulse" {
		t.Errorf("AudioFormat = %q, want pulse", cfg.Capture.AudioFormat)
	}
	if cfg.Game.SilenceTimeout != 5*time.Second {
		t.Errorf("SilenceTimeout = %v, want 5s", cfg.Game.SilenceTimeout)
	}
	if cfg.Game.Deltas.Frustrated != 12 {
		t.Errorf("Deltas.Frustrated = %d, want 12", cfg.Game.Deltas.Frustrated)
	}
	if !cfg.Analysis.Enabled {
		t.Error("Analysis.Enabled = false, want true by default")
	}
}

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	yaml := `
server:
  log_level: debug
agent:
  api_key: test-key
  voice: Puck
capture:
  sample_rate: 44100
game:
  deltas:
    frustrated: 20
  silence_timeout: 10s
  speak_threshold: 1.5
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Agent.Voice != "Puck" {
		t.Errorf("Voice = %q, want Puck", cfg.Agent.Voice)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.Capture.SampleRate)
	}
	if cfg.Game.Deltas.Frustrated != 20 {
		t.Errorf("Deltas.Frustrated = %d, want 20", cfg.Game.Deltas.Frustrated)
	}
	// Untouched sibling fields keep their defaults.
	if cfg.Game.Deltas.Dismissive != 10 {
		t.Errorf("Deltas.Dismissive = %d, want default 10", cfg.Game.Deltas.Dismissive)
	}
	if cfg.Game.SilenceTimeout != 10*time.Second {
		t.Errorf("SilenceTimeout = %v, want 10s", cfg.Game.SilenceTimeout)
	}
	if cfg.Game.SpeakThreshold != 1.5 {
		t.Errorf("SpeakThreshold = %v, want 1.5", cfg.Game.SpeakThreshold)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("agent:\n  api_keey: oops\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReaderEnvFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Agent.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Agent.APIKey)
	}
}

func TestLoadFromReaderExplicitKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadFromReader(strings.NewReader("agent:\n  api_key: file-key\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Agent.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key", cfg.Agent.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dojo.yaml")
	data := "agent:\n  api_key: test-key\nrecording:\n  dir: /tmp/rec\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recording.Dir != "/tmp/rec" {
		t.Errorf("Recording.Dir = %q, want /tmp/rec", cfg.Recording.Dir)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "loud" },
			wantSub: "server.log_level",
		},
		{
			name:    "sample rate below wire rate",
			mutate:  func(c *Config) { c.Capture.SampleRate = 8000 },
			wantSub: "capture.sample_rate",
		},
		{
			name:    "missing audio format",
			mutate:  func(c *Config) { c.Capture.AudioFormat = "" },
			wantSub: "capture.audio_format",
		},
		{
			name:    "missing recording dir",
			mutate:  func(c *Config) { c.Recording.Dir = "" },
			wantSub: "recording.dir",
		},
		{
			name:    "negative delta",
			mutate:  func(c *Config) { c.Game.Deltas.Nervous = -3 },
			wantSub: "game.deltas.nervous",
		},
		{
			name:    "zero salience threshold",
			mutate:  func(c *Config) { c.Game.Salience.PatienceDrop = 0 },
			wantSub: "game.salience",
		},
		{
			name:    "zero silence check interval",
			mutate:  func(c *Config) { c.Game.SilenceCheckInterval = 0 },
			wantSub: "game.silence_check_interval",
		},
		{
			name:    "negative silence penalty",
			mutate:  func(c *Config) { c.Game.SilencePenalty = -1 },
			wantSub: "game.silence_penalty",
		},
		{
			name:    "zero video sample interval",
			mutate:  func(c *Config) { c.Game.VideoSampleInterval = 0 },
			wantSub: "game.video_sample_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			cfg.Agent.APIKey = "test-key"
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Agent.APIKey = "test-key"
	cfg.Server.LogLevel = "loud"
	cfg.Capture.SampleRate = 0
	cfg.Recording.Dir = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, sub := range []string{"server.log_level", "capture.sample_rate", "recording.dir"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error %q is missing %q", err, sub)
		}
	}
}

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Agent.APIKey = "test-key"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}
