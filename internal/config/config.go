// Package config provides the configuration schema and loader for the
// negotiation trainer.
package config

import (
	"time"

	"github.com/marbeck/viperdojo/internal/game"
	"github.com/marbeck/viperdojo/internal/interpret"
)

// LogLevel controls log verbosity for the trainer.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the trainer.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Agent     AgentConfig     `yaml:"agent"`
	Capture   CaptureConfig   `yaml:"capture"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Recording RecordingConfig `yaml:"recording"`
	Game      GameConfig      `yaml:"game"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

// ServerConfig holds observability and logging settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AgentConfig configures the realtime voice agent playing the negotiation
// counterpart.
type AgentConfig struct {
	// APIKey authenticates against the Gemini API. When empty, the loader
	// falls back to the GEMINI_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// Model is the realtime model identifier. Leave empty to use the
	// built-in default.
	Model string `yaml:"model"`

	// Voice is the prebuilt voice name used for the agent's speech.
	Voice string `yaml:"voice"`

	// SystemPrompt overrides the built-in persona instructions.
	SystemPrompt string `yaml:"system_prompt"`

	// Kickstart is the opening line sent as the player's first turn so the
	// agent speaks immediately after setup.
	Kickstart string `yaml:"kickstart"`
}

// CaptureConfig configures microphone and camera capture via ffmpeg.
type CaptureConfig struct {
	// FFmpegPath is the ffmpeg binary. Defaults to "ffmpeg" on PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// AudioFormat is the ffmpeg input format for the microphone
	// (e.g., "pulse", "alsa", "avfoundation").
	AudioFormat string `yaml:"audio_format"`

	// AudioDevice is the microphone device name for AudioFormat.
	AudioDevice string `yaml:"audio_device"`

	// SampleRate is the microphone capture rate in Hz. Must be at least
	// the 16 kHz wire rate; audio is downsampled before upload.
	SampleRate int `yaml:"sample_rate"`

	// VideoFormat is the ffmpeg input format for the camera (e.g., "v4l2").
	VideoFormat string `yaml:"video_format"`

	// VideoDevice is the camera device (e.g., "/dev/video0").
	VideoDevice string `yaml:"video_device"`
}

// PlaybackConfig configures agent speech playback.
type PlaybackConfig struct {
	// FFplayPath is the ffplay binary. Defaults to "ffplay" on PATH.
	FFplayPath string `yaml:"ffplay_path"`
}

// RecordingConfig configures the session recording artifacts.
type RecordingConfig struct {
	// Dir is the directory recordings and archives are written to.
	Dir string `yaml:"dir"`

	// StorePath is the SQLite database holding session summaries.
	StorePath string `yaml:"store_path"`

	// VideoCodec is the preferred recording video codec. The recorder
	// falls back to ffmpeg's default when the codec is unavailable.
	VideoCodec string `yaml:"video_codec"`

	// AudioCodec is the preferred recording audio codec.
	AudioCodec string `yaml:"audio_codec"`
}

// GameConfig holds the scoring tunables.
type GameConfig struct {
	// Deltas are the score magnitudes applied per interpreted cue.
	Deltas interpret.Deltas `yaml:"deltas"`

	// Salience sets which score swings are recorded as key moments.
	Salience game.Salience `yaml:"salience"`

	// SilenceCheckInterval is how often the silence watchdog runs.
	SilenceCheckInterval time.Duration `yaml:"silence_check_interval"`

	// SilenceTimeout is how long the player may stay quiet before a
	// silence strike costs them confidence.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`

	// SilencePenalty is the confidence lost per silence strike.
	SilencePenalty int `yaml:"silence_penalty"`

	// SpeakThreshold is the frame volume above which the player counts
	// as speaking.
	SpeakThreshold float64 `yaml:"speak_threshold"`

	// LoudThreshold is the frame volume above which delivery counts as
	// assertive.
	LoudThreshold float64 `yaml:"loud_threshold"`

	// LoudBoostEvery awards one confidence point per this many frames
	// above LoudThreshold. Zero disables the boost.
	LoudBoostEvery int `yaml:"loud_boost_every"`

	// VideoSampleInterval is how often a camera frame is uploaded.
	VideoSampleInterval time.Duration `yaml:"video_sample_interval"`
}

// AnalysisConfig configures the post-session coaching report.
type AnalysisConfig struct {
	// Enabled turns the LLM debrief on. Requires an API key.
	Enabled bool `yaml:"enabled"`

	// Model selects the analysis model. Leave empty for the default.
	Model string `yaml:"model"`
}

// Default returns a Config populated with working defaults for a Linux
// desktop with PulseAudio and a v4l2 webcam. [LoadFromReader] decodes on
// top of these, so a config file only needs the fields it changes.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Capture: CaptureConfig{
			FFmpegPath:  "ffmpeg",
			AudioFormat: "pulse",
			AudioDevice: "default",
			SampleRate:  48000,
			VideoFormat: "v4l2",
			VideoDevice: "/dev/video0",
		},
		Playback: PlaybackConfig{
			FFplayPath: "ffplay",
		},
		Recording: RecordingConfig{
			Dir:        "recordings",
			StorePath:  "recordings/sessions.db",
			VideoCodec: "libvpx-vp9",
			AudioCodec: "libopus",
		},
		Game: GameConfig{
			Deltas:               interpret.DefaultDeltas(),
			Salience:             game.DefaultSalience(),
			SilenceCheckInterval: 3 * time.Second,
			SilenceTimeout:       5 * time.Second,
			SilencePenalty:       3,
			SpeakThreshold:       2,
			LoudThreshold:        5,
			LoudBoostEvery:       10,
			VideoSampleInterval:  time.Second,
		},
		Analysis: AnalysisConfig{
			Enabled: true,
		},
	}
}
