// Package recorder captures the negotiation as a webm artifact and keeps the
// session timeline: key moments with their timestamp offsets and the final
// summary handed to post-session analysis and storage.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/marbeck/viperdojo/internal/game"
)

// Config describes the recording inputs and encoding preferences.
type Config struct {
	// Dir is where artifacts are written. Empty means the working directory.
	Dir string

	FFmpegPath  string
	AudioFormat string // e.g. "pulse"
	AudioDevice string
	VideoFormat string // e.g. "v4l2"
	VideoDevice string

	// VideoCodec/AudioCodec are the preferred encoders. If the recording
	// process refuses to start with them, recording retries with ffmpeg's
	// webm defaults before giving up.
	VideoCodec string
	AudioCodec string
}

func (c *Config) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "pulse"
	}
	if c.AudioDevice == "" {
		c.AudioDevice = "default"
	}
	if c.VideoFormat == "" {
		c.VideoFormat = "v4l2"
	}
	if c.VideoDevice == "" {
		c.VideoDevice = "/dev/video0"
	}
	if c.VideoCodec == "" {
		c.VideoCodec = "libvpx-vp9"
	}
	if c.AudioCodec == "" {
		c.AudioCodec = "libopus"
	}
}

// Moment is one timestamped entry in the session timeline.
type Moment struct {
	Offset      time.Duration   `json:"offset"`
	Kind        game.MomentKind `json:"kind"`
	Description string          `json:"description"`
	Confidence  int             `json:"confidence"`
	Patience    int             `json:"patience"`
}

// Summary is the full record of a finished session. The outcome is one of
// won, lost, or abandoned; a game that never resolved is tagged abandoned.
type Summary struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Outcome   game.Outcome  `json:"outcome"`
	Rounds    int           `json:"rounds"`

	StartingConfidence    int `json:"startingConfidence"`
	StartingPatience      int `json:"startingPatience"`
	EndingConfidence      int `json:"endingConfidence"`
	EndingPatience        int `json:"endingPatience"`
	BiggestConfidenceDrop int `json:"biggestConfidenceDrop"`
	BiggestPatienceDrop   int `json:"biggestPatienceDrop"`

	Moments      []Moment `json:"moments"`
	ArtifactPath string   `json:"artifactPath"`
}

// Recorder owns one recording at a time. It implements game.MomentSink so the
// tracker can feed the timeline directly. Safe for concurrent use.
type Recorder struct {
	cfg Config

	mu        sync.Mutex
	cmd       *exec.Cmd
	waitErr   chan error
	active    bool
	startedAt time.Time
	path      string
	moments   []Moment
	lastOff   time.Duration

	now func() time.Time
}

var _ game.MomentSink = (*Recorder)(nil)

// New returns an idle Recorder.
func New(cfg Config) *Recorder {
	cfg.applyDefaults()
	return &Recorder{cfg: cfg, now: time.Now}
}

// Start launches the capture process and opens the timeline. It is an error
// to start an already-active recorder.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return errors.New("recorder: already recording")
	}
	r.mu.Unlock()

	path := filepath.Join(r.cfg.Dir, artifactName(r.now()))
	cmd, waitErr, err := r.launch(ctx, path, true)
	if err != nil {
		slog.Warn("preferred codecs unavailable, retrying with container defaults",
			"video", r.cfg.VideoCodec,
			"audio", r.cfg.AudioCodec,
			"error", err,
		)
		cmd, waitErr, err = r.launch(ctx, path, false)
		if err != nil {
			return fmt.Errorf("recorder: start capture: %w", err)
		}
	}

	r.mu.Lock()
	r.cmd = cmd
	r.waitErr = waitErr
	r.mu.Unlock()
	r.begin(path)

	slog.Info("recording started", "path", path)
	return nil
}

// begin opens the timeline. Split from Start so the moment bookkeeping can be
// exercised without a capture process.
func (r *Recorder) begin(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.startedAt = r.now()
	r.path = path
	r.moments = nil
	r.lastOff = 0
}

func (r *Recorder) launch(ctx context.Context, path string, preferredCodecs bool) (*exec.Cmd, chan error, error) {
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", r.cfg.AudioFormat, "-i", r.cfg.AudioDevice,
		"-f", r.cfg.VideoFormat, "-i", r.cfg.VideoDevice,
	}
	if preferredCodecs {
		args = append(args, "-c:v", r.cfg.VideoCodec, "-c:a", r.cfg.AudioCodec)
	}
	args = append(args, "-y", path)

	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		if err == nil {
			err = errors.New("capture process exited immediately")
		}
		return nil, nil, err
	case <-time.After(250 * time.Millisecond):
	}
	return cmd, waitErr, nil
}

// AddMoment appends a timeline entry. Moments arriving while no recording is
// active are dropped. Offsets never decrease, even if the wall clock does.
func (r *Recorder) AddMoment(kind game.MomentKind, description string, confidence, patience int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}

	off := r.now().Sub(r.startedAt)
	if off < r.lastOff {
		off = r.lastOff
	}
	r.lastOff = off

	r.moments = append(r.moments, Moment{
		Offset:      off,
		Kind:        kind,
		Description: description,
		Confidence:  confidence,
		Patience:    patience,
	})
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Stop ends the recording and returns the session summary built from the
// timeline and the final tracker snapshot. Stopping an idle recorder is an
// error.
func (r *Recorder) Stop(snap game.Snapshot) (*Summary, error) {
	r.mu.Lock()
	cmd, waitErr := r.cmd, r.waitErr
	r.cmd, r.waitErr = nil, nil
	r.mu.Unlock()

	if cmd != nil {
		// Interrupt lets ffmpeg finalize the container index; a hard kill
		// would leave an unseekable artifact.
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-waitErr:
		case <-time.After(3 * time.Second):
			_ = cmd.Process.Kill()
			<-waitErr
		}
	}

	return r.finish(snap)
}

// finish closes the timeline and assembles the summary.
func (r *Recorder) finish(snap game.Snapshot) (*Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, errors.New("recorder: not recording")
	}
	r.active = false

	outcome := snap.Outcome
	if outcome == game.OutcomeActive || outcome == "" {
		outcome = game.OutcomeAbandoned
	}

	s := &Summary{
		StartedAt:             r.startedAt,
		Duration:              r.now().Sub(r.startedAt),
		Outcome:               outcome,
		Rounds:                snap.Round,
		StartingConfidence:    game.StartingScore,
		StartingPatience:      game.StartingScore,
		EndingConfidence:      snap.Confidence,
		EndingPatience:        snap.Patience,
		BiggestConfidenceDrop: snap.BiggestConfidenceDrop,
		BiggestPatienceDrop:   snap.BiggestPatienceDrop,
		Moments:               r.moments,
		ArtifactPath:          r.path,
	}
	r.moments = nil

	slog.Info("recording stopped",
		"path", s.ArtifactPath,
		"duration", s.Duration,
		"outcome", string(s.Outcome),
		"moments", len(s.Moments),
	)
	return s, nil
}

// artifactName returns the dated artifact file name, e.g.
// "negotiation-dojo-2026-08-29.webm".
func artifactName(t time.Time) string {
	return fmt.Sprintf("negotiation-dojo-%s.webm", t.Format("2006-01-02"))
}
