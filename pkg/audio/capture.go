package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// CaptureConfig describes the microphone source for an ffmpeg capture process.
type CaptureConfig struct {
	// FFmpegPath is the ffmpeg binary to invoke. Empty means "ffmpeg" on PATH.
	FFmpegPath string
	// InputFormat is the ffmpeg input device format, e.g. "pulse" or "alsa".
	InputFormat string
	// InputDevice is the device name passed to -i, e.g. "default".
	InputDevice string
	// SampleRate is the capture rate in Hz requested from the device.
	SampleRate int
	// FrameSize overrides the samples-per-frame count. Zero means FrameSize.
	FrameSize int
}

func (c *CaptureConfig) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "pulse"
	}
	if c.InputDevice == "" {
		c.InputDevice = "default"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
}

// Capture runs an ffmpeg subprocess that reads the microphone and emits
// fixed-size Frames on a channel. The channel is closed when the process
// exits or Close is called.
type Capture struct {
	cfg    CaptureConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser

	frames  chan Frame
	waitErr chan error

	stopOnce sync.Once
	stopErr  error
}

// StartCapture launches ffmpeg and begins framing its PCM output. The process
// is killed when ctx is cancelled or Close is called.
func StartCapture(ctx context.Context, cfg CaptureConfig) (*Capture, error) {
	cfg.applyDefaults()

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", "1",
		"-ar", fmt.Sprint(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg capture: %w", err)
	}

	c := &Capture{
		cfg:     cfg,
		cmd:     cmd,
		stdout:  stdout,
		frames:  make(chan Frame, 8),
		waitErr: make(chan error, 1),
	}
	go func() { c.waitErr <- cmd.Wait() }()

	// Catch immediate failures (bad device, missing binary flags) before the
	// caller wires the stream into a session.
	select {
	case err := <-c.waitErr:
		return nil, fmt.Errorf("ffmpeg capture exited on startup: %w", err)
	case <-time.After(250 * time.Millisecond):
	}

	go c.readLoop()

	slog.Info("microphone capture started",
		"format", cfg.InputFormat,
		"device", cfg.InputDevice,
		"sampleRate", cfg.SampleRate,
	)
	return c, nil
}

// Frames returns the stream of captured frames. Closed on process exit.
func (c *Capture) Frames() <-chan Frame { return c.frames }

func (c *Capture) readLoop() {
	defer close(c.frames)

	framer := NewFramer(c.cfg.FrameSize, c.cfg.SampleRate)
	buf := make([]byte, FrameSize*2)
	var leftover byte
	haveLeftover := false

	for {
		n, err := c.stdout.Read(buf)
		if n > 0 {
			pcm := buf[:n]
			if haveLeftover {
				pcm = append([]byte{leftover}, pcm...)
				haveLeftover = false
			}
			if len(pcm)%2 != 0 {
				leftover = pcm[len(pcm)-1]
				haveLeftover = true
				pcm = pcm[:len(pcm)-1]
			}
			for _, frame := range framer.Push(floatSamples(pcm)) {
				c.frames <- frame
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("capture read ended", "error", err)
			}
			return
		}
	}
}

// floatSamples converts little-endian int16 PCM to float32 in [-1, 1).
func floatSamples(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(s) / 32768
	}
	return out
}

// Close stops the ffmpeg process, asking politely first and killing it if it
// ignores the interrupt. Safe to call more than once.
func (c *Capture) Close() error {
	c.stopOnce.Do(func() {
		_ = c.cmd.Process.Signal(os.Interrupt)
		select {
		case err := <-c.waitErr:
			c.stopErr = ignoreExitErr(err)
		case <-time.After(1200 * time.Millisecond):
			_ = c.cmd.Process.Kill()
			c.stopErr = ignoreExitErr(<-c.waitErr)
		}
	})
	return c.stopErr
}

// ignoreExitErr drops the expected non-zero exit from an interrupted ffmpeg.
func ignoreExitErr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
