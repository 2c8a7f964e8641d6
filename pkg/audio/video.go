package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// VideoConfig describes the camera source for an ffmpeg MJPEG stream.
type VideoConfig struct {
	FFmpegPath  string
	InputFormat string // e.g. "v4l2"
	InputDevice string // e.g. "/dev/video0"
	// FrameRate is the camera poll rate. The session samples the latest frame
	// on its own clock, so 1 fps is usually enough.
	FrameRate int
}

func (c *VideoConfig) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.InputFormat == "" {
		c.InputFormat = "v4l2"
	}
	if c.InputDevice == "" {
		c.InputDevice = "/dev/video0"
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 1
	}
}

// VideoSampler runs an ffmpeg subprocess that streams JPEG frames from the
// camera and keeps only the most recent one. Latest never blocks on the
// camera; a slow or stalled device just yields a stale frame.
type VideoSampler struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	waitErr chan error

	mu     sync.Mutex
	latest []byte

	stopOnce sync.Once
	stopErr  error
}

// StartVideoSampler launches the camera stream. The process is killed when
// ctx is cancelled or Close is called.
func StartVideoSampler(ctx context.Context, cfg VideoConfig) (*VideoSampler, error) {
	cfg.applyDefaults()

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-r", fmt.Sprint(cfg.FrameRate),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	}
	cmd := exec.CommandContext(ctx, cfg.FFmpegPath, args...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("video stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg video: %w", err)
	}

	v := &VideoSampler{
		cmd:     cmd,
		stdout:  stdout,
		waitErr: make(chan error, 1),
	}
	go func() { v.waitErr <- cmd.Wait() }()

	select {
	case err := <-v.waitErr:
		return nil, fmt.Errorf("ffmpeg video exited on startup: %w", err)
	case <-time.After(250 * time.Millisecond):
	}

	go v.readLoop()

	slog.Info("camera sampler started",
		"format", cfg.InputFormat,
		"device", cfg.InputDevice,
		"fps", cfg.FrameRate,
	)
	return v, nil
}

// Latest returns a copy of the most recent JPEG frame, or nil if the camera
// has not produced one yet.
func (v *VideoSampler) Latest() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.latest == nil {
		return nil
	}
	out := make([]byte, len(v.latest))
	copy(out, v.latest)
	return out
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

func (v *VideoSampler) readLoop() {
	var acc bytes.Buffer
	buf := make([]byte, 64*1024)

	for {
		n, err := v.stdout.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			for {
				frame, rest, ok := splitJPEG(acc.Bytes())
				if !ok {
					break
				}
				v.mu.Lock()
				v.latest = frame
				v.mu.Unlock()

				remaining := make([]byte, len(rest))
				copy(remaining, rest)
				acc.Reset()
				acc.Write(remaining)
			}
		}
		if err != nil {
			if err != io.EOF {
				slog.Warn("video read ended", "error", err)
			}
			return
		}
	}
}

// splitJPEG extracts the first complete SOI..EOI image from data.
func splitJPEG(data []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		return nil, nil, false
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		return nil, nil, false
	}
	end += start + 2 + len(jpegEOI)

	frame = make([]byte, end-start)
	copy(frame, data[start:end])
	return frame, data[end:], true
}

// Close stops the camera process. Safe to call more than once.
func (v *VideoSampler) Close() error {
	v.stopOnce.Do(func() {
		_ = v.cmd.Process.Signal(os.Interrupt)
		select {
		case err := <-v.waitErr:
			v.stopErr = ignoreExitErr(err)
		case <-time.After(1200 * time.Millisecond):
			_ = v.cmd.Process.Kill()
			v.stopErr = ignoreExitErr(<-v.waitErr)
		}
	})
	return v.stopErr
}
