package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// FFPlaySink plays little-endian 16-bit mono PCM through an ffplay
// subprocess. It implements io.WriteCloser so it can back a Scheduler.
type FFPlaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	closeOnce sync.Once
	closeErr  error
}

// StartFFPlaySink launches ffplay reading raw PCM at the given rate from
// stdin. Path empty means "ffplay" on PATH.
func StartFFPlaySink(path string, rate int) (*FFPlaySink, error) {
	if path == "" {
		path = "ffplay"
	}
	if rate <= 0 {
		rate = PlaybackRate
	}

	cmd := exec.Command(path,
		"-hide_banner", "-loglevel", "warning",
		"-nodisp", "-autoexit",
		"-f", "s16le",
		"-ar", fmt.Sprint(rate),
		"-ch_layout", "mono",
		"-i", "-",
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffplay stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	slog.Info("playback sink started", "rate", rate)
	return &FFPlaySink{cmd: cmd, stdin: stdin}, nil
}

func (p *FFPlaySink) Write(pcm []byte) (int, error) {
	return p.stdin.Write(pcm)
}

// Close ends the PCM stream and waits for ffplay to drain and exit.
func (p *FFPlaySink) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()
		p.closeErr = ignoreExitErr(p.cmd.Wait())
	})
	return p.closeErr
}
