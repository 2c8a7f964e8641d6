// Package audio provides the capture, framing, resampling, and playback
// primitives for the realtime coaching pipeline: microphone PCM in fixed
// frames with a derived volume level, block-average downsampling to the
// wire format, and a gapless playback scheduler for agent speech.
package audio

import "time"

const (
	// FrameSize is the number of mono samples accumulated per emitted Frame.
	FrameSize = 4096

	// WireRate is the sample rate in Hz of PCM sent to the remote agent.
	WireRate = 16000

	// PlaybackRate is the sample rate in Hz of PCM received from the agent.
	PlaybackRate = 24000
)

// Frame is one fixed-size buffer of mono float32 samples in [-1, 1] captured
// from the microphone. Frames are emitted as copies; callers may retain them.
type Frame struct {
	Samples    []float32
	SampleRate int
	Timestamp  time.Time

	// Volume is the root-mean-square of Samples scaled by 100.
	// Silence is near 0; normal speech typically lands between 2 and 15.
	Volume float64
}

// Duration returns the wall-clock span the frame covers at its sample rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
