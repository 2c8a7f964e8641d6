package audio

import (
	"math"
	"time"
)

// Framer accumulates an arbitrary stream of mono float32 samples into
// fixed-size Frames and computes the RMS volume of each one. Partial input is
// buffered across calls; a trailing partial frame can be forced out with
// Flush. Create one per stream; not designed for shared use across goroutines.
type Framer struct {
	size       int
	sampleRate int
	buf        []float32
	now        func() time.Time
}

// NewFramer returns a Framer emitting frames of size samples at the given
// source rate. A size <= 0 falls back to FrameSize.
func NewFramer(size, sampleRate int) *Framer {
	if size <= 0 {
		size = FrameSize
	}
	return &Framer{
		size:       size,
		sampleRate: sampleRate,
		buf:        make([]float32, 0, size),
		now:        time.Now,
	}
}

// Push appends samples to the accumulator and returns every complete frame
// produced. The returned frames own their sample slices.
func (f *Framer) Push(samples []float32) []Frame {
	f.buf = append(f.buf, samples...)

	var frames []Frame
	for len(f.buf) >= f.size {
		chunk := make([]float32, f.size)
		copy(chunk, f.buf[:f.size])
		f.buf = f.buf[:copy(f.buf, f.buf[f.size:])]
		frames = append(frames, f.emit(chunk))
	}
	return frames
}

// Flush emits any buffered partial samples as a final short frame.
// It returns false if nothing was buffered.
func (f *Framer) Flush() (Frame, bool) {
	if len(f.buf) == 0 {
		return Frame{}, false
	}
	chunk := make([]float32, len(f.buf))
	copy(chunk, f.buf)
	f.buf = f.buf[:0]
	return f.emit(chunk), true
}

func (f *Framer) emit(samples []float32) Frame {
	return Frame{
		Samples:    samples,
		SampleRate: f.sampleRate,
		Timestamp:  f.now(),
		Volume:     RMSVolume(samples),
	}
}

// RMSVolume returns sqrt(mean(s^2)) * 100 for the given samples.
// An empty slice yields 0.
func RMSVolume(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum/float64(len(samples))) * 100
}
