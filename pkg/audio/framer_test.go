package audio

import (
	"math"
	"testing"
)

func TestFramerAccumulatesAcrossPushes(t *testing.T) {
	t.Parallel()

	f := NewFramer(8, 48000)

	if frames := f.Push(make([]float32, 5)); len(frames) != 0 {
		t.Fatalf("expected no frames from partial push, got %d", len(frames))
	}
	frames := f.Push(make([]float32, 12))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames from 17 buffered samples, got %d", len(frames))
	}
	for i, frame := range frames {
		if len(frame.Samples) != 8 {
			t.Errorf("frame %d: expected 8 samples, got %d", i, len(frame.Samples))
		}
		if frame.SampleRate != 48000 {
			t.Errorf("frame %d: expected rate 48000, got %d", i, frame.SampleRate)
		}
	}
}

func TestFramerPreservesSampleOrder(t *testing.T) {
	t.Parallel()

	f := NewFramer(4, 16000)
	in := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	frames := f.Push(in)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	for i, want := range in[:4] {
		if frames[0].Samples[i] != want {
			t.Errorf("frame 0 sample %d: got %v, want %v", i, frames[0].Samples[i], want)
		}
	}
	if frames[1].Samples[0] != 0.5 {
		t.Errorf("frame 1 starts at %v, want 0.5", frames[1].Samples[0])
	}
}

func TestFramerFlushEmitsPartial(t *testing.T) {
	t.Parallel()

	f := NewFramer(8, 48000)
	f.Push(make([]float32, 3))

	frame, ok := f.Flush()
	if !ok {
		t.Fatal("expected a partial frame from Flush")
	}
	if len(frame.Samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(frame.Samples))
	}
	if _, ok := f.Flush(); ok {
		t.Fatal("expected second Flush to be empty")
	}
}

func TestFramerDefaultSize(t *testing.T) {
	t.Parallel()

	f := NewFramer(0, 48000)
	frames := f.Push(make([]float32, FrameSize))
	if len(frames) != 1 {
		t.Fatalf("expected 1 default-size frame, got %d", len(frames))
	}
	if len(frames[0].Samples) != FrameSize {
		t.Fatalf("expected %d samples, got %d", FrameSize, len(frames[0].Samples))
	}
}

func TestRMSVolume(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{name: "empty", samples: nil, want: 0},
		{name: "silence", samples: make([]float32, 100), want: 0},
		{name: "full scale", samples: []float32{1, -1, 1, -1}, want: 100},
		{name: "half scale", samples: []float32{0.5, -0.5}, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RMSVolume(tt.samples)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMSVolume = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := Frame{Samples: make([]float32, 48000), SampleRate: 48000}
	if d := f.Duration(); d.Seconds() != 1 {
		t.Errorf("Duration = %v, want 1s", d)
	}
	if d := (Frame{}).Duration(); d != 0 {
		t.Errorf("zero frame Duration = %v, want 0", d)
	}
}
