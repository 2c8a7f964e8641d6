package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/marbeck/viperdojo/internal/game"
)

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stubClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stubClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTimelineRecorder() (*Recorder, *stubClock) {
	clock := &stubClock{t: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)}
	r := New(Config{Dir: "/tmp"})
	r.now = clock.now
	r.begin("/tmp/negotiation-dojo-2026-08-29.webm")
	return r, clock
}

func TestRecorderMomentOffsets(t *testing.T) {
	t.Parallel()

	r, clock := newTimelineRecorder()
	r.AddMoment(game.MomentSessionStart, "Negotiation started", 100, 100)
	clock.advance(42 * time.Second)
	r.AddMoment(game.MomentConfidenceDrop, "eyes darting", 90, 100)

	sum, err := r.finish(game.Snapshot{Outcome: game.OutcomeActive})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(sum.Moments) != 2 {
		t.Fatalf("got %d moments, want 2", len(sum.Moments))
	}
	if sum.Moments[0].Offset != 0 {
		t.Errorf("first offset = %v, want 0", sum.Moments[0].Offset)
	}
	if sum.Moments[1].Offset != 42*time.Second {
		t.Errorf("second offset = %v, want 42s", sum.Moments[1].Offset)
	}
}

func TestRecorderOffsetsNeverDecrease(t *testing.T) {
	t.Parallel()

	r, clock := newTimelineRecorder()
	clock.advance(10 * time.Second)
	r.AddMoment(game.MomentRoundStart, "Round 3 started", 80, 70)
	clock.advance(-5 * time.Second) // clock stepped backwards
	r.AddMoment(game.MomentPatienceDrop, "impressed", 80, 60)

	sum, err := r.finish(game.Snapshot{})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Moments[1].Offset < sum.Moments[0].Offset {
		t.Errorf("offsets went backwards: %v then %v", sum.Moments[0].Offset, sum.Moments[1].Offset)
	}
}

func TestRecorderDropsMomentsWhenIdle(t *testing.T) {
	t.Parallel()

	r := New(Config{})
	r.AddMoment(game.MomentConfidenceDrop, "before start", 90, 100)
	r.begin("/tmp/a.webm")
	r.AddMoment(game.MomentConfidenceDrop, "during", 85, 100)
	sum, err := r.finish(game.Snapshot{})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	r.AddMoment(game.MomentConfidenceDrop, "after stop", 80, 100)

	if len(sum.Moments) != 1 {
		t.Fatalf("got %d moments, want 1", len(sum.Moments))
	}
	if sum.Moments[0].Description != "during" {
		t.Errorf("moment = %q, want %q", sum.Moments[0].Description, "during")
	}
}

func TestRecorderSummaryFromSnapshot(t *testing.T) {
	t.Parallel()

	r, clock := newTimelineRecorder()
	clock.advance(3 * time.Minute)

	snap := game.Snapshot{
		Confidence:            42,
		Patience:              0,
		Round:                 9,
		Outcome:               game.OutcomeWon,
		BiggestConfidenceDrop: 12,
		BiggestPatienceDrop:   15,
	}
	sum, err := r.finish(snap)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Duration != 3*time.Minute {
		t.Errorf("duration = %v, want 3m", sum.Duration)
	}
	if sum.Outcome != game.OutcomeWon || sum.Rounds != 9 {
		t.Errorf("outcome/rounds = %v/%d", sum.Outcome, sum.Rounds)
	}
	if sum.StartingConfidence != game.StartingScore || sum.StartingPatience != game.StartingScore {
		t.Errorf("starting scores = %d/%d", sum.StartingConfidence, sum.StartingPatience)
	}
	if sum.EndingConfidence != 42 || sum.EndingPatience != 0 {
		t.Errorf("ending scores = %d/%d", sum.EndingConfidence, sum.EndingPatience)
	}
	if sum.BiggestConfidenceDrop != 12 || sum.BiggestPatienceDrop != 15 {
		t.Errorf("biggest drops = %d/%d", sum.BiggestConfidenceDrop, sum.BiggestPatienceDrop)
	}
	if sum.ArtifactPath != "/tmp/negotiation-dojo-2026-08-29.webm" {
		t.Errorf("artifact path = %q", sum.ArtifactPath)
	}
}

func TestRecorderTagsUnresolvedSessionAbandoned(t *testing.T) {
	t.Parallel()

	for _, outcome := range []game.Outcome{game.OutcomeActive, ""} {
		r, _ := newTimelineRecorder()
		sum, err := r.finish(game.Snapshot{Outcome: outcome})
		if err != nil {
			t.Fatalf("finish: %v", err)
		}
		if sum.Outcome != game.OutcomeAbandoned {
			t.Errorf("outcome %q: summary tagged %q, want %q", outcome, sum.Outcome, game.OutcomeAbandoned)
		}
	}
}

func TestRecorderFinishWhenIdleFails(t *testing.T) {
	t.Parallel()

	r := New(Config{})
	if _, err := r.finish(game.Snapshot{}); err == nil {
		t.Fatal("expected an error finishing an idle recorder")
	}
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	if got := artifactName(ts); got != "negotiation-dojo-2026-08-29.webm" {
		t.Errorf("artifactName = %q", got)
	}
}
