package game

import (
	"sync"
	"testing"
)

// recordingSink captures moments for assertions.
type recordingSink struct {
	mu      sync.Mutex
	moments []recordedMoment
}

type recordedMoment struct {
	kind        MomentKind
	description string
	confidence  int
	patience    int
}

func (s *recordingSink) AddMoment(kind MomentKind, description string, confidence, patience int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments = append(s.moments, recordedMoment{kind, description, confidence, patience})
}

func (s *recordingSink) byKind(kind MomentKind) []recordedMoment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recordedMoment
	for _, m := range s.moments {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func newTestTracker() (*Tracker, *recordingSink) {
	sink := &recordingSink{}
	return NewTracker(DefaultSalience(), sink), sink
}

func TestTrackerStartsAtFullScores(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	snap := tr.Snapshot()
	if snap.Confidence != 100 || snap.Patience != 100 {
		t.Errorf("scores = %d/%d, want 100/100", snap.Confidence, snap.Patience)
	}
	if snap.Round != 0 {
		t.Errorf("round = %d, want 0", snap.Round)
	}
	if snap.Outcome != OutcomeActive {
		t.Errorf("outcome = %q, want active", snap.Outcome)
	}
}

func TestApplyConfidenceClamps(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.ApplyConfidence(-250, "catastrophic read")
	if got := tr.Snapshot().Confidence; got != 0 {
		t.Errorf("confidence = %d, want clamped 0", got)
	}

	tr2, _ := newTestTracker()
	tr2.ApplyConfidence(50, "over the top")
	if got := tr2.Snapshot().Confidence; got != 100 {
		t.Errorf("confidence = %d, want clamped 100", got)
	}
}

func TestApplyConfidenceRecordsReason(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.ApplyConfidence(-3, "fidgeting nervously")
	snap := tr.Snapshot()
	if snap.LastPlayerRead != "fidgeting nervously" {
		t.Errorf("LastPlayerRead = %q", snap.LastPlayerRead)
	}
	tr.ApplyConfidence(-1, "")
	if got := tr.Snapshot().LastPlayerRead; got != "fidgeting nervously" {
		t.Errorf("empty reason overwrote read: %q", got)
	}
}

func TestSalientConfidenceDropEmitsMoment(t *testing.T) {
	t.Parallel()

	tr, sink := newTestTracker()
	tr.ApplyConfidence(-4, "minor wobble")
	tr.ApplyConfidence(-5, "eyes darting")

	drops := sink.byKind(MomentConfidenceDrop)
	if len(drops) != 1 {
		t.Fatalf("got %d confidence_drop moments, want 1", len(drops))
	}
	if drops[0].description != "eyes darting" {
		t.Errorf("moment description = %q", drops[0].description)
	}
	if drops[0].confidence != 91 {
		t.Errorf("moment confidence = %d, want 91", drops[0].confidence)
	}
}

func TestSalientConfidenceBoostEmitsMoment(t *testing.T) {
	t.Parallel()

	tr, sink := newTestTracker()
	tr.ApplyConfidence(-10, "bad start")
	tr.ApplyConfidence(1, "small recovery")
	tr.ApplyConfidence(3, "standing tall")

	boosts := sink.byKind(MomentConfidenceBoost)
	if len(boosts) != 1 {
		t.Fatalf("got %d confidence_boost moments, want 1", len(boosts))
	}
	if boosts[0].description != "standing tall" {
		t.Errorf("moment description = %q", boosts[0].description)
	}
}

func TestSalientPatienceDropEmitsMoment(t *testing.T) {
	t.Parallel()

	tr, sink := newTestTracker()
	tr.ApplyPatience(-2, "mild stall")
	tr.ApplyPatience(-8, "impressed by the counter")

	drops := sink.byKind(MomentPatienceDrop)
	if len(drops) != 1 {
		t.Fatalf("got %d patience_drop moments, want 1", len(drops))
	}
	if drops[0].patience != 90 {
		t.Errorf("moment patience = %d, want 90", drops[0].patience)
	}
}

func TestBiggestDropsTrackOnlySalientSwings(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.ApplyConfidence(-5, "a")
	tr.ApplyConfidence(-12, "b")
	tr.ApplyConfidence(-7, "c")
	tr.ApplyPatience(-10, "d")
	tr.ApplyPatience(-3, "e") // below threshold, ignored

	snap := tr.Snapshot()
	if snap.BiggestConfidenceDrop != 12 {
		t.Errorf("BiggestConfidenceDrop = %d, want 12", snap.BiggestConfidenceDrop)
	}
	if snap.BiggestPatienceDrop != 10 {
		t.Errorf("BiggestPatienceDrop = %d, want 10", snap.BiggestPatienceDrop)
	}
}

func TestConfidenceZeroLosesGame(t *testing.T) {
	t.Parallel()

	tr, sink := newTestTracker()
	for range 10 {
		tr.ApplyConfidence(-12, "dismissed")
	}
	snap := tr.Snapshot()
	if snap.Outcome != OutcomeLost {
		t.Fatalf("outcome = %q, want lost", snap.Outcome)
	}
	if ends := sink.byKind(MomentGameEnd); len(ends) != 1 {
		t.Errorf("got %d game_end moments, want 1", len(ends))
	}
}

func TestPatienceZeroWinsGame(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	for range 10 {
		tr.ApplyPatience(-15, "relentless pressure")
	}
	if got := tr.Snapshot().Outcome; got != OutcomeWon {
		t.Fatalf("outcome = %q, want won", got)
	}
}

func TestOutcomeNeverFlipsOnceResolved(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	for range 10 {
		tr.ApplyConfidence(-20, "collapse")
	}
	if got := tr.Snapshot().Outcome; got != OutcomeLost {
		t.Fatalf("outcome = %q, want lost", got)
	}

	// Draining patience after the loss moves the score but not the outcome.
	for range 10 {
		tr.ApplyPatience(-20, "too late")
	}
	snap := tr.Snapshot()
	if snap.Patience != 0 {
		t.Errorf("patience = %d, want 0", snap.Patience)
	}
	if snap.Outcome != OutcomeLost {
		t.Errorf("outcome flipped to %q after resolution", snap.Outcome)
	}
}

func TestOnTerminalFiresExactlyOnce(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	fired := make(chan Outcome, 4)
	tr.OnTerminal(func(o Outcome) { fired <- o })

	for range 10 {
		tr.ApplyPatience(-30, "pressure")
	}
	if len(fired) != 1 {
		t.Fatalf("OnTerminal fired %d times, want 1", len(fired))
	}
	if got := <-fired; got != OutcomeWon {
		t.Errorf("OnTerminal outcome = %q, want won", got)
	}
}

func TestIncrementRoundEmitsEveryThird(t *testing.T) {
	t.Parallel()

	tr, sink := newTestTracker()
	for range 7 {
		tr.IncrementRound()
	}
	if got := tr.Snapshot().Round; got != 7 {
		t.Fatalf("round = %d, want 7", got)
	}
	rounds := sink.byKind(MomentRoundStart)
	if len(rounds) != 2 {
		t.Fatalf("got %d round moments, want 2 (rounds 3 and 6)", len(rounds))
	}
	if rounds[0].description != "Round 3 started" {
		t.Errorf("first round moment = %q", rounds[0].description)
	}
	if rounds[1].description != "Round 6 started" {
		t.Errorf("second round moment = %q", rounds[1].description)
	}
}

func TestResetRestoresFreshState(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	tr.ApplyConfidence(-40, "rough patch")
	tr.ApplyPatience(-40, "grinding")
	tr.IncrementRound()
	tr.Reset()

	snap := tr.Snapshot()
	if snap.Confidence != 100 || snap.Patience != 100 || snap.Round != 0 {
		t.Errorf("post-reset snapshot = %+v", snap)
	}
	if snap.Outcome != OutcomeActive {
		t.Errorf("post-reset outcome = %q", snap.Outcome)
	}
	if snap.BiggestConfidenceDrop != 0 || snap.BiggestPatienceDrop != 0 {
		t.Errorf("post-reset drops = %d/%d", snap.BiggestConfidenceDrop, snap.BiggestPatienceDrop)
	}
}

func TestTrackerNilSinkDoesNotPanic(t *testing.T) {
	t.Parallel()

	tr := NewTracker(DefaultSalience(), nil)
	tr.ApplyConfidence(-50, "big hit")
	for range 5 {
		tr.ApplyPatience(-30, "pressure")
	}
	if got := tr.Snapshot().Outcome; got != OutcomeWon {
		t.Errorf("outcome = %q, want won", got)
	}
}

func TestTrackerConcurrentApplies(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker()
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 50 {
				tr.ApplyConfidence(-1, "jitter")
				tr.ApplyPatience(-1, "jitter")
			}
		})
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap.Confidence != 0 || snap.Patience != 0 {
		t.Errorf("scores = %d/%d, want 0/0", snap.Confidence, snap.Patience)
	}
	if snap.Outcome == OutcomeActive {
		t.Error("game should have resolved")
	}
}
