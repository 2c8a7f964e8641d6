// Package game holds the negotiation health state: the player's confidence
// and the opponent's patience, both clamped to [0, 100], plus the round
// counter and the terminal outcome. Confidence reaching 0 loses the game;
// patience reaching 0 wins it. The first terminal outcome sticks — later
// deltas still move the scores but never flip a decided game.
package game

import (
	"fmt"
	"log/slog"
	"sync"
)

// Outcome is the resolution state of a negotiation.
type Outcome string

const (
	OutcomeActive Outcome = "active"
	OutcomeWon    Outcome = "won"
	OutcomeLost   Outcome = "lost"

	// OutcomeAbandoned tags a session that ended before resolving, e.g. an
	// interrupt or a remote close. The tracker never enters this state; the
	// recorder applies it when summarising an unresolved game.
	OutcomeAbandoned Outcome = "abandoned"
)

// StartingScore is the initial value of both confidence and patience.
const StartingScore = 100

// MomentKind labels why a point in the session was worth remembering.
type MomentKind string

const (
	MomentSessionStart    MomentKind = "session_start"
	MomentRoundStart      MomentKind = "round_start"
	MomentConfidenceDrop  MomentKind = "confidence_drop"
	MomentConfidenceBoost MomentKind = "confidence_boost"
	MomentPatienceDrop    MomentKind = "patience_drop"
	MomentGameEnd         MomentKind = "game_end"
)

// MomentSink receives salient moments as they happen. The recorder implements
// this; a nil sink is allowed and drops moments.
type MomentSink interface {
	AddMoment(kind MomentKind, description string, confidence, patience int)
}

// Salience holds the thresholds that decide which score swings are worth a
// key moment. All values are magnitudes.
type Salience struct {
	// ConfidenceDrop marks a single confidence loss of at least this much.
	ConfidenceDrop int `yaml:"confidence_drop"`
	// ConfidenceBoost marks a single confidence gain of at least this much.
	ConfidenceBoost int `yaml:"confidence_boost"`
	// PatienceDrop marks a single patience loss of at least this much.
	PatienceDrop int `yaml:"patience_drop"`
}

// DefaultSalience matches the coaching heuristics the scoring was tuned with.
func DefaultSalience() Salience {
	return Salience{
		ConfidenceDrop:  5,
		ConfidenceBoost: 3,
		PatienceDrop:    8,
	}
}

// Snapshot is a consistent copy of the tracker state.
type Snapshot struct {
	Confidence int
	Patience   int
	Round      int
	Outcome    Outcome

	LastPlayerRead    string
	LastOpponentState string

	BiggestConfidenceDrop int
	BiggestPatienceDrop   int
}

// Tracker is the dual-score state machine. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	confidence int
	patience   int
	round      int
	outcome    Outcome

	lastPlayerRead    string
	lastOpponentState string

	biggestConfidenceDrop int
	biggestPatienceDrop   int

	salience Salience
	sink     MomentSink

	// onTerminal fires once, outside the tracker lock, when the outcome
	// first becomes won or lost.
	onTerminal func(Outcome)
}

// NewTracker returns a Tracker at full scores. A nil sink drops moments.
func NewTracker(salience Salience, sink MomentSink) *Tracker {
	t := &Tracker{salience: salience, sink: sink}
	t.reset()
	return t
}

// OnTerminal registers a callback invoked once when the game first resolves.
// Must be set before play begins.
func (t *Tracker) OnTerminal(fn func(Outcome)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTerminal = fn
}

// Reset returns all state to the start of a fresh negotiation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reset()
}

func (t *Tracker) reset() {
	t.confidence = StartingScore
	t.patience = StartingScore
	t.round = 0
	t.outcome = OutcomeActive
	t.lastPlayerRead = ""
	t.lastOpponentState = ""
	t.biggestConfidenceDrop = 0
	t.biggestPatienceDrop = 0
}

// Snapshot returns a consistent copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Confidence:            t.confidence,
		Patience:              t.patience,
		Round:                 t.round,
		Outcome:               t.outcome,
		LastPlayerRead:        t.lastPlayerRead,
		LastOpponentState:     t.lastOpponentState,
		BiggestConfidenceDrop: t.biggestConfidenceDrop,
		BiggestPatienceDrop:   t.biggestPatienceDrop,
	}
}

// ApplyConfidence shifts the player's confidence by delta (negative means a
// loss) and records the reason. Salient swings emit a key moment; hitting 0
// resolves the game as lost unless it already resolved.
func (t *Tracker) ApplyConfidence(delta int, reason string) {
	t.mu.Lock()
	t.confidence = clampScore(t.confidence + delta)
	if reason != "" {
		t.lastPlayerRead = reason
	}

	var moment *pendingMoment
	if delta <= -t.salience.ConfidenceDrop {
		if -delta > t.biggestConfidenceDrop {
			t.biggestConfidenceDrop = -delta
		}
		moment = &pendingMoment{kind: MomentConfidenceDrop, description: reason}
	} else if delta >= t.salience.ConfidenceBoost {
		moment = &pendingMoment{kind: MomentConfidenceBoost, description: reason}
	}

	terminal := t.resolveLocked()
	t.finishApplyLocked(moment, terminal)
}

// ApplyPatience shifts the opponent's patience by delta and records the
// opponent state that caused it. Hitting 0 resolves the game as won unless it
// already resolved.
func (t *Tracker) ApplyPatience(delta int, reason string) {
	t.mu.Lock()
	t.patience = clampScore(t.patience + delta)
	if reason != "" {
		t.lastOpponentState = reason
	}

	var moment *pendingMoment
	if delta <= -t.salience.PatienceDrop {
		if -delta > t.biggestPatienceDrop {
			t.biggestPatienceDrop = -delta
		}
		moment = &pendingMoment{kind: MomentPatienceDrop, description: reason}
	}

	terminal := t.resolveLocked()
	t.finishApplyLocked(moment, terminal)
}

// IncrementRound advances the round counter. Every third round emits a
// progress moment so long sessions keep visible structure in the timeline.
func (t *Tracker) IncrementRound() {
	t.mu.Lock()
	t.round++
	var moment *pendingMoment
	if t.round > 1 && t.round%3 == 0 {
		moment = &pendingMoment{
			kind:        MomentRoundStart,
			description: fmt.Sprintf("Round %d started", t.round),
		}
	}
	t.finishApplyLocked(moment, "")
}

type pendingMoment struct {
	kind        MomentKind
	description string
}

// resolveLocked settles the outcome if a score has bottomed out. Confidence
// is checked first; a game can only resolve once.
func (t *Tracker) resolveLocked() Outcome {
	if t.outcome != OutcomeActive {
		return ""
	}
	if t.confidence <= 0 {
		t.outcome = OutcomeLost
		return OutcomeLost
	}
	if t.patience <= 0 {
		t.outcome = OutcomeWon
		return OutcomeWon
	}
	return ""
}

// finishApplyLocked releases the lock and delivers side effects. Moments and
// the terminal callback run unlocked so sinks may call back into the tracker.
func (t *Tracker) finishApplyLocked(moment *pendingMoment, terminal Outcome) {
	sink := t.sink
	onTerminal := t.onTerminal
	confidence, patience := t.confidence, t.patience
	t.mu.Unlock()

	if moment != nil && sink != nil {
		sink.AddMoment(moment.kind, moment.description, confidence, patience)
	}
	if terminal != "" {
		slog.Info("negotiation resolved",
			"outcome", string(terminal),
			"confidence", confidence,
			"patience", patience,
		)
		if sink != nil {
			sink.AddMoment(MomentGameEnd, fmt.Sprintf("Negotiation %s", terminal), confidence, patience)
		}
		if onTerminal != nil {
			onTerminal(terminal)
		}
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
