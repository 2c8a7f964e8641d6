package game

import "sync"

// EyeContact classifies what the opponent has observed about the player's
// gaze.
type EyeContact string

const (
	EyeUnknown EyeContact = "unknown"
	EyeStrong  EyeContact = "strong"
	EyeWeak    EyeContact = "weak"
)

// Posture classifies observed body posture.
type Posture string

const (
	PostureUnknown Posture = "unknown"
	PostureGood    Posture = "good"
	PostureBad     Posture = "bad"
)

// Demeanor classifies the player's visible composure.
type Demeanor string

const (
	DemeanorUnknown   Demeanor = "unknown"
	DemeanorConfident Demeanor = "confident"
	DemeanorNervous   Demeanor = "nervous"
)

// BodyLanguage holds the most recent visual read of the player, derived from
// the opponent's spoken commentary. Safe for concurrent use.
type BodyLanguage struct {
	mu sync.Mutex

	eyeContact EyeContact
	posture    Posture
	demeanor   Demeanor

	lastObservation string
	analyzing       bool
}

// NewBodyLanguage returns a fresh, all-unknown read.
func NewBodyLanguage() *BodyLanguage {
	b := &BodyLanguage{}
	b.reset()
	return b
}

// Reset clears all observations back to unknown.
func (b *BodyLanguage) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *BodyLanguage) reset() {
	b.eyeContact = EyeUnknown
	b.posture = PostureUnknown
	b.demeanor = DemeanorUnknown
	b.lastObservation = ""
	b.analyzing = false
}

// SetEyeContact records an eye contact read and the phrase that produced it.
func (b *BodyLanguage) SetEyeContact(e EyeContact, observation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eyeContact = e
	b.lastObservation = observation
	b.analyzing = false
}

// SetPosture records a posture read and the phrase that produced it.
func (b *BodyLanguage) SetPosture(p Posture, observation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posture = p
	b.lastObservation = observation
	b.analyzing = false
}

// SetDemeanor records a composure read and the phrase that produced it.
func (b *BodyLanguage) SetDemeanor(d Demeanor, observation string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.demeanor = d
	b.lastObservation = observation
	b.analyzing = false
}

// BeginAnalysis marks that opponent commentary is being inspected for a
// visual read. Cleared by any Set call or EndAnalysis.
func (b *BodyLanguage) BeginAnalysis() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyzing = true
}

// EndAnalysis clears the analyzing flag without changing any read.
func (b *BodyLanguage) EndAnalysis() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyzing = false
}

// BodyLanguageSnapshot is a consistent copy of the current reads.
type BodyLanguageSnapshot struct {
	EyeContact      EyeContact
	Posture         Posture
	Demeanor        Demeanor
	LastObservation string
	Analyzing       bool
}

// Snapshot returns a consistent copy of the current reads.
func (b *BodyLanguage) Snapshot() BodyLanguageSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BodyLanguageSnapshot{
		EyeContact:      b.eyeContact,
		Posture:         b.posture,
		Demeanor:        b.demeanor,
		LastObservation: b.lastObservation,
		Analyzing:       b.analyzing,
	}
}
