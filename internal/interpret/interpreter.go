// Package interpret turns the opponent's spoken commentary into score
// movements. It is a deliberately simple keyword cascade: rules are checked
// in a fixed order and only the first match applies, so one utterance never
// produces compound penalties.
package interpret

import (
	"log/slog"
	"strings"

	"github.com/marbeck/viperdojo/internal/game"
)

// Rule identifies which cascade branch matched an utterance.
type Rule string

const (
	RuleWeakEyeContact   Rule = "weak_eye_contact"
	RuleStrongEyeContact Rule = "strong_eye_contact"
	RuleBadPosture       Rule = "bad_posture"
	RuleGoodPosture      Rule = "good_posture"
	RuleNervous          Rule = "nervous"
	RuleConfident        Rule = "confident"
	RuleImpressed        Rule = "impressed"
	RuleFrustrated       Rule = "frustrated"
	RuleDismissive       Rule = "dismissive"
	RuleDefault          Rule = "default"
)

// Deltas holds the score magnitudes per rule. All values are positive; the
// interpreter applies them as losses to the relevant score.
type Deltas struct {
	WeakEyeContact   int `yaml:"weak_eye_contact"`
	StrongEyeContact int `yaml:"strong_eye_contact"`
	BadPosture       int `yaml:"bad_posture"`
	GoodPosture      int `yaml:"good_posture"`
	Nervous          int `yaml:"nervous"`
	Confident        int `yaml:"confident"`
	Impressed        int `yaml:"impressed"`
	Frustrated       int `yaml:"frustrated"`
	Dismissive       int `yaml:"dismissive"`
	Default          int `yaml:"default"`
}

// DefaultDeltas matches the tuning the scoring heuristics were built around.
func DefaultDeltas() Deltas {
	return Deltas{
		WeakEyeContact:   5,
		StrongEyeContact: 5,
		BadPosture:       4,
		GoodPosture:      4,
		Nervous:          3,
		Confident:        3,
		Impressed:        8,
		Frustrated:       12,
		Dismissive:       10,
		Default:          2,
	}
}

// Match reports which rule fired for an utterance.
type Match struct {
	Rule   Rule
	Phrase string // the fragment that matched; empty for the default rule
}

// Interpreter applies the cascade against a Tracker and BodyLanguage.
type Interpreter struct {
	deltas  Deltas
	tracker *game.Tracker
	body    *game.BodyLanguage
}

// New returns an Interpreter wired to the given state.
func New(deltas Deltas, tracker *game.Tracker, body *game.BodyLanguage) *Interpreter {
	return &Interpreter{deltas: deltas, tracker: tracker, body: body}
}

// Interpret classifies one utterance and applies its score movement. Empty or
// whitespace-only text is a no-op and returns a zero Match.
//
// The cascade order is: visual reads first (eye contact, posture, demeanor),
// then emotional reactions (impressed, frustrated, dismissive), then the
// default patience decay. Visual reads outrank reactions because commentary
// like "strong eye contact... interesting" is primarily about what the
// opponent saw.
func (in *Interpreter) Interpret(text string) Match {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Match{}
	}

	in.body.BeginAnalysis()
	match := in.apply(lower, text)
	slog.Debug("interpreted opponent commentary",
		"rule", string(match.Rule),
		"phrase", match.Phrase,
	)
	return match
}

func (in *Interpreter) apply(lower, original string) Match {
	if phrase, ok := matchPhrase(lower, weakEyeContactPhrases); ok {
		in.body.SetEyeContact(game.EyeWeak, original)
		in.tracker.ApplyConfidence(-in.deltas.WeakEyeContact, "Viper caught you avoiding eye contact")
		return Match{Rule: RuleWeakEyeContact, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, strongEyeContactPhrases); ok {
		in.body.SetEyeContact(game.EyeStrong, original)
		in.tracker.ApplyPatience(-in.deltas.StrongEyeContact, "Your steady gaze is wearing Viper down")
		return Match{Rule: RuleStrongEyeContact, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, badPosturePhrases); ok {
		in.body.SetPosture(game.PostureBad, original)
		in.tracker.ApplyConfidence(-in.deltas.BadPosture, "Viper noticed you shrinking in your seat")
		return Match{Rule: RuleBadPosture, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, goodPosturePhrases); ok {
		in.body.SetPosture(game.PostureGood, original)
		in.tracker.ApplyPatience(-in.deltas.GoodPosture, "Your commanding posture unsettles Viper")
		return Match{Rule: RuleGoodPosture, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, nervousPhrases); ok {
		in.body.SetDemeanor(game.DemeanorNervous, original)
		in.tracker.ApplyConfidence(-in.deltas.Nervous, "Viper can smell your nerves")
		return Match{Rule: RuleNervous, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, confidentPhrases); ok {
		in.body.SetDemeanor(game.DemeanorConfident, original)
		in.tracker.ApplyPatience(-in.deltas.Confident, "Your composure is getting under Viper's skin")
		return Match{Rule: RuleConfident, Phrase: phrase}
	}

	in.body.EndAnalysis()
	if phrase, ok := matchPhrase(lower, impressedPhrases); ok {
		in.tracker.ApplyPatience(-in.deltas.Impressed, "Viper is genuinely impressed")
		return Match{Rule: RuleImpressed, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, frustratedPhrases); ok {
		in.tracker.ApplyPatience(-in.deltas.Frustrated, "Viper is losing patience")
		return Match{Rule: RuleFrustrated, Phrase: phrase}
	}
	if phrase, ok := matchPhrase(lower, dismissivePhrases); ok {
		in.tracker.ApplyConfidence(-in.deltas.Dismissive, "Viper dismissed your argument outright")
		return Match{Rule: RuleDismissive, Phrase: phrase}
	}

	in.tracker.ApplyPatience(-in.deltas.Default, "Viper is unmoved")
	return Match{Rule: RuleDefault}
}

func matchPhrase(lower string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}
