// Package analysis generates the post-session coaching report. It replays
// the session summary through an LLM and parses the structured verdict:
// strengths, weaknesses, a tactical breakdown, and a spoken coaching script.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"

	"github.com/marbeck/viperdojo/internal/recorder"
)

const defaultModel = "gemini-2.5-flash"

// Report is the structured coaching verdict for one session.
type Report struct {
	OverallAssessment   string   `json:"overallAssessment"`
	StrengthsIdentified []string `json:"strengthsIdentified"`
	AreasForImprovement []string `json:"areasForImprovement"`

	TacticalBreakdown struct {
		Anchoring       string `json:"anchoring"`
		SilenceUsage    string `json:"silenceUsage"`
		BodyLanguage    string `json:"bodyLanguage"`
		VocalConfidence string `json:"vocalConfidence"`
	} `json:"tacticalBreakdown"`

	PersonalizedTips           []string `json:"personalizedTips"`
	NextScenarioRecommendation string   `json:"nextScenarioRecommendation"`
	CoachingScript             string   `json:"coachingScript"`

	Score struct {
		Overall    int `json:"overall"`
		Confidence int `json:"confidence"`
		Strategy   int `json:"strategy"`
		Composure  int `json:"composure"`
	} `json:"score"`
}

// Coach produces Reports from session summaries.
type Coach struct {
	backend anyllmlib.Provider
	model   string
}

// NewCoach creates a Coach backed by the Gemini completion API. Without an
// explicit anyllmlib.WithAPIKey option the backend reads GEMINI_API_KEY.
func NewCoach(model string, opts ...anyllmlib.Option) (*Coach, error) {
	if model == "" {
		model = defaultModel
	}
	backend, err := gemini.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("analysis: create backend: %w", err)
	}
	return &Coach{backend: backend, model: model}, nil
}

// Analyze asks the model for a coaching report on the given session.
func (c *Coach) Analyze(ctx context.Context, sum *recorder.Summary) (*Report, error) {
	temperature := 0.7
	maxTokens := 2048

	resp, err := c.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: coachSystemPrompt},
			{Role: anyllmlib.RoleUser, Content: buildPrompt(sum)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis: empty choices in response")
	}

	return parseReport(resp.Choices[0].Message.ContentString())
}

const coachSystemPrompt = `You are an elite negotiation coach reviewing a ` +
	`practice session against "Viper", a deliberately hostile counterpart. ` +
	`Respond with a single JSON object and nothing else, using exactly these ` +
	`keys: overallAssessment, strengthsIdentified, areasForImprovement, ` +
	`tacticalBreakdown (with anchoring, silenceUsage, bodyLanguage, ` +
	`vocalConfidence), personalizedTips, nextScenarioRecommendation, ` +
	`coachingScript, score (with overall, confidence, strategy, composure ` +
	`as integers 0-100). The coachingScript is spoken aloud to the trainee: ` +
	`direct, specific, two or three sentences.`

// buildPrompt renders the session summary as the user turn.
func buildPrompt(sum *recorder.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session result: %s after %d rounds (%s).\n",
		sum.Outcome, sum.Rounds, sum.Duration.Round(time.Second))
	fmt.Fprintf(&b, "Final confidence %d/100, final opponent patience %d/100.\n",
		sum.EndingConfidence, sum.EndingPatience)
	fmt.Fprintf(&b, "Biggest single confidence drop: %d. Biggest single patience drop: %d.\n",
		sum.BiggestConfidenceDrop, sum.BiggestPatienceDrop)

	if len(sum.Moments) > 0 {
		b.WriteString("Timeline of key moments:\n")
		for _, m := range sum.Moments {
			fmt.Fprintf(&b, "- [%s] %s: %s (confidence %d, patience %d)\n",
				m.Offset.Round(time.Second), m.Kind, m.Description, m.Confidence, m.Patience)
		}
	}
	b.WriteString("Analyze this session.")
	return b.String()
}

// parseReport decodes the model output, tolerating a markdown code fence or
// prose around the JSON object.
func parseReport(raw string) (*Report, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var rep Report
	if err := json.Unmarshal([]byte(payload), &rep); err != nil {
		return nil, fmt.Errorf("analysis: decode report: %w", err)
	}
	return &rep, nil
}

// extractJSON pulls the JSON object out of model output. Preference order:
// a fenced ```json block, any fenced block, then the outermost braces.
func extractJSON(raw string) (string, error) {
	for _, fence := range []string{"```json", "```"} {
		if start := strings.Index(raw, fence); start >= 0 {
			rest := raw[start+len(fence):]
			if end := strings.Index(rest, "```"); end >= 0 {
				return strings.TrimSpace(rest[:end]), nil
			}
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("analysis: no JSON object in model output")
	}
	return raw[start : end+1], nil
}
