package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/qidlink/internal/model"
)

// ErrCitationLeak is returned when a hint cites an identifier outside the candidate list
var ErrCitationLeak = errors.New("hint cites an identifier outside the candidate list")

// Reviewer produces a non-authoritative review hint for an unresolved row
type Reviewer interface {
	// Name returns the provider name
	Name() string

	// Review returns a one-line hint. It never picks an identifier on the
	// caller's behalf; the hint is advisory text only.
	Review(ctx context.Context, req ReviewRequest) (*ReviewResponse, error)
}

// ReviewRequest contains the input for one review
type ReviewRequest struct {
	// Query is the label that was searched
	Query string

	// Context holds the record's geo, time and category hints
	Context []string

	// Candidates is the STRICT allowlist of identifiers the hint may cite
	Candidates []model.ScoredCandidate

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ReviewResponse contains the hint and what it cited
type ReviewResponse struct {
	Hint       string
	CitedIDs   []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI-compatible endpoints
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	Timeout   time.Duration
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const systemPrompt = "You review candidate Wikidata matches for a taxonomy label. " +
	"You never decide the match; you write one short advisory note for a human reviewer."

var qidPattern = regexp.MustCompile(`\bQ[1-9][0-9]*\b`)

// BuildPrompt constructs the default review prompt
func BuildPrompt(req ReviewRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Label: %s\n", req.Query)
	if len(req.Context) > 0 {
		fmt.Fprintf(&b, "Context: %s\n", strings.Join(req.Context, " / "))
	}

	b.WriteString("\nCandidates (automatic scores, none reached the acceptance threshold):\n")
	if len(req.Candidates) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range req.Candidates {
		desc := c.Description
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(&b, "- %s | %s | %s | score %.2f\n", c.ID, c.Label, desc, c.Confidence)
	}

	b.WriteString(`
RULES:
1. You MUST ONLY mention identifiers from the candidate list above.
2. Write a single sentence of at most 30 words.
3. If no candidate fits the label and context, say "no plausible candidate".
4. Do not claim certainty; describe what a reviewer should check.`)

	return b.String()
}

// extractIDs returns the distinct entity identifiers mentioned in text
func extractIDs(text string) []string {
	matches := qidPattern.FindAllString(text, -1)

	seen := make(map[string]bool)
	var unique []string
	for _, id := range matches {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}

// checkCitations rejects hints that mention identifiers not offered as candidates
func checkCitations(cited []string, candidates []model.ScoredCandidate) error {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = true
	}
	for _, id := range cited {
		if !allowed[id] {
			return fmt.Errorf("%w: %s", ErrCitationLeak, id)
		}
	}
	return nil
}

// finish normalizes a raw completion into a checked response
func finish(raw string, req ReviewRequest, modelName string, tokens int) (*ReviewResponse, error) {
	hint := strings.Join(strings.Fields(raw), " ")
	if hint == "" {
		return nil, errors.New("empty review hint")
	}

	cited := extractIDs(hint)
	if err := checkCitations(cited, req.Candidates); err != nil {
		return nil, err
	}

	return &ReviewResponse{
		Hint:       hint,
		CitedIDs:   cited,
		Model:      modelName,
		TokensUsed: tokens,
	}, nil
}

func pick(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
