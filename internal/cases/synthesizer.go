// Package cases turns validated requirement rows into test case records
// via a pluggable generation strategy with a deterministic fallback.
package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/testpilot/internal/llm"
	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

// Truncation bounds for deterministically synthesized fields.
const (
	maxTitleLen    = 60
	maxStepLen     = 40
	maxExpectedLen = 120
)

// promptRowLimit bounds prompt size for the generative strategy.
const promptRowLimit = 10

// Synthesizer produces test cases from requirement rows. The strategy is
// fixed at construction: deterministic only, or generative with an
// unconditional deterministic fallback.
type Synthesizer struct {
	client        llm.Client
	deterministic bool
	model         string
}

// NewSynthesizer creates a synthesizer. With deterministic=true the
// provider is never consulted.
func NewSynthesizer(client llm.Client, deterministic bool, model string) *Synthesizer {
	return &Synthesizer{client: client, deterministic: deterministic, model: model}
}

// Synthesize returns a non-empty case list for the rows. It is total:
// provider failures and malformed responses degrade to the deterministic
// strategy, never to an empty result.
func (s *Synthesizer) Synthesize(ctx context.Context, jobID string, rows []validation.Row) []types.TestCase {
	if s.deterministic || s.client == nil {
		return s.deterministicCases(jobID, rows, "mock")
	}

	prompt := BuildPrompt(rows)
	output, err := s.client.GenerateText(ctx, prompt, s.model)
	if err != nil {
		return s.deterministicCases(jobID, rows, "fallback")
	}
	generated, ok := ParseGenerated(output)
	if !ok {
		return s.deterministicCases(jobID, rows, "fallback")
	}

	cases := make([]types.TestCase, 0, len(generated))
	for _, g := range generated {
		cases = append(cases, types.TestCase{
			ID:            "tc_" + uuid.NewString(),
			JobID:         jobID,
			RequirementID: g.ID,
			Title:         g.Title,
			Steps:         g.Steps,
			Expected:      g.Expected,
			Priority:      "Medium",
			Status:        "generated",
			Metadata:      map[string]string{"source": "generative"},
			Active:        true,
		})
	}
	if len(cases) == 0 {
		return s.deterministicCases(jobID, rows, "fallback")
	}
	return cases
}

// deterministicCases is the rule-based strategy: one case per row, fixed
// truncation, a single placeholder case when there are no rows.
func (s *Synthesizer) deterministicCases(jobID string, rows []validation.Row, source string) []types.TestCase {
	var cases []types.TestCase
	for idx, r := range rows {
		rid := firstNonEmpty(r["requirement_id"], r["id"], r["req_id"])
		if rid == "" {
			rid = fmt.Sprintf("REQ-%d", idx+1)
		}
		desc := firstNonEmpty(r["description"], r["requirement"])
		if desc == "" {
			desc = "Behavior"
		}
		ac := firstNonEmpty(r["acceptance_criteria"], r["criteria"])
		if ac == "" {
			ac = "Should work as specified"
		}
		priority := r["priority"]
		if priority == "" {
			priority = "Medium"
		}
		cases = append(cases, types.TestCase{
			ID:            "tc_" + uuid.NewString(),
			JobID:         jobID,
			RequirementID: rid,
			Title:         "Validate: " + truncate(desc, maxTitleLen),
			Steps:         []string{"Step for " + truncate(desc, maxStepLen)},
			Expected:      truncate(ac, maxExpectedLen),
			Priority:      priority,
			Status:        "generated",
			Metadata:      map[string]string{"source": source},
			Active:        true,
		})
	}
	if len(cases) == 0 {
		cases = []types.TestCase{{
			ID:            "tc_" + uuid.NewString(),
			JobID:         jobID,
			RequirementID: "REQ-1",
			Title:         "Placeholder case",
			Steps:         []string{"Do something"},
			Expected:      "It works",
			Priority:      "Medium",
			Status:        "generated",
			Metadata:      map[string]string{"source": source},
			Active:        true,
		}}
	}
	return cases
}

// BuildPrompt embeds up to the first promptRowLimit rows into a case
// generation prompt.
func BuildPrompt(rows []validation.Row) string {
	head := rows
	if len(head) > promptRowLimit {
		head = head[:promptRowLimit]
	}
	var sample []string
	for _, r := range head {
		rid := firstNonEmpty(r["requirement_id"], r["id"], r["req_id"])
		if rid == "" {
			rid = "UNKNOWN"
		}
		desc := firstNonEmpty(r["description"], r["requirement"])
		ac := firstNonEmpty(r["acceptance_criteria"], r["criteria"])
		sample = append(sample, fmt.Sprintf("Requirement %s: %s | Criteria: %s", rid, desc, ac))
	}
	body := "No content"
	if len(sample) > 0 {
		body = strings.Join(sample, "\n")
	}
	return "You are a QA engineer. Based on the following SRS entries, produce a JSON object " +
		`with key "test_cases": a list of items each having fields: id, title, steps[], expected.` + "\n" +
		body + "\nReturn only JSON."
}

// GeneratedCase is one item parsed from a provider response.
type GeneratedCase struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Steps    []string `json:"steps"`
	Expected string   `json:"expected"`
}

// ParseGenerated parses a provider response into cleaned case items. The
// second return is false when the response is not valid structured data,
// which callers must treat as "use the deterministic strategy".
func ParseGenerated(text string) ([]GeneratedCase, bool) {
	if err := ValidateResponse(text); err != nil {
		return nil, false
	}

	var envelope struct {
		TestCases []map[string]any `json:"test_cases"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil || envelope.TestCases == nil {
		return nil, false
	}

	cleaned := make([]GeneratedCase, 0, len(envelope.TestCases))
	for _, item := range envelope.TestCases {
		g := GeneratedCase{
			ID:       firstNonEmpty(stringField(item, "id"), stringField(item, "requirement_id")),
			Title:    firstNonEmpty(stringField(item, "title"), stringField(item, "name")),
			Expected: firstNonEmpty(stringField(item, "expected"), stringField(item, "expected_result")),
		}
		if g.ID == "" {
			g.ID = "UNKNOWN"
		}
		if g.Title == "" {
			g.Title = "Untitled"
		}
		if steps, ok := item["steps"].([]any); ok {
			for _, step := range steps {
				if str, ok := step.(string); ok {
					g.Steps = append(g.Steps, str)
				}
			}
		}
		cleaned = append(cleaned, g)
	}
	return cleaned, true
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate limits s to n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
