package cases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/testpilot/internal/validation"
)

// stubClient returns a canned response or error for fallback testing.
type stubClient struct {
	text string
	err  error
}

func (c *stubClient) GenerateText(_ context.Context, _ string, _ string) (string, error) {
	return c.text, c.err
}

func (c *stubClient) Close() error { return nil }

func rowsFromCSV(t *testing.T, input string) []validation.Row {
	t.Helper()
	result, err := validation.ValidateCSV([]byte(input))
	require.NoError(t, err)
	return result.Rows
}

const sampleCSV = "requirement_id,title,description,priority\n" +
	"REQ-1,Login,User can log in with valid credentials,High\n" +
	"REQ-2,Logout,User can log out from the dashboard,Low\n"

func TestSynthesize_Deterministic(t *testing.T) {
	rows := rowsFromCSV(t, sampleCSV)
	s := NewSynthesizer(nil, true, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 2)

	assert.Equal(t, "REQ-1", cases[0].RequirementID)
	assert.Equal(t, "Validate: User can log in with valid credentials", cases[0].Title)
	assert.Equal(t, "High", cases[0].Priority)
	assert.Equal(t, "mock", cases[0].Metadata["source"])
	require.Len(t, cases[0].Steps, 1)
	assert.True(t, strings.HasPrefix(cases[0].Steps[0], "Step for "))
	assert.Equal(t, "job_1", cases[1].JobID)
}

func TestSynthesize_DeterministicTruncation(t *testing.T) {
	longDesc := strings.Repeat("x", 200)
	rows := rowsFromCSV(t, "requirement_id,title,description,priority\nREQ-1,T,"+longDesc+",High\n")
	s := NewSynthesizer(nil, true, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 1)
	assert.Equal(t, "Validate: "+strings.Repeat("x", 60), cases[0].Title)
	assert.Equal(t, "Step for "+strings.Repeat("x", 40), cases[0].Steps[0])
}

func TestSynthesize_NoRows_PlaceholderCase(t *testing.T) {
	s := NewSynthesizer(nil, true, "")
	cases := s.Synthesize(context.Background(), "job_1", nil)
	require.Len(t, cases, 1)
	assert.Equal(t, "REQ-1", cases[0].RequirementID)
	assert.Equal(t, "Placeholder case", cases[0].Title)
}

func TestSynthesize_FallbackOnNonJSONOutput(t *testing.T) {
	rows := rowsFromCSV(t, sampleCSV)
	s := NewSynthesizer(&stubClient{text: "I could not produce JSON, sorry."}, false, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 2)
	assert.Equal(t, "fallback", cases[0].Metadata["source"])
	assert.Equal(t, "REQ-1", cases[0].RequirementID)
}

func TestSynthesize_FallbackOnProviderError(t *testing.T) {
	rows := rowsFromCSV(t, sampleCSV)
	s := NewSynthesizer(&stubClient{err: errors.New("boom")}, false, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 2)
	assert.Equal(t, "fallback", cases[0].Metadata["source"])
}

func TestSynthesize_FallbackOnEmptyCaseList(t *testing.T) {
	rows := rowsFromCSV(t, sampleCSV)
	s := NewSynthesizer(&stubClient{text: `{"test_cases": []}`}, false, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 2)
	assert.Equal(t, "fallback", cases[0].Metadata["source"])
}

func TestSynthesize_GenerativeSuccess(t *testing.T) {
	rows := rowsFromCSV(t, sampleCSV)
	payload := `{"test_cases": [` +
		`{"id": "REQ-1", "title": "Login happy path", "steps": ["Open", "Submit"], "expected": "Dashboard"}]}`
	s := NewSynthesizer(&stubClient{text: payload}, false, "")

	cases := s.Synthesize(context.Background(), "job_1", rows)
	require.Len(t, cases, 1)
	assert.Equal(t, "REQ-1", cases[0].RequirementID)
	assert.Equal(t, "Login happy path", cases[0].Title)
	assert.Equal(t, []string{"Open", "Submit"}, cases[0].Steps)
	assert.Equal(t, "generative", cases[0].Metadata["source"])
}

func TestParseGenerated_FieldFallbacks(t *testing.T) {
	payload := `{"test_cases": [` +
		`{"requirement_id": "REQ-7", "name": "Alt names", "expected_result": "Works"},` +
		`{}]}`

	generated, ok := ParseGenerated(payload)
	require.True(t, ok)
	require.Len(t, generated, 2)

	assert.Equal(t, "REQ-7", generated[0].ID)
	assert.Equal(t, "Alt names", generated[0].Title)
	assert.Equal(t, "Works", generated[0].Expected)

	assert.Equal(t, "UNKNOWN", generated[1].ID)
	assert.Equal(t, "Untitled", generated[1].Title)
}

func TestParseGenerated_RejectsWrongEnvelope(t *testing.T) {
	_, ok := ParseGenerated(`{"cases": []}`)
	assert.False(t, ok)

	_, ok = ParseGenerated(`not json`)
	assert.False(t, ok)

	_, ok = ParseGenerated(`{"test_cases": "nope"}`)
	assert.False(t, ok)
}

func TestBuildPrompt_LimitsRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("requirement_id,title,description,priority\n")
	for i := 0; i < 15; i++ {
		sb.WriteString("REQ-")
		sb.WriteString(strings.Repeat("9", 1))
		sb.WriteString(",T,Desc,High\n")
	}
	rows := rowsFromCSV(t, sb.String())

	prompt := BuildPrompt(rows)
	assert.Equal(t, promptRowLimit, strings.Count(prompt, "Requirement REQ-"))
	assert.Contains(t, prompt, "Return only JSON.")
}

func TestBuildPrompt_NoRows(t *testing.T) {
	assert.Contains(t, BuildPrompt(nil), "No content")
}
