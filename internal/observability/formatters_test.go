package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/testpilot/internal/types"
	"github.com/jonathan/testpilot/internal/validation"
)

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidation(&validation.Result{
		Valid: false,
		Rows:  []validation.Row{{"requirement_id": "REQ-1"}},
		Errors: []validation.RowError{
			{Line: 2, Column: "title"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "CSV VALIDATION")
	assert.Contains(t, output, "line 2: empty title")
}

func TestPrintValidation_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintValidation(nil)
	assert.Empty(t, buf.String())
}

func TestPrintCaseList(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCaseList(&types.CaseList{
		JobID: "job_1",
		TestCases: []types.TestCase{
			{RequirementID: "REQ-1", Title: "Login works"},
			{RequirementID: "REQ-2", Title: "Logout works"},
		},
	})
	output := buf.String()

	assert.Contains(t, output, "SYNTHESIZED TEST CASES")
	assert.Contains(t, output, "REQ-1")
	assert.Contains(t, output, "Login works")
}

func TestPrintCaseList_TruncatesLongLists(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	list := &types.CaseList{JobID: "job_1"}
	for i := 0; i < 8; i++ {
		list.TestCases = append(list.TestCases, types.TestCase{RequirementID: "REQ-1", Title: "Case"})
	}
	p.PrintCaseList(list)

	assert.Contains(t, buf.String(), "... and 3 more cases")
}

func TestPrintRun(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRun(&types.TestRun{
		ID:       "run_1",
		Status:   types.RunStatusCompleted,
		Duration: 1.25,
		Totals:   types.Totals{Total: 2, Passed: 2},
	})
	output := buf.String()

	assert.Contains(t, output, "ALL TESTS PASSED")
	assert.Contains(t, output, "EXECUTION RESULT")
	assert.Contains(t, output, "Passed: 2")
}

func TestPrintRun_FailuresSkipBanner(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRun(&types.TestRun{
		ID:     "run_1",
		Status: types.RunStatusFailed,
		Totals: types.Totals{Total: 2, Passed: 1, Failed: 1},
	})
	output := buf.String()

	assert.NotContains(t, output, "ALL TESTS PASSED")
	assert.Contains(t, output, "Failed: 1")
}
