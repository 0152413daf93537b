package execution

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/jonathan/testpilot/internal/types"
)

// CountTotals summarizes a junit XML manifest by counting opening tags.
// Deliberately not a full parse: partially malformed manifests still
// yield usable totals, and passed is always derived, never trusted.
func CountTotals(content []byte) types.Totals {
	text := string(content)
	total := strings.Count(text, "<testcase ")
	failed := strings.Count(text, "<failure ") + strings.Count(text, "<error ")
	skipped := strings.Count(text, "<skipped ")
	passed := total - failed - skipped
	if passed < 0 {
		passed = 0
	}
	return types.Totals{Total: total, Passed: passed, Failed: failed, Skipped: skipped}
}

// CaseResult is one per-testcase entry extracted from a junit manifest.
type CaseResult struct {
	Name     string
	Status   string
	Duration float64
}

type junitTestCase struct {
	Name     string     `xml:"name,attr"`
	Time     string     `xml:"time,attr"`
	Failures []struct{} `xml:"failure"`
	Errors   []struct{} `xml:"error"`
	Skipped  []struct{} `xml:"skipped"`
}

// ParseCaseResults extracts per-testcase statuses from a junit manifest,
// best effort: any decode problem returns what was read so far (possibly
// nothing), in which case callers fall back to uniform exit-code mapping.
func ParseCaseResults(content []byte) []CaseResult {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	var results []CaseResult
	for {
		tok, err := decoder.Token()
		if err != nil {
			return results
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "testcase" {
			continue
		}
		var tc junitTestCase
		if err := decoder.DecodeElement(&tc, &start); err != nil {
			return results
		}
		status := types.ResultStatusPassed
		switch {
		case len(tc.Failures) > 0 || len(tc.Errors) > 0:
			status = types.ResultStatusFailed
		case len(tc.Skipped) > 0:
			status = types.ResultStatusSkipped
		}
		// An absent or unparsable time attribute reads as zero.
		duration, _ := strconv.ParseFloat(strings.TrimSpace(tc.Time), 64)
		results = append(results, CaseResult{Name: tc.Name, Status: status, Duration: duration})
	}
}
