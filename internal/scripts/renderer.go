// Package scripts renders executable pytest scaffolds from test case
// records, one file per requirement group plus a shared fixture file.
package scripts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/jonathan/testpilot/internal/types"
)

// Fixed language/framework tags for rendered scripts.
const (
	Language  = "python"
	Framework = "pytest-playwright"
	Template  = "pytest-scaffold"
)

// ConftestFilename is the shared fixture file written once per job.
const ConftestFilename = "conftest.py"

// Conftest is the shared fixture scaffolding, written idempotently.
const Conftest = `# Minimal Playwright/pytest fixtures
import pytest

@pytest.fixture(scope="session")
def browser_type_launch_args():
    # Ensure headless; users can override via CLI if needed
    return {"headless": True}
`

// fileTemplate renders one test function per case in a requirement
// group. Steps and expected outcome are embedded as literals; the body
// asserts structural well-formedness only and is the extension point for
// real browser actions.
var fileTemplate = template.Must(template.New("testfile").Parse(`import pytest
from typing import List

{{range .Functions}}
def {{.Name}}():
    """{{.Title}}"""
    steps: List[str] = {{.Steps}}
    expected = {{.Expected}}
    # Placeholder test - replace with real Playwright actions.
    assert isinstance(steps, list)
    assert expected is not None

{{end}}`))

// Group is the ordered set of cases sharing one requirement id.
type Group struct {
	RequirementID string
	Cases         []types.TestCase
}

// GroupByRequirement buckets cases by requirement id, preserving
// first-seen order so re-rendering is stable.
func GroupByRequirement(cases []types.TestCase) []Group {
	index := map[string]int{}
	var groups []Group
	for _, c := range cases {
		rid := c.RequirementID
		if rid == "" {
			rid = "REQ"
		}
		i, ok := index[rid]
		if !ok {
			i = len(groups)
			index[rid] = i
			groups = append(groups, Group{RequirementID: rid})
		}
		groups[i].Cases = append(groups[i].Cases, c)
	}
	return groups
}

// SanitizeIdentifier derives a safe, collision-resistant identifier from
// a requirement id. Pure and stable: the same input always yields the
// same output, which is what makes re-generation overwrite in place.
func SanitizeIdentifier(requirementID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(requirementID) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "item"
	}
	return s
}

// FileName derives the script filename for a requirement id.
func FileName(requirementID string) string {
	return "test_" + SanitizeIdentifier(requirementID) + ".py"
}

type renderedFunction struct {
	Name     string
	Title    string
	Steps    string
	Expected string
}

// RenderGroup renders the source file for one requirement group.
func RenderGroup(group Group) (string, error) {
	sid := SanitizeIdentifier(group.RequirementID)
	functions := make([]renderedFunction, 0, len(group.Cases))
	for idx, c := range group.Cases {
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		functions = append(functions, renderedFunction{
			Name:     fmt.Sprintf("test_%s_%d", sid, idx+1),
			Title:    title,
			Steps:    pyStringList(c.Steps),
			Expected: pyString(c.Expected),
		})
	}

	var sb strings.Builder
	if err := fileTemplate.Execute(&sb, struct{ Functions []renderedFunction }{functions}); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", group.RequirementID, err)
	}
	return sb.String(), nil
}

// pyString quotes s as a Python string literal.
func pyString(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + replacer.Replace(s) + `"`
}

// pyStringList quotes items as a Python list-of-strings literal.
func pyStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = pyString(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
