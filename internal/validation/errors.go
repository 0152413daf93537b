// Package validation provides structural validation of uploaded
// requirements CSV documents.
package validation

import (
	"fmt"
	"strings"
)

// EncodingError indicates the uploaded bytes are not valid UTF-8.
type EncodingError struct {
	Message string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s", e.Message)
}

// MissingColumnsError indicates the header is missing required columns.
// No rows are parsed when this is returned.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// ParseError indicates the CSV records could not be read at all.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("CSV parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("CSV parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// RowError flags an empty required cell. Line numbers are 1-indexed with
// the header on line 1, matching what an end user sees in a spreadsheet.
type RowError struct {
	Line   int    `json:"line"`
	Column string `json:"column"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: '%s' is empty", e.Line, e.Column)
}
