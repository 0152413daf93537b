package validation

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"
)

// RequiredColumns is the closed required-column contract for requirements
// documents. The header must contain every one of these before any row is
// parsed.
var RequiredColumns = []string{"requirement_id", "title", "description", "priority"}

// Row is one normalized record: trimmed header names mapped to trimmed
// cell values.
type Row map[string]string

// Result holds the outcome of validating a requirements CSV. Rows are
// populated even when Valid is false so callers can report row-level
// errors or accept partial data.
type Result struct {
	Valid  bool
	Errors []RowError
	Rows   []Row
}

// utf8BOM is tolerated (and stripped) at the start of uploaded files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ValidateCSV decodes the uploaded bytes as UTF-8, checks the header
// against RequiredColumns, and parses every data row into a normalized
// mapping. Structural problems (encoding, missing columns, unreadable
// records) return a typed error and no result; empty required cells are
// collected as RowErrors without rejecting the row.
func ValidateCSV(fileBytes []byte) (*Result, error) {
	data := bytes.TrimPrefix(fileBytes, utf8BOM)
	if !utf8.Valid(data) {
		return nil, &EncodingError{Message: "invalid encoding; expected UTF-8"}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MissingColumnsError{Columns: RequiredColumns}
	}
	if err != nil {
		return nil, &ParseError{Message: "unreadable header", Cause: err}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var missing []string
	for _, required := range RequiredColumns {
		found := false
		for _, c := range columns {
			if c == required {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	result := &Result{}
	line := 1 // header occupies line 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Message: "unreadable record", Cause: err}
		}
		line++

		row := Row{}
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			row[columns[i]] = strings.TrimSpace(value)
		}
		for _, required := range RequiredColumns {
			if row[required] == "" {
				result.Errors = append(result.Errors, RowError{Line: line, Column: required})
			}
		}
		result.Rows = append(result.Rows, row)
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}
