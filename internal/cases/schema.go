package cases

import (
	"github.com/xeipuuv/gojsonschema"
)

// responseSchema is the shape a provider response must satisfy before
// any field is read. Deliberately lenient on item fields: cleaning fills
// defaults, the schema only guards the envelope.
const responseSchema = `{
  "type": "object",
  "required": ["test_cases"],
  "properties": {
    "test_cases": {
      "type": "array",
      "items": { "type": "object" }
    }
  }
}`

// ValidateResponse checks provider output against the response schema.
// Any error (including non-JSON input) means the generative result is
// unusable.
func ValidateResponse(content string) error {
	schemaLoader := gojsonschema.NewStringLoader(responseSchema)
	documentLoader := gojsonschema.NewStringLoader(content)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return err
	}
	if !result.Valid() {
		return &ResponseShapeError{Issues: len(result.Errors())}
	}
	return nil
}

// ResponseShapeError indicates the provider response parsed as JSON but
// does not match the expected envelope.
type ResponseShapeError struct {
	Issues int
}

func (e *ResponseShapeError) Error() string {
	return "provider response does not match the test_cases schema"
}
