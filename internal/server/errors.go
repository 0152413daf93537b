// Package server provides the HTTP REST API for the test automation
// pipeline.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/testpilot/internal/pipeline"
	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/validation"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		encodingErr   *validation.EncodingError
		columnsErr    *validation.MissingColumnsError
		parseErr      *validation.ParseError
		validationErr *pipeline.ValidationFailedError
		precondErr    *pipeline.PreconditionError
	)
	switch {
	case errors.As(err, &encodingErr),
		errors.As(err, &columnsErr),
		errors.As(err, &parseErr),
		errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &precondErr):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
