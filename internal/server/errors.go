package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/trait-scorer/internal/analysis"
	"github.com/jonathan/trait-scorer/internal/extract"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"github.com/jonathan/trait-scorer/internal/llm"
	"github.com/jonathan/trait-scorer/internal/scoring"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrHistoryDisabled is returned by the analysis history endpoints when no database
// is configured.
var ErrHistoryDisabled = errors.New("analysis history is disabled: no database configured")

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		extractionErr *extract.ExtractionError
		validationErr *scoring.ValidationError
		imageErr      *imaging.ImageError
		requestErr    *ErrValidation
		apiErr        *llm.APICallError
	)

	switch {
	case errors.As(err, &extractionErr), errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &imageErr):
		if imageErr.Reason == imaging.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.As(err, &requestErr),
		errors.Is(err, analysis.ErrNoImages),
		errors.Is(err, analysis.ErrNotScored):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrUnknownProfile):
		return http.StatusNotFound
	case errors.Is(err, ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for err.
func errorMessage(err error) string {
	var validationErr *scoring.ValidationError
	if errors.As(err, &validationErr) {
		return fmt.Sprintf("model reply failed validation with %d violation(s)", len(validationErr.Violations))
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// requestValidationError turns a validator failure into an ErrValidation on its
// first field.
func requestValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return &ErrValidation{Field: ve.Field(), Message: ve.Tag()}
	}
	return &ErrValidation{Field: "body", Message: "invalid request"}
}
