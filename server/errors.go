package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pdpl_assistant/assistant"
	"pdpl_assistant/generator"
)

// ErrorCategory classifies errors for logging and response.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation"
	ErrCatNotFound   ErrorCategory = "not_found"
	ErrCatConflict   ErrorCategory = "conflict"
	ErrCatRateLimit  ErrorCategory = "rate_limit"
	ErrCatUpstream   ErrorCategory = "upstream_error"
	ErrCatTimeout    ErrorCategory = "timeout"
	ErrCatUnknown    ErrorCategory = "unknown"
)

// AppError wraps an error with a category and HTTP status code.
type AppError struct {
	Category   ErrorCategory
	Message    string
	StatusCode int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newValidationError(msg string) *AppError {
	return &AppError{Category: ErrCatValidation, Message: msg, StatusCode: http.StatusBadRequest}
}

func newNotFoundError(msg string) *AppError {
	return &AppError{Category: ErrCatNotFound, Message: msg, StatusCode: http.StatusNotFound}
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const genericFailure = "could not process your request"

// classify maps pipeline errors onto an AppError.
func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, assistant.ErrInvalidInput), errors.Is(err, assistant.ErrUnsupportedLanguage):
		return &AppError{Category: ErrCatValidation, Message: err.Error(), StatusCode: http.StatusBadRequest, Err: err}
	case errors.Is(err, assistant.ErrSessionFull):
		return &AppError{Category: ErrCatConflict, Message: "session history is full; start a new session", StatusCode: http.StatusConflict, Err: err}
	case errors.Is(err, generator.ErrRateLimited):
		return &AppError{Category: ErrCatRateLimit, Message: genericFailure, StatusCode: http.StatusTooManyRequests, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Category: ErrCatTimeout, Message: genericFailure, StatusCode: http.StatusGatewayTimeout, Err: err}
	case errors.Is(err, generator.ErrGeneration),
		errors.Is(err, assistant.ErrRetrieval),
		errors.Is(err, assistant.ErrAnswerGeneration),
		errors.Is(err, assistant.ErrTranslation),
		errors.Is(err, assistant.ErrScopeClassification),
		errors.Is(err, assistant.ErrExtraction),
		errors.Is(err, assistant.ErrSummarization):
		return &AppError{Category: ErrCatUpstream, Message: genericFailure, StatusCode: http.StatusBadGateway, Err: err}
	}
	return &AppError{Category: ErrCatUnknown, Message: genericFailure, StatusCode: http.StatusInternalServerError, Err: err}
}
