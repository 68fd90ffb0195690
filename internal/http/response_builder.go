package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/importer"
	applog "ledger/internal/log"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewResponse creates a builder with a 200 status and no body.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON {error} response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// requestError marks a malformed or invalid request parameter.
type requestError struct {
	field string
	err   error
}

func (e *requestError) Error() string {
	if e.field == "" {
		return e.err.Error()
	}
	return e.field + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func invalidParam(field string, err error) error {
	return &requestError{field: field, err: err}
}

var validationErrors = []error{
	core.ErrMissingType,
	core.ErrInvalidType,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrInvalidAmount,
	core.ErrMissingPeriod,
	core.ErrDateOutsidePeriod,
	core.ErrInvalidCurrency,
	core.ErrInvalidCategoryKind,
	core.ErrInvalidRecurrence,
	core.ErrMissingRecurrenceEnd,
	core.ErrInvalidRecurrenceRange,
	core.ErrRecurrenceTooLong,
	core.ErrCategoryKindMismatch,
	core.ErrEmptyCategoryName,
	core.ErrInvalidRange,
	core.ErrInvalidDuplicatePolicy,
	core.ErrInvalidImportMode,
	importer.ErrEmptyFile,
	importer.ErrNoRecognizedColumns,
	importer.ErrInvalidDateFormat,
	importer.ErrInvalidAmount,
	importer.ErrInvalidDate,
	importer.ErrInvalidPeriod,
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, importer.ErrFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, applog.ErrorTypeValidation
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.As(err, &reqErr):
		return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrMissingTenant):
		return http.StatusBadRequest, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrTransactionNotFound), errors.Is(err, core.ErrCategoryNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrDuplicateCategory):
		return http.StatusConflict, applog.ErrorTypeConflict
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
		}
	}
	return http.StatusInternalServerError, applog.ErrorTypeInternal
}

// writeError renders err as JSON. Internal failures are logged and their
// detail is not sent to the client.
func writeError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, errorType := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(ctx)).
			LogError(ctx, "Request failed", err, errorType, operation, nil)
		InternalServerError("internal error").Write(w)
		return
	}
	applog.FromContext(ctx).DebugContext(ctx, "Request rejected",
		applog.FieldOperation, operation,
		applog.FieldErrorType, errorType,
		applog.FieldError, err.Error())
	ErrorResponse(status, err.Error()).Write(w)
}
