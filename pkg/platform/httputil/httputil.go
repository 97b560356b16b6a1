// Package httputil maps domain codes to HTTP statuses and writes JSON bodies.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "clm/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeInternal:                 http.StatusInternalServerError,
	dErrors.CodeInvariantViolation:       http.StatusInternalServerError,
	dErrors.CodeValidation:               http.StatusBadRequest,
	dErrors.CodeUnauthorized:             http.StatusUnauthorized,
	dErrors.CodeBadRequest:               http.StatusBadRequest,
	dErrors.CodeNotFound:                 http.StatusNotFound,
	dErrors.CodeInvalidInput:             http.StatusBadRequest,
	dErrors.CodeForbidden:                http.StatusForbidden,
	dErrors.CodeConflict:                 http.StatusConflict,
	dErrors.CodeInvalidRequest:           http.StatusBadRequest,
	dErrors.CodeTimeout:                  http.StatusGatewayTimeout,
	dErrors.CodeRateLimitExceeded:        http.StatusTooManyRequests,
	dErrors.CodeEnrichmentFailed:         http.StatusBadGateway,
	dErrors.CodeAuthorizationDenied:      http.StatusForbidden,
	dErrors.CodeComplianceRejected:       http.StatusUnprocessableEntity,
	dErrors.CodeUnsupportedSchemaVersion: http.StatusUnprocessableEntity,
	dErrors.CodeMissingRequiredField:     http.StatusUnprocessableEntity,
	dErrors.CodePublishFailed:            http.StatusServiceUnavailable,
	dErrors.CodeUnknownAction:            http.StatusBadRequest,
}

// StatusFor maps a domain code to an HTTP status. Unknown codes are 500.
func StatusFor(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
