package histquery

import (
	"fmt"
	"net/http"
)

// Structured error codes returned by the query engine. The transport maps
// them to HTTP statuses; callers branch on the code, not the message.
const (
	CodeInvalidQuery      = "invalid_query"
	CodeMetricUnavailable = "metric_unavailable"
	CodeDBUnavailable     = "db_unavailable"
	CodeSyncFailed        = "thetadata_sync_failed"
	CodeEnrichmentFailed  = "enrichment_failed"
	CodeQueryFailed       = "query_failed"
	CodeNotConfigured     = "thetadata_not_configured"
)

// Error is the engine's structured error. Details carries code-specific
// payload, e.g. per-metric cache status for metric_unavailable.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error without details.
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps the error code to a transport status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidQuery:
		return http.StatusBadRequest
	case CodeMetricUnavailable:
		return http.StatusUnprocessableEntity
	case CodeDBUnavailable, CodeNotConfigured:
		return http.StatusServiceUnavailable
	case CodeSyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
