package dto

import "net/http"

// Error code constants, format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"

	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeRunInProgress = "ERR_RUN_IN_PROGRESS"
	ErrCodeNoSender      = "ERR_NO_SENDER_CONFIGURED"
	ErrCodeRateLimited   = "ERR_RATE_LIMITED"
	ErrCodeUpstreamDown  = "ERR_UPSTREAM_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeRunInProgress: http.StatusConflict,
	ErrCodeNoSender:      http.StatusUnprocessableEntity,
	ErrCodeRateLimited:   http.StatusTooManyRequests,
	ErrCodeUpstreamDown:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code, defaulting to
// 500 for unknown codes.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodeMapping maps domain error codes to the wire format.
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"RUN_IN_PROGRESS":      ErrCodeRunInProgress,
	"NO_SENDER_CONFIGURED": ErrCodeNoSender,
	"SEND_LIMIT_EXCEEDED":  ErrCodeRateLimited,
	"GATEWAY_THROTTLED":    ErrCodeRateLimited,
	"SOURCE_UNAVAILABLE":   ErrCodeUpstreamDown,
	"STORE_UNAVAILABLE":    ErrCodeUpstreamDown,
	"CONCURRENCY_CONFLICT": ErrCodeConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the wire format. Codes
// already in the wire format or unknown pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
