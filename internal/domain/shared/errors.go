package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrRunInProgress       = NewDomainError("RUN_IN_PROGRESS", "Another dunning run is already in progress")
	ErrNoSenderConfigured  = NewDomainError("NO_SENDER_CONFIGURED", "No usable sender identity is configured")
	ErrSendLimitExceeded   = NewDomainError("SEND_LIMIT_EXCEEDED", "Global send limit has been reached")
	ErrSourceUnavailable   = NewDomainError("SOURCE_UNAVAILABLE", "External data source is unreachable")
	ErrStoreUnavailable    = NewDomainError("STORE_UNAVAILABLE", "Cache store is unreachable")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
)
