package sync

// DomainError represents a pipeline-level error with a stable code
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

// Common pipeline errors
var (
	ErrMissingConfig  = NewDomainError("MISSING_CONFIG", "Required source configuration is missing")
	ErrFetchFailed    = NewDomainError("FETCH_FAILED", "Source fetch failed")
	ErrBadPayload     = NewDomainError("BAD_PAYLOAD", "Source returned a malformed payload")
	ErrEmptyFeed      = NewDomainError("EMPTY_FEED", "Source returned no data where data was expected")
	ErrTooManyIDs     = NewDomainError("TOO_MANY_IDS", "Refresh batch exceeds the configured maximum")
	ErrWriteExhausted = NewDomainError("WRITE_EXHAUSTED", "Batch write failed after all retries")
)
