package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is makes errors.Is match any DomainError carrying the same code,
// so wrapped copies created by WithDetails still compare equal to the
// package sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails returns a copy of the error with additional context appended
// to the message. The code is preserved so callers can still branch on it.
func (e *DomainError) WithDetails(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
	}
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
	ErrNotFound            = NewDomainError("ITEM_NOT_FOUND", "Item not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidMovement     = NewDomainError("INVALID_MOVEMENT", "Movement shape is invalid")
	ErrConcurrencyConflict = NewDomainError("CONCURRENT_MODIFICATION", "Item state was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrStorageUnavailable  = NewDomainError("STORAGE_UNAVAILABLE", "Storage backend unavailable")
)
