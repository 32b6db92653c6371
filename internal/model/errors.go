package model

// Error is a domain error with a stable code. Callers compare with
// errors.Is against the sentinels below; extra context is added by
// wrapping with fmt.Errorf("%w: ...").
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a domain error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrNotFound          = NewError("NOT_FOUND", "not found")
	ErrValidation        = NewError("VALIDATION_FAILED", "validation failed")
	ErrInsufficientStock = NewError("INSUFFICIENT_STOCK", "insufficient stock")
	ErrConflict          = NewError("CONFLICT", "resource was modified concurrently")
)
