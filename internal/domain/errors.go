package domain

// ErrorKind classifies expected, recoverable outcomes returned to callers
type ErrorKind string

const (
	KindAccessDenied ErrorKind = "ACCESS_DENIED"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindValidation   ErrorKind = "VALIDATION"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError of the same kind, so errors.Is(err, ErrNotFound)
// works for errors built with a custom message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

func NewValidationError(message string) *DomainError {
	return NewDomainError(KindValidation, message)
}

// Sentinel errors
var (
	ErrAccessDenied      = NewDomainError(KindAccessDenied, "access denied")
	ErrComplaintNotFound = NewDomainError(KindNotFound, "complaint not found")
	ErrValidation        = NewDomainError(KindValidation, "validation failed")
	ErrEmptyUpdate       = NewValidationError("at least one of status or response is required")
)
