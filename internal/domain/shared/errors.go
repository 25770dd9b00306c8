package shared

// DomainError carries a stable machine-readable code alongside the
// human-readable message. The interface layer maps codes to HTTP
// statuses without inspecting message text.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinel errors shared across domains. Callers compare with
// errors.Is, so these must be returned (possibly wrapped), not copied.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrSessionTerminal     = NewDomainError("SESSION_TERMINAL", "Session has reached a terminal state")
	ErrTurnInProgress      = NewDomainError("TURN_IN_PROGRESS", "Session is already processing a turn")
)
