package dto

import "net/http"

// API error codes. Codes are stable vocabulary that clients branch on;
// renaming one is a breaking change. Messages are free text.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	// Request shape problems.
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"

	// Field validation. ErrCodeValidation marks the envelope; the
	// required and format variants classify individual details.
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"

	// Resource state.
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"

	// Interview lifecycle. A turn submitted to a closed session and a
	// turn overlapping an in-flight one are both conflicts with the
	// session's current state, not malformed requests.
	ErrCodeSessionClosed  = "ERR_SESSION_CLOSED"
	ErrCodeTurnInProgress = "ERR_TURN_IN_PROGRESS"

	// Access and throttling.
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps API error codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,

	ErrCodeSessionClosed:  http.StatusConflict,
	ErrCodeTurnInProgress: http.StatusConflict,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
}

// ErrorCodeHelp carries an actionable hint for codes where the caller
// has a clear next step. Responses for other codes omit the help field.
var ErrorCodeHelp = map[string]string{
	ErrCodeSessionClosed:  "Closed sessions accept no further turns. Start a new session with POST /api/v1/sessions.",
	ErrCodeTurnInProgress: "Another turn on this session is still being processed. Retry after it completes.",
}

// GetHTTPStatus resolves an error code to its HTTP status. Codes
// outside the map fall back to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping translates domain error codes into the API
// vocabulary. Domain codes follow the interview model's language; the
// wire format keeps the ERR_ prefix.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"SESSION_TERMINAL":     ErrCodeSessionClosed,
	"TURN_IN_PROGRESS":     ErrCodeTurnInProgress,
	"EMPTY_UTTERANCE":      ErrCodeValidation,
	"INVALID_PROTOCOL":     ErrCodeBusinessRule,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
}

// NormalizeErrorCode converts a domain error code to its API
// equivalent. Codes already in the API vocabulary, and unknown ones,
// pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
