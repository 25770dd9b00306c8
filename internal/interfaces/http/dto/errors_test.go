package dto

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{"internal", ErrCodeInternal, http.StatusInternalServerError},
		{"validation", ErrCodeValidation, http.StatusBadRequest},
		{"not found", ErrCodeNotFound, http.StatusNotFound},
		{"session closed", ErrCodeSessionClosed, http.StatusConflict},
		{"turn in progress", ErrCodeTurnInProgress, http.StatusConflict},
		{"concurrency conflict", ErrCodeConcurrencyConflict, http.StatusConflict},
		{"business rule", ErrCodeBusinessRule, http.StatusUnprocessableEntity},
		{"payload too large", ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{"rate limited", ErrCodeRateLimited, http.StatusTooManyRequests},
		{"unmapped code falls back to 500", "ERR_NO_SUCH_CODE", http.StatusInternalServerError},
		{"empty code falls back to 500", "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"not found", "NOT_FOUND", ErrCodeNotFound},
		{"terminal session becomes session closed", "SESSION_TERMINAL", ErrCodeSessionClosed},
		{"turn in progress", "TURN_IN_PROGRESS", ErrCodeTurnInProgress},
		{"empty utterance is a validation failure", "EMPTY_UTTERANCE", ErrCodeValidation},
		{"invalid protocol is a business rule failure", "INVALID_PROTOCOL", ErrCodeBusinessRule},
		{"api code passes through", ErrCodeNotFound, ErrCodeNotFound},
		{"unknown code passes through", "SOMETHING_ELSE", "SOMETHING_ELSE"},
		{"empty code passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

// Every code in the status map is wire vocabulary and carries the ERR_
// prefix.
func TestErrorCodePrefix(t *testing.T) {
	for code := range ErrorCodeHTTPStatus {
		assert.True(t, strings.HasPrefix(code, "ERR_"), "code %q lacks the ERR_ prefix", code)
	}
}

// Every domain code must normalize to a code the status map resolves;
// otherwise a mapped domain error would surface as a blanket 500.
func TestDomainCodesResolveToStatuses(t *testing.T) {
	for domainCode, apiCode := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "domain code %q maps to %q, which has no HTTP status", domainCode, apiCode)
	}
}

// Help hints only attach to codes the status map knows about.
func TestHelpCoversKnownCodesOnly(t *testing.T) {
	for code, help := range ErrorCodeHelp {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "help for %q, which has no HTTP status", code)
		assert.NotEmpty(t, help)
	}
}
