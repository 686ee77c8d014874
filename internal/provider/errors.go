package provider

import "fmt"

// ErrorCode classifies provider fetch failures for callers that branch on
// the failure mode rather than the message
type ErrorCode string

const (
	CodeTimeout     ErrorCode = "timeout"
	CodeHTTPStatus  ErrorCode = "http_status"
	CodeDecode      ErrorCode = "decode"
	CodeCircuitOpen ErrorCode = "circuit_open"
	CodeRateLimited ErrorCode = "rate_limited"
	CodeExhausted   ErrorCode = "retries_exhausted"
)

// ProviderError is the typed failure every external fetch surfaces. The
// caller always knows which provider failed and how.
type ProviderError struct {
	Provider string
	Code     ErrorCode
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(provider string, code ErrorCode, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Err: err}
}
