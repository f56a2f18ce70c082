package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for the pipeline's failure taxonomy. Components wrap
// these with fmt.Errorf("%w: ...") so callers can branch with
// errors.Is and surface differentiated messages.
var (
	// ErrConfiguration indicates a missing or invalid credential or
	// setting, detected eagerly before any network call.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuthentication indicates a provider rejected the configured
	// credential (HTTP 401 / invalid key).
	ErrAuthentication = errors.New("authentication error")

	// ErrProvider indicates a transient provider or network failure.
	// Callers may retry with the same inputs.
	ErrProvider = errors.New("provider error")

	// ErrValidation indicates malformed caller input (query text,
	// repository id, file name).
	ErrValidation = errors.New("validation error")

	// ErrRateLimited indicates the caller's quota for the current
	// window is exhausted. Terminal for this request; not retried.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNotFound indicates an unknown repository.
	ErrNotFound = errors.New("not found")
)

// authPatterns are substrings that identify credential rejections in
// provider error text.
//
// NOTE: string matching is used because Genkit and the provider SDKs
// do not expose typed errors for auth failures. Documented exception
// to the rule against strings.Contains(err.Error(), ...); revisit if
// the SDKs grow structured error types.
var authPatterns = []string{
	"401",
	"unauthenticated",
	"unauthorized",
	"api key not valid",
	"invalid api token",
	"invalid authentication",
	"permission denied",
}

// IsAuthError reports whether err looks like a provider credential
// rejection rather than a transient failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthentication) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range authPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ClassifyProviderError maps a raw provider/SDK error onto the
// taxonomy: credential rejections become ErrAuthentication, everything
// else ErrProvider. The original error remains reachable via
// errors.Unwrap on the caller's wrap.
func ClassifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return ErrAuthentication
	}
	return ErrProvider
}
