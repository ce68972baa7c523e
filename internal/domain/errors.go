package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Token lifecycle errors. Each one names the validation step that
	// rejected the presented token.
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrBadSignature         = errors.New("token signature is invalid")
	ErrTokenNotYetValid     = errors.New("token is not yet valid")
	ErrTokenExpired         = errors.New("token has expired")
	ErrRefreshWindowExpired = errors.New("token is outside the refresh window")
	ErrTokenRevoked         = errors.New("token has been revoked")
	ErrSubjectNotFound      = errors.New("token subject not found")

	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("auth store unavailable")
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// authErrors enumerates the error kinds that represent an authentication
// decision. They all surface to HTTP clients as 401 with a generic body;
// the specific kind is for logs and metrics only.
var authErrors = []error{
	ErrTokenMalformed,
	ErrBadSignature,
	ErrTokenNotYetValid,
	ErrTokenExpired,
	ErrRefreshWindowExpired,
	ErrTokenRevoked,
	ErrSubjectNotFound,
	ErrInvalidCredentials,
}

// IsAuthError returns true if the error is part of the authentication
// decision taxonomy (as opposed to an infrastructure fault).
func IsAuthError(err error) bool {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// AuthFailureReason returns a short stable label for an auth error,
// suitable for metric attributes and log fields.
func AuthFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrRefreshWindowExpired):
		return "refresh_window_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrSubjectNotFound):
		return "subject_not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "other"
	}
}
