// Package errmap provides the HTTP wire mapping for domain errors.
// Every domain error has an explicit status code, machine-readable code,
// and public message.
package errmap

import (
	"errors"
	"net/http"

	"github.com/a2workspace/jwtguard/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// Public messages for authentication failures. Credential rejections and
// token rejections each collapse onto one fixed message so the response
// body cannot be used as an oracle for why authentication failed. The
// specific reason is carried by Code for logs only, never in Message.
const (
	msgUnauthorized       = "Unauthorized"
	msgInvalidAccessToken = "Invalid Access Token"
)

// httpMapping defines a domain error to HTTP status/code mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
	message    string
}

// httpMappings maps domain errors to HTTP responses.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Credential errors: 401 with the generic message.
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", msgUnauthorized},

	// Token errors: 401; all share the same public message.
	{domain.ErrTokenMalformed, http.StatusUnauthorized, "TOKEN_MALFORMED", msgInvalidAccessToken},
	{domain.ErrBadSignature, http.StatusUnauthorized, "BAD_SIGNATURE", msgInvalidAccessToken},
	{domain.ErrTokenNotYetValid, http.StatusUnauthorized, "TOKEN_NOT_YET_VALID", msgInvalidAccessToken},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED", msgInvalidAccessToken},
	{domain.ErrRefreshWindowExpired, http.StatusUnauthorized, "REFRESH_WINDOW_EXPIRED", msgInvalidAccessToken},
	{domain.ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED", msgInvalidAccessToken},
	{domain.ErrSubjectNotFound, http.StatusUnauthorized, "SUBJECT_NOT_FOUND", msgInvalidAccessToken},

	// Resource errors
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not Found"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "Already Exists"},

	// Validation errors: 400
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT", "Invalid Request"},

	// Availability: 503; auth stores being down is not an auth decision.
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", "Service Unavailable"},
}

// ToHTTPError converts a domain error to an HTTP error. Unknown errors map
// to 500 with a fixed body; internal error details are never exposed to
// clients.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: m.message}
		}
	}
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
