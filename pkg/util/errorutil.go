package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors surfaced over HTTP.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewNoToken rejects requests lacking a usable bearer token.
func NewNoToken(message string) error {
	return NewDomainError("NO_TOKEN", message, http.StatusUnauthorized, nil)
}

// NewInvalidToken rejects requests carrying an invalid or expired token.
func NewInvalidToken(message string) error {
	return NewDomainError("INVALID_TOKEN", message, http.StatusUnauthorized, nil)
}

// NewNoUser rejects guards invoked without an upstream auth guard.
func NewNoUser() error {
	return NewDomainError("NO_USER", "authentication required", http.StatusUnauthorized, nil)
}

// NewAgeNotVerified rejects users who have not completed age verification.
func NewAgeNotVerified(verifyURL string) error {
	return NewDomainError("AGE_NOT_VERIFIED", "age verification required", http.StatusForbidden,
		map[string]any{"verifyUrl": verifyURL})
}

// NewForbidden rejects users lacking a required role.
func NewForbidden(required []string) error {
	return NewDomainError("FORBIDDEN", "insufficient role", http.StatusForbidden,
		map[string]any{"required": required})
}

// NewNoPlatformAccess rejects users without access to the target platform.
func NewNoPlatformAccess(platform, subscribeURL string) error {
	return NewDomainError("NO_PLATFORM_ACCESS", "no access to this platform", http.StatusForbidden,
		map[string]any{"platform": platform, "subscribeUrl": subscribeURL})
}

// NewNotCreator rejects non-creators from creator-only routes.
func NewNotCreator(applyURL string) error {
	return NewDomainError("NOT_CREATOR", "creator account required", http.StatusForbidden,
		map[string]any{"applyUrl": applyURL})
}

// NewCreatorNotVerified rejects creators whose verification is still pending.
func NewCreatorNotVerified(status, verifyURL string) error {
	return NewDomainError("CREATOR_NOT_VERIFIED", "creator verification required", http.StatusForbidden,
		map[string]any{"status": status, "verifyUrl": verifyURL})
}

// NewRateLimited rejects requests over the configured ceiling.
func NewRateLimited(retryAfterSeconds int) error {
	return NewDomainError("RATE_LIMITED", "too many requests", http.StatusTooManyRequests,
		map[string]any{"retryAfter": retryAfterSeconds})
}

// NewValidationError flags malformed request payloads.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInternalError wraps unexpected failures.
func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
