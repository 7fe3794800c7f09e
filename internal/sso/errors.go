package sso

import "fmt"

// AuthenticationError carries the identity service's message for a
// rejected login.
type AuthenticationError struct {
	Message string
	Status  int
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// RefreshError marks a rejected refresh-token exchange (expired or
// revoked refresh token).
type RefreshError struct {
	Message string
	Status  int
}

func (e *RefreshError) Error() string {
	return e.Message
}

// CallbackError marks a failed OAuth callback exchange, at either the
// code-exchange or the follow-up validation step.
type CallbackError struct {
	Stage string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("oauth callback failed during %s: %v", e.Stage, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
