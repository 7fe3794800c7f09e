package domain

import "time"

// AuthResponse is the identity service's successful login/callback payload.
type AuthResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshResponse is the identity service's refresh payload. RefreshToken
// is set when the service rotates the refresh token; absent means the
// caller keeps its current one.
type RefreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// ValidationStatus classifies the outcome of a token validation call.
type ValidationStatus int

const (
	// ValidationValid means the identity service confirmed the token.
	ValidationValid ValidationStatus = iota
	// ValidationInvalid means the identity service rejected the token.
	// This is a normal result, not an error.
	ValidationInvalid
	// ValidationUnknown means the identity service could not be reached.
	// Callers must not treat an unknown outcome as invalidity: a transient
	// outage must never destroy a valid local session.
	ValidationUnknown
)

// ValidationResult is the outcome of validating an access token.
type ValidationResult struct {
	Status    ValidationStatus
	User      *User
	ExpiresAt time.Time
	// Err carries the transport failure when Status is ValidationUnknown.
	Err error
}

// Valid reports whether the token was confirmed by the identity service.
func (r ValidationResult) Valid() bool {
	return r.Status == ValidationValid
}
