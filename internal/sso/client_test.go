package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/domain"
)

var testUser = &domain.User{
	ID:             "u-1",
	Email:          "fan@x.com",
	DisplayName:    "Fan",
	PlatformAccess: []string{"boyfanz"},
	CreatorStatus:  domain.CreatorStatusNone,
	AgeVerified:    true,
	Roles:          []domain.Role{domain.RoleFan},
}

// newIdentityStub runs a minimal identity service for client tests.
func newIdentityStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/platforms/{platformId}/authorize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"authorization_url": "https://sso.example.com/authorize?platform=" + r.PathValue("platformId"),
		})
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Email, Password, Platform string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Email != "fan@x.com" || body.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "invalid email or password"})
			return
		}
		json.NewEncoder(w).Encode(domain.AuthResponse{
			Token:        "access-1",
			RefreshToken: "refresh-1",
			User:         testUser,
			ExpiresIn:    3600,
		})
	})
	mux.HandleFunc("GET /auth/validate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			json.NewEncoder(w).Encode(map[string]any{"valid": false})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"valid":      true,
			"user":       testUser,
			"expires_at": 1900000000,
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.RefreshToken != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "refresh token expired or revoked"})
			return
		}
		json.NewEncoder(w).Encode(domain.RefreshResponse{Token: "access-1", RefreshToken: "refresh-2", ExpiresIn: 3600})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /oidc/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostFormValue("grant_type") != "authorization_code" || r.PostFormValue("code") != "code-1" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(config.SSOConfig{
		BaseURL:          baseURL,
		PlatformID:       "boyfanz",
		OAuthClientID:    "authcore",
		OAuthRedirectURI: "https://boyfanz.com/callback",
		TimeoutSeconds:   2,
	}, zap.NewNop())
}

func TestGetAuthorizationURL(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	url, err := client.GetAuthorizationURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://sso.example.com/authorize?platform=boyfanz", url)
}

func TestLogin_Success(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	auth, err := client.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "access-1", auth.Token)
	assert.Equal(t, "refresh-1", auth.RefreshToken)
	require.NotNil(t, auth.User)
	assert.Equal(t, "u-1", auth.User.ID)
}

func TestLogin_WrongPasswordSurfacesServerMessage(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	auth, err := client.Login(context.Background(), "fan@x.com", "wrong")
	assert.Nil(t, auth)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid email or password", authErr.Message)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestValidateToken_Valid(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	result := client.ValidateToken(context.Background(), "access-1")
	assert.Equal(t, domain.ValidationValid, result.Status)
	require.NotNil(t, result.User)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Equal(t, int64(1900000000), result.ExpiresAt.Unix())
}

func TestValidateToken_InvalidIsNotAnError(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	result := client.ValidateToken(context.Background(), "stale")
	assert.Equal(t, domain.ValidationInvalid, result.Status)
	assert.Nil(t, result.User)
	assert.NoError(t, result.Err)
}

func TestValidateToken_NetworkFailureIsUnknown(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)
	server.Close()

	result := client.ValidateToken(context.Background(), "access-1")
	assert.Equal(t, domain.ValidationUnknown, result.Status)
	assert.Error(t, result.Err)
}

func TestValidateToken_ServerErrorIsUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := newClient(t, server.URL)

	result := client.ValidateToken(context.Background(), "access-1")
	assert.Equal(t, domain.ValidationUnknown, result.Status)
}

func TestRefreshToken_Success(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	refreshed, err := client.RefreshToken(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", refreshed.Token)
	assert.Equal(t, "refresh-2", refreshed.RefreshToken)
}

func TestRefreshToken_Rejected(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	refreshed, err := client.RefreshToken(context.Background(), "revoked")
	assert.Nil(t, refreshed)

	var refreshErr *RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, "refresh token expired or revoked", refreshErr.Message)
}

func TestLogout_SwallowsFailures(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)
	server.Close()

	// Must not panic or block; failures are logged only.
	client.Logout(context.Background(), "access-1")
}

func TestHandleCallback_Success(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	auth, err := client.HandleCallback(context.Background(), "code-1", "state-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", auth.Token)
	assert.Equal(t, "refresh-1", auth.RefreshToken)
	require.NotNil(t, auth.User)
	assert.Equal(t, "fan@x.com", auth.User.Email)
}

func TestHandleCallback_BadCode(t *testing.T) {
	server := newIdentityStub(t)
	client := newClient(t, server.URL)

	auth, err := client.HandleCallback(context.Background(), "bad-code", "state-1")
	assert.Nil(t, auth)

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "token exchange", cbErr.Stage)
	assert.Error(t, cbErr.Err)
}
