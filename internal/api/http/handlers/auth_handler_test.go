package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/api/http/handlers"
	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/domain"
	"github.com/fanzlab/authcore/internal/identity"
	"github.com/fanzlab/authcore/internal/repository"
)

func newAuthApp(t *testing.T) (*fiber.App, *identity.Service, *repository.MemoryAccountRepository) {
	t.Helper()

	accounts := repository.NewMemoryAccountRepository()
	service := identity.NewService(config.IdentityConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		RefreshTokenTTLHours:  24,
		AuthorizeBaseURL:      "https://sso.example.com/authorize",
		OAuthClientID:         "authcore",
		BcryptCost:            4,
	}, accounts, identity.NewMemoryGrantStore(), nil, zap.NewNop())

	hash, err := identity.HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), &repository.Account{
		User: domain.User{
			Email:          "fan@x.com",
			DisplayName:    "Fan",
			PlatformAccess: []string{"boyfanz"},
			AgeVerified:    true,
			Roles:          []domain.Role{domain.RoleFan},
		},
		PasswordHash: hash,
	}))

	handler := handlers.NewAuthHandler(service, zap.NewNop())

	app := fiber.New()
	app.Post("/auth/login", handler.Login)
	app.Get("/auth/validate", handler.Validate)
	app.Post("/auth/refresh", handler.Refresh)
	app.Post("/auth/logout", handler.Logout)
	app.Get("/auth/platforms/:platformId/authorize", handler.Authorize)
	app.Post("/oidc/token", handler.OIDCToken)

	return app, service, accounts
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	app, _, _ := newAuthApp(t)

	resp := postJSON(t, app, "/auth/login", fiber.Map{
		"email":    "fan@x.com",
		"password": "hunter2",
		"platform": "boyfanz",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, float64(3600), body["expires_in"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fan@x.com", user["email"])
}

func TestAuthHandler_LoginWrongPassword(t *testing.T) {
	app, _, _ := newAuthApp(t)

	resp := postJSON(t, app, "/auth/login", fiber.Map{
		"email":    "fan@x.com",
		"password": "wrong",
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid email or password", decodeBody(t, resp)["message"])
}

func TestAuthHandler_LoginMissingFields(t *testing.T) {
	app, _, _ := newAuthApp(t)

	resp := postJSON(t, app, "/auth/login", fiber.Map{"email": "fan@x.com"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email and password are required", decodeBody(t, resp)["message"])
}

func TestAuthHandler_ValidateRoundtrip(t *testing.T) {
	app, service, _ := newAuthApp(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/auth/validate", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+auth.Token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["valid"])
	assert.NotNil(t, body["user"])
	assert.NotNil(t, body["expires_at"])
}

func TestAuthHandler_ValidateBadTokenIsStill200(t *testing.T) {
	app, _, _ := newAuthApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/auth/validate", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["valid"])
	assert.NotContains(t, body, "user")
}

func TestAuthHandler_RefreshRotation(t *testing.T) {
	app, service, _ := newAuthApp(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)

	resp := postJSON(t, app, "/auth/refresh", fiber.Map{"refresh_token": auth.RefreshToken})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["token"])
	assert.NotEqual(t, auth.RefreshToken, body["refresh_token"])

	// Replaying the consumed token is rejected.
	resp = postJSON(t, app, "/auth/refresh", fiber.Map{"refresh_token": auth.RefreshToken})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "refresh token expired or revoked", decodeBody(t, resp)["message"])
}

func TestAuthHandler_LogoutAlwaysSucceeds(t *testing.T) {
	app, service, _ := newAuthApp(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodPost, "/auth/logout", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+auth.Token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// Without any token it is still a 204.
	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/auth/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestAuthHandler_Authorize(t *testing.T) {
	app, _, _ := newAuthApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/auth/platforms/girlfanz/authorize", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	raw, _ := body["authorization_url"].(string)
	assert.Contains(t, raw, "platform=girlfanz")
}

func TestAuthHandler_OIDCTokenGrant(t *testing.T) {
	app, service, accounts := newAuthApp(t)

	account, err := accounts.GetByEmail(context.Background(), "fan@x.com")
	require.NoError(t, err)
	code, err := service.IssueAuthCode(context.Background(), account.ID)
	require.NoError(t, err)

	form := url.Values{"grant_type": {"authorization_code"}, "code": {code}}
	req := httptest.NewRequest(fiber.MethodPost, "/oidc/token", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, float64(3600), body["expires_in"])
}

func TestAuthHandler_OIDCTokenErrors(t *testing.T) {
	app, _, _ := newAuthApp(t)

	cases := []struct {
		name    string
		form    url.Values
		wantErr string
	}{
		{"wrong grant type", url.Values{"grant_type": {"password"}}, "unsupported_grant_type"},
		{"missing code", url.Values{"grant_type": {"authorization_code"}}, "invalid_request"},
		{"unknown code", url.Values{"grant_type": {"authorization_code"}, "code": {"bogus"}}, "invalid_grant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/oidc/token", strings.NewReader(tc.form.Encode()))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.wantErr, decodeBody(t, resp)["error"])
		})
	}
}
