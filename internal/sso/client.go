package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/domain"
)

// Client is a stateless HTTP client for the identity service contract.
// Every call carries a bounded timeout; a hung identity service must not
// hang the caller.
type Client struct {
	baseURL     string
	platformID  string
	clientID    string
	redirectURI string
	httpClient  *http.Client
	logger      *zap.Logger
}

// New constructs a client from configuration.
func New(cfg config.SSOConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		platformID:  cfg.PlatformID,
		clientID:    cfg.OAuthClientID,
		redirectURI: cfg.OAuthRedirectURI,
		httpClient:  &http.Client{Timeout: cfg.Timeout()},
		logger:      logger,
	}
}

// GetAuthorizationURL fetches the federated login redirect URL for the
// client's platform.
func (c *Client) GetAuthorizationURL(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/auth/platforms/%s/authorize", c.baseURL, url.PathEscape(c.platformID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authorize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("authorize request: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode authorize response: %w", err)
	}
	return body.AuthorizationURL, nil
}

// Login posts credentials and returns the full auth response. A non-2xx
// reply yields an AuthenticationError carrying the server's message.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"platform": c.platformID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthenticationError{Message: errorMessage(resp.Body, "login failed"), Status: resp.StatusCode}
	}

	var auth domain.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	return &auth, nil
}

// ValidateToken checks an access token against the identity service.
// Invalidity is a normal result, not an error; transport failures are
// reported as ValidationUnknown so that callers never mistake an outage
// for a revoked token.
func (c *Client) ValidateToken(ctx context.Context, token string) domain.ValidationResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/validate", nil)
	if err != nil {
		return domain.ValidationResult{Status: domain.ValidationUnknown, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ValidationResult{Status: domain.ValidationUnknown, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return domain.ValidationResult{
			Status: domain.ValidationUnknown,
			Err:    fmt.Errorf("validate: identity service returned %d", resp.StatusCode),
		}
	}

	var body struct {
		Valid     bool         `json:"valid"`
		User      *domain.User `json:"user,omitempty"`
		ExpiresAt int64        `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ValidationResult{Status: domain.ValidationUnknown, Err: fmt.Errorf("decode validate response: %w", err)}
	}

	if !body.Valid || body.User == nil {
		return domain.ValidationResult{Status: domain.ValidationInvalid}
	}
	return domain.ValidationResult{
		Status:    domain.ValidationValid,
		User:      body.User,
		ExpiresAt: time.Unix(body.ExpiresAt, 0),
	}
}

// RefreshToken exchanges a refresh token for a new access token. A
// rejected exchange yields a RefreshError.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResponse, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RefreshError{Message: errorMessage(resp.Body, "refresh rejected"), Status: resp.StatusCode}
	}

	var refreshed domain.RefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	return &refreshed, nil
}

// Logout asks the identity service to invalidate the token. Failures are
// logged, never propagated: logout must always succeed locally.
func (c *Client) Logout(ctx context.Context, token string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		c.logger.Warn("logout request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("remote logout failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("remote logout rejected", zap.Int("status", resp.StatusCode))
	}
}

// HandleCallback exchanges an OAuth authorization code for tokens, then
// validates the resulting access token to obtain the user record. The
// state echo must be checked by the caller against the value it issued
// before redirecting.
func (c *Client) HandleCallback(ctx context.Context, code, state string) (*domain.AuthResponse, error) {
	_ = state

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {c.clientID},
		"redirect_uri": {c.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oidc/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &CallbackError{Stage: "token exchange", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CallbackError{Stage: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallbackError{
			Stage: "token exchange",
			Err:   fmt.Errorf("identity service returned %d: %s", resp.StatusCode, errorMessage(resp.Body, "code rejected")),
		}
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &CallbackError{Stage: "token exchange", Err: err}
	}

	result := c.ValidateToken(ctx, tokens.AccessToken)
	if !result.Valid() {
		err := result.Err
		if err == nil {
			err = fmt.Errorf("exchanged token did not validate")
		}
		return nil, &CallbackError{Stage: "token validation", Err: err}
	}

	return &domain.AuthResponse{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         result.User,
		ExpiresIn:    tokens.ExpiresIn,
	}, nil
}

// errorMessage pulls the "message" (or "error") field from an error body,
// falling back to a default.
func errorMessage(r io.Reader, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return fallback
	}
	if body.Message != "" {
		return body.Message
	}
	if body.Error != "" {
		return body.Error
	}
	return fallback
}
