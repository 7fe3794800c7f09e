package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/domain"
	"github.com/fanzlab/authcore/internal/repository"
)

func testConfig() config.IdentityConfig {
	return config.IdentityConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		RefreshTokenTTLHours:  24,
		AuthorizeBaseURL:      "https://sso.example.com/authorize",
		OAuthClientID:         "authcore",
		BcryptCost:            4,
	}
}

func newTestService(t *testing.T) (*Service, *repository.MemoryAccountRepository) {
	t.Helper()

	accounts := repository.NewMemoryAccountRepository()
	service := NewService(testConfig(), accounts, NewMemoryGrantStore(), nil, zap.NewNop())

	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(context.Background(), &repository.Account{
		User: domain.User{
			Email:          "fan@x.com",
			DisplayName:    "Fan",
			PlatformAccess: []string{"boyfanz"},
			CreatorStatus:  domain.CreatorStatusNone,
			AgeVerified:    true,
			Roles:          []domain.Role{domain.RoleFan},
		},
		PasswordHash: hash,
	}))

	return service, accounts
}

func TestService_LoginIssuesTokenPair(t *testing.T) {
	service, _ := newTestService(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)
	assert.NotEmpty(t, auth.RefreshToken)
	assert.Equal(t, 3600, auth.ExpiresIn)
	require.NotNil(t, auth.User)
	assert.Equal(t, "fan@x.com", auth.User.Email)

	user, expiresAt, ok := service.Validate(context.Background(), auth.Token)
	require.True(t, ok)
	assert.Equal(t, auth.User.ID, user.ID)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestService_LoginRejectsWrongPassword(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Login(context.Background(), "fan@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginRejectsUnknownAccount(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Login(context.Background(), "nobody@x.com", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_ValidateRejectsGarbage(t *testing.T) {
	service, _ := newTestService(t)

	_, _, ok := service.Validate(context.Background(), "not-a-jwt")
	assert.False(t, ok)
}

func TestService_RefreshRotatesAndIsSingleUse(t *testing.T) {
	service, _ := newTestService(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)

	refreshed, err := service.Refresh(context.Background(), auth.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Token)
	assert.NotEmpty(t, refreshed.RefreshToken)
	assert.NotEqual(t, auth.RefreshToken, refreshed.RefreshToken)

	// The consumed token is gone; replaying it must fail.
	_, err = service.Refresh(context.Background(), auth.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshRejected)

	// The rotated token works.
	_, err = service.Refresh(context.Background(), refreshed.RefreshToken)
	assert.NoError(t, err)
}

func TestService_LogoutRevokesRefreshTokens(t *testing.T) {
	service, _ := newTestService(t)

	auth, err := service.Login(context.Background(), "fan@x.com", "hunter2")
	require.NoError(t, err)

	service.Logout(context.Background(), auth.Token)

	_, err = service.Refresh(context.Background(), auth.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshRejected)
}

func TestService_LogoutSwallowsGarbageTokens(t *testing.T) {
	service, _ := newTestService(t)

	// Must not panic; the caller is discarding the token either way.
	service.Logout(context.Background(), "not-a-jwt")
}

func TestService_AuthorizationURL(t *testing.T) {
	service, _ := newTestService(t)

	url := service.AuthorizationURL("boyfanz")
	assert.Contains(t, url, "https://sso.example.com/authorize?")
	assert.Contains(t, url, "platform=boyfanz")
	assert.Contains(t, url, "client_id=authcore")
	assert.Contains(t, url, "response_type=code")
}

func TestService_CodeExchange(t *testing.T) {
	service, accounts := newTestService(t)

	account, err := accounts.GetByEmail(context.Background(), "fan@x.com")
	require.NoError(t, err)

	code, err := service.IssueAuthCode(context.Background(), account.ID)
	require.NoError(t, err)

	auth, err := service.ExchangeCode(context.Background(), code)
	require.NoError(t, err)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, account.ID, auth.User.ID)

	// Codes are single use.
	_, err = service.ExchangeCode(context.Background(), code)
	assert.ErrorIs(t, err, ErrGrantNotFound)
}
