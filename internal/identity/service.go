package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/config"
	"github.com/fanzlab/authcore/internal/domain"
	"github.com/fanzlab/authcore/internal/events"
	"github.com/fanzlab/authcore/internal/repository"
)

// ErrInvalidCredentials marks a rejected login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrRefreshRejected marks an expired, revoked, or already-used refresh
// token.
var ErrRefreshRejected = errors.New("refresh token rejected")

const authCodeTTL = 5 * time.Minute

// Service implements the identity contract: credential login, token
// validation, refresh rotation, logout, and the OAuth code exchange.
type Service struct {
	accounts   repository.AccountRepository
	tokens     *TokenManager
	grants     GrantStore
	dispatcher events.Dispatcher
	refreshTTL time.Duration
	authorize  string
	clientID   string
	logger     *zap.Logger
}

// NewService builds the identity service.
func NewService(cfg config.IdentityConfig, accounts repository.AccountRepository, grants GrantStore, dispatcher events.Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		accounts:   accounts,
		tokens:     NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		grants:     grants,
		dispatcher: dispatcher,
		refreshTTL: cfg.RefreshTokenTTL(),
		authorize:  cfg.AuthorizeBaseURL,
		clientID:   cfg.OAuthClientID,
		logger:     logger,
	}
}

// TokenManager exposes the underlying manager for middleware wiring.
func (s *Service) TokenManager() *TokenManager {
	return s.tokens
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := CheckPassword(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	auth, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventLoginSucceeded, account.ID)
	return auth, nil
}

// Validate resolves an access token to its user. An unparsable or expired
// token — or one whose account has vanished — yields ok=false, never an
// error: invalidity is a normal outcome.
func (s *Service) Validate(ctx context.Context, token string) (*domain.User, time.Time, bool) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, time.Time{}, false
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("account lookup failed during validation", zap.Error(err))
		}
		return nil, time.Time{}, false
	}

	user := account.User
	return &user, claims.ExpiresAt.Time, true
}

// Refresh redeems a refresh token for a new access token, rotating the
// refresh token. Redemption is single-use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.RefreshResponse, error) {
	userID, err := s.grants.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	access, _, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	rotated, err := s.grants.IssueRefreshToken(ctx, account.ID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.publish(ctx, events.EventTokenRefreshed, account.ID)
	return &domain.RefreshResponse{
		Token:        access,
		RefreshToken: rotated,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
	}, nil
}

// Logout revokes every refresh token belonging to the token's user. The
// operation is best effort: an unparsable token still succeeds, since the
// caller is discarding it either way.
func (s *Service) Logout(ctx context.Context, token string) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return
	}
	if err := s.grants.RevokeRefreshTokens(ctx, claims.Subject); err != nil {
		s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", claims.Subject), zap.Error(err))
		return
	}
	s.publish(ctx, events.EventLoggedOut, claims.Subject)
}

// AuthorizationURL builds the federated login redirect for a platform.
func (s *Service) AuthorizationURL(platformID string) string {
	params := url.Values{
		"client_id":     {s.clientID},
		"platform":      {platformID},
		"response_type": {"code"},
	}
	return s.authorize + "?" + params.Encode()
}

// IssueAuthCode mints a short-lived authorization code for the user,
// redeemable once at the OIDC token endpoint.
func (s *Service) IssueAuthCode(ctx context.Context, userID string) (string, error) {
	return s.grants.IssueAuthCode(ctx, userID, authCodeTTL)
}

// ExchangeCode redeems an authorization code for an access/refresh token
// pair.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*domain.AuthResponse, error) {
	userID, err := s.grants.ConsumeAuthCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("consume auth code: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	auth, err := s.issueTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventLoginSucceeded, account.ID)
	return auth, nil
}

func (s *Service) issueTokens(ctx context.Context, account *repository.Account) (*domain.AuthResponse, error) {
	access, _, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.grants.IssueRefreshToken(ctx, account.ID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	user := account.User
	return &domain.AuthResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         &user,
		ExpiresIn:    int(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, userID string) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
	})
}
