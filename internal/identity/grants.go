package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrGrantNotFound marks a refresh token or authorization code that is
// unknown, expired, or already consumed.
var ErrGrantNotFound = errors.New("grant not found")

// GrantStore holds the single-use grants the identity endpoints hand out:
// refresh tokens and OAuth authorization codes. Both are opaque, expire on
// their own, and are consumed exactly once.
type GrantStore interface {
	// IssueRefreshToken mints a refresh token for the user.
	IssueRefreshToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// ConsumeRefreshToken redeems a refresh token, removing it. Returns
	// the owning user id, or ErrGrantNotFound.
	ConsumeRefreshToken(ctx context.Context, token string) (string, error)
	// RevokeRefreshTokens drops every outstanding refresh token for the
	// user.
	RevokeRefreshTokens(ctx context.Context, userID string) error
	// IssueAuthCode mints a short-lived OAuth authorization code.
	IssueAuthCode(ctx context.Context, userID string, ttl time.Duration) (string, error)
	// ConsumeAuthCode redeems an authorization code, removing it.
	ConsumeAuthCode(ctx context.Context, code string) (string, error)
}

const (
	refreshKeyPrefix  = "auth:refresh:"
	userTokensPrefix  = "auth:refresh:user:"
	authCodeKeyPrefix = "auth:code:"
)

// RedisGrantStore keeps grants in Redis with native expiry. Refresh
// tokens are indexed per user so logout can revoke them all.
type RedisGrantStore struct {
	client *redis.Client
}

// NewRedisGrantStore wraps an existing Redis client.
func NewRedisGrantStore(client *redis.Client) *RedisGrantStore {
	return &RedisGrantStore{client: client}
}

func (s *RedisGrantStore) IssueRefreshToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKeyPrefix+token, userID, ttl)
	pipe.SAdd(ctx, userTokensPrefix+userID, token)
	pipe.Expire(ctx, userTokensPrefix+userID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	return token, nil
}

func (s *RedisGrantStore) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	// GETDEL makes redemption atomic: two racing consumers cannot both
	// succeed with the same token.
	userID, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", ErrGrantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}

	_ = s.client.SRem(ctx, userTokensPrefix+userID, token).Err()
	return userID, nil
}

func (s *RedisGrantStore) RevokeRefreshTokens(ctx context.Context, userID string) error {
	setKey := userTokensPrefix + userID

	tokens, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list refresh tokens: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, refreshKeyPrefix+token)
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func (s *RedisGrantStore) IssueAuthCode(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	code := uuid.NewString()
	if err := s.client.Set(ctx, authCodeKeyPrefix+code, userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("issue auth code: %w", err)
	}
	return code, nil
}

func (s *RedisGrantStore) ConsumeAuthCode(ctx context.Context, code string) (string, error) {
	userID, err := s.client.GetDel(ctx, authCodeKeyPrefix+code).Result()
	if err == redis.Nil {
		return "", ErrGrantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume auth code: %w", err)
	}
	return userID, nil
}
