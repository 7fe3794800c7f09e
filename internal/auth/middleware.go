package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/domain"
	apperrors "github.com/fanzlab/authcore/pkg/util"
)

const (
	userKey  = "auth_user"
	tokenKey = "auth_token"
)

// TokenValidator resolves a bearer token to a user via the identity
// service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) domain.ValidationResult
}

// GuardURLs holds the remediation URLs attached to authorization
// rejections.
type GuardURLs struct {
	VerifyURL    string
	SubscribeURL string
	ApplyURL     string
}

// Guards builds the per-request guard chain. Guard ordering is a
// contract: every gate below RequireAuth/OptionalAuth reads the user those
// two attach, and fails closed with NO_USER when invoked without one.
type Guards struct {
	validator TokenValidator
	urls      GuardURLs
	logger    *zap.Logger
}

// NewGuards constructs the guard chain factory.
func NewGuards(validator TokenValidator, urls GuardURLs, logger *zap.Logger) *Guards {
	return &Guards{validator: validator, urls: urls, logger: logger}
}

// extractBearer returns the token from an Authorization header, or ""
// when the header is absent or malformed.
func extractBearer(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth validates the bearer token and attaches the resolved user
// and raw token to the request context.
func (g *Guards) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" {
			return apperrors.NewNoToken("missing or malformed authorization header")
		}

		result := g.validator.ValidateToken(c.UserContext(), token)
		switch result.Status {
		case domain.ValidationValid:
			c.Locals(userKey, result.User)
			c.Locals(tokenKey, token)
			return c.Next()
		case domain.ValidationUnknown:
			g.logger.Warn("identity service unreachable during validation", zap.Error(result.Err))
			return apperrors.NewInvalidToken("token could not be validated")
		default:
			return apperrors.NewInvalidToken("invalid or expired token")
		}
	}
}

// OptionalAuth performs the same extraction and validation but never
// rejects: absent or invalid tokens simply leave the user unset.
func (g *Guards) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" {
			return c.Next()
		}

		result := g.validator.ValidateToken(c.UserContext(), token)
		if result.Status == domain.ValidationUnknown {
			g.logger.Warn("identity service unreachable during optional validation", zap.Error(result.Err))
		}
		if result.Valid() {
			c.Locals(userKey, result.User)
			c.Locals(tokenKey, token)
		}
		return c.Next()
	}
}

// RequireAgeVerification rejects users who have not completed age
// verification. Must run after RequireAuth.
func (g *Guards) RequireAgeVerification() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewNoUser()
		}
		if !IsAgeVerified(user) {
			return apperrors.NewAgeNotVerified(g.urls.VerifyURL)
		}
		return c.Next()
	}
}

// RequireRole rejects users whose role set does not intersect the required
// set. Admin satisfies any role check.
func (g *Guards) RequireRole(required ...domain.Role) fiber.Handler {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}

	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewNoUser()
		}
		if !HasRole(user, required...) {
			return apperrors.NewForbidden(names)
		}
		return c.Next()
	}
}

// RequirePlatformAccess rejects users not entitled to the target platform.
func (g *Guards) RequirePlatformAccess(platformID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewNoUser()
		}
		if !HasPlatformAccess(user, platformID) {
			return apperrors.NewNoPlatformAccess(platformID, g.urls.SubscribeURL)
		}
		return c.Next()
	}
}

// RequireCreator rejects users without a creator account.
func (g *Guards) RequireCreator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewNoUser()
		}
		if !IsCreator(user) {
			return apperrors.NewNotCreator(g.urls.ApplyURL)
		}
		return c.Next()
	}
}

// RequireVerifiedCreator rejects creators whose verification is pending or
// absent.
func (g *Guards) RequireVerifiedCreator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFromContext(c)
		if !ok {
			return apperrors.NewNoUser()
		}
		if !IsVerifiedCreator(user) {
			return apperrors.NewCreatorNotVerified(string(user.CreatorStatus), g.urls.VerifyURL)
		}
		return c.Next()
	}
}

// UserFromContext retrieves the user attached by RequireAuth/OptionalAuth.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(userKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok && user != nil
}

// TokenFromContext retrieves the raw bearer token attached by
// RequireAuth/OptionalAuth.
func TokenFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(tokenKey)
	if val == nil {
		return "", false
	}
	token, ok := val.(string)
	return token, ok && token != ""
}
