package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fanzlab/authcore/internal/identity"
)

// AuthHandler serves the identity service HTTP contract.
type AuthHandler struct {
	service *identity.Service
	logger  *zap.Logger
}

// NewAuthHandler returns a new handler instance.
func NewAuthHandler(service *identity.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Platform string `json:"platform"`
}

// Login handles POST /auth/login. Failures carry a "message" field the
// SSO client surfaces verbatim.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "malformed request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "email and password are required"})
	}

	auth, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "invalid email or password"})
		}
		h.logger.Error("login failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "login temporarily unavailable"})
	}

	return c.JSON(auth)
}

// Validate handles GET /auth/validate. Invalidity is a normal 200 result.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.JSON(fiber.Map{"valid": false})
	}

	user, expiresAt, ok := h.service.Validate(c.UserContext(), token)
	if !ok {
		return c.JSON(fiber.Map{"valid": false})
	}

	return c.JSON(fiber.Map{
		"valid":      true,
		"user":       user,
		"expires_at": expiresAt.Unix(),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /auth/refresh with single-use rotation.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "refresh_token is required"})
	}

	refreshed, err := h.service.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrRefreshRejected) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "refresh token expired or revoked"})
		}
		h.logger.Error("refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "refresh temporarily unavailable"})
	}

	return c.JSON(refreshed)
}

// Logout handles POST /auth/logout. Always 2xx: the caller is discarding
// its session regardless of what happens here.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if token := bearerToken(c); token != "" {
		h.service.Logout(c.UserContext(), token)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Authorize handles GET /auth/platforms/:platformId/authorize.
func (h *AuthHandler) Authorize(c *fiber.Ctx) error {
	platformID := c.Params("platformId")
	if platformID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "platform id is required"})
	}
	return c.JSON(fiber.Map{"authorization_url": h.service.AuthorizationURL(platformID)})
}

// OIDCToken handles POST /oidc/token (form-encoded authorization-code
// grant). Error bodies follow the OAuth2 convention.
func (h *AuthHandler) OIDCToken(c *fiber.Ctx) error {
	if c.FormValue("grant_type") != "authorization_code" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported_grant_type"})
	}
	code := c.FormValue("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	auth, err := h.service.ExchangeCode(c.UserContext(), code)
	if err != nil {
		if errors.Is(err, identity.ErrGrantNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_grant"})
		}
		h.logger.Error("code exchange failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "server_error"})
	}

	return c.JSON(fiber.Map{
		"access_token":  auth.Token,
		"refresh_token": auth.RefreshToken,
		"expires_in":    auth.ExpiresIn,
	})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
