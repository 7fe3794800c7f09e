package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fanzlab/authcore/internal/auth"
)

// PlatformHandler serves the gated sample routes the guard chain fronts.
// Handlers here assume their guards already ran; they only read the user
// the chain attached.
type PlatformHandler struct{}

// NewPlatformHandler returns a new handler instance.
func NewPlatformHandler() *PlatformHandler {
	return &PlatformHandler{}
}

// Feed is public with enhanced-for-members behavior behind OptionalAuth.
func (h *PlatformHandler) Feed(c *fiber.Ctx) error {
	if user, ok := auth.UserFromContext(c); ok {
		return c.JSON(fiber.Map{"feed": "personalized", "user_id": user.ID})
	}
	return c.JSON(fiber.Map{"feed": "public"})
}

// Profile returns the caller's cached identity record.
func (h *PlatformHandler) Profile(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	return c.JSON(user)
}

// Content is the age- and platform-gated media listing.
func (h *PlatformHandler) Content(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	return c.JSON(fiber.Map{"content": []string{}, "user_id": user.ID})
}

// CreatorDashboard requires a creator account.
func (h *PlatformHandler) CreatorDashboard(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	return c.JSON(fiber.Map{"dashboard": "creator", "status": user.CreatorStatus})
}

// CreatorPayouts requires a verified creator.
func (h *PlatformHandler) CreatorPayouts(c *fiber.Ctx) error {
	user, _ := auth.UserFromContext(c)
	return c.JSON(fiber.Map{"payouts": []string{}, "user_id": user.ID})
}

// ModerationQueue requires moderator (or admin) role.
func (h *PlatformHandler) ModerationQueue(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"queue": []string{}})
}
