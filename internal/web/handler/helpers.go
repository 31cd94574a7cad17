package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/web/session"
)

// CurrentUser returns the authenticated user placed in Locals by the auth
// middleware. The second return is false on unauthenticated requests.
func CurrentUser(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals("CurrentUser").(models.User)
	if !ok || user.ID == 0 {
		return models.User{}, false
	}

	return user, true
}

// FlashRedirect stores a one-shot message in the session and redirects.
func FlashRedirect(c *fiber.Ctx, message, target string) error {
	if sessionID := c.Cookies("session"); sessionID != "" {
		_ = session.SetFlash(sessionID, message)
	}

	return c.Redirect(target)
}

// FlashBack stores a one-shot message and redirects to the referring page,
// falling back to the root path.
func FlashBack(c *fiber.Ctx, message string) error {
	target := c.Get(fiber.HeaderReferer)
	if target == "" {
		target = RootPath
	}

	return FlashRedirect(c, message, target)
}

// PopFlash returns the request session's flash message, clearing it.
func PopFlash(c *fiber.Ctx) string {
	sessionID := c.Cookies("session")
	if sessionID == "" {
		return ""
	}

	return session.PopFlash(sessionID)
}

// PermissionDenied renders the uniform 403 response.
func PermissionDenied(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).SendString(PermissionDeniedBody)
}
