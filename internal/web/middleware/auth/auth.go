package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/peerhive/peerhive/internal/web/handler/login"
	"github.com/peerhive/peerhive/internal/web/session"
)

// publicPrefixes are reachable without a session. Invitation redemption is
// public on purpose: the token is the credential.
var publicPrefixes = []string{
	"/static",
	"/login",
	"/register",
	"/logout",
	"/group/invitation/",
	"/auth/oidc/",
	"/checkalive",
}

// Middleware is a Fiber middleware that checks for user authentication.
func Middleware(c *fiber.Ctx) error {
	var (
		isLoginPage   = IsLoginPage(c)
		sessDataValid bool
	)

	originalURL := strings.ToLower(c.OriginalURL())

	// get session cookie
	loginCookie := c.Cookies("session")

	// check session validity
	sessData := new(session.Data)
	if loginCookie != "" {
		if err := sessData.Read(loginCookie); err == nil && sessData.User.ID > 0 {
			sessDataValid = true
			// Add the current user to locals for template access
			c.Locals("CurrentUser", sessData.User)
		}
	}

	if isPublic(originalURL) {
		// a logged-in user has no business on the login page
		if sessDataValid && isLoginPage {
			return c.Redirect("/")
		}

		return c.Next()
	}

	if !sessDataValid {
		return c.Redirect(login.Path)
	}

	return c.Next()
}

func isPublic(url string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}

	return false
}

// IsLoginPage checks if the current request is for the login page.
func IsLoginPage(c *fiber.Ctx) bool {
	originalURL := strings.ToLower(c.OriginalURL())
	return strings.HasPrefix(originalURL, login.Path)
}
