// Package profile provides the public user profile handler.
package profile

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/auth"
	"github.com/peerhive/peerhive/internal/config"
	postctl "github.com/peerhive/peerhive/internal/db/controller/post"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the base path for profile routes.
	Path = handler.RootPath + "u"

	// TemplateName is the profile template.
	TemplateName = "profile"

	// DefaultPageSize is the profile timeline page size.
	DefaultPageSize = 20
)

// Service provides the profile handler.
type Service struct {
	handler.Service
	cfg   *config.Config
	db    *gorm.DB
	users *auth.LocalProvider
}

// Handler is the profile handler.
var Handler = Service{}

// Init initializes the profile handler and registers its route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.users = auth.NewLocalProvider(db)

	app.Get(Path+"/:username", s.Get)

	return nil
}

// Get renders a user's profile with their recent posts.
func (s *Service) Get(c *fiber.Ctx) error {
	viewer, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	profile, err := s.users.GetUserByUsername(c.Params("username"))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("User not found")
		}

		return err
	}

	page := c.QueryInt("page", 1)

	entries, total, err := postctl.UserPosts(s.db, viewer.ID, profile.ID, page, DefaultPageSize)
	if err != nil {
		return err
	}

	nav := navigation.NewContext(profile.Name, navigation.SectionProfile, "profile").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb(profile.Name, Path+"/"+profile.Username, true)

	return c.Render(TemplateName, fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
		"Profile":    profile,
		"IsSelf":     viewer.ID == profile.ID,
		"Posts":      entries,
		"TotalPosts": total,
		"Page":       page,
		"Flash":      handler.PopFlash(c),
	}, handler.BaseLayout)
}
