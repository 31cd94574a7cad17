// Package home provides the home timeline handler.
package home

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	postctl "github.com/peerhive/peerhive/internal/db/controller/post"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the home timeline path.
	Path = handler.RootPath

	// TemplateName is the home timeline template.
	TemplateName = "home"

	// DefaultPageSize is the home timeline page size.
	DefaultPageSize = 20
)

// Service provides the home timeline handler.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the home handler.
var Handler = Service{}

// Init initializes the home handler and registers its route.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path, s.Get)

	return nil
}

// Get renders the home timeline: the latest posts across the site, newest
// first, decorated with reaction counts for the current user.
func (s *Service) Get(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	page := c.QueryInt("page", 1)

	entries, total, err := postctl.Timeline(s.db, user.ID, nil, page, DefaultPageSize)
	if err != nil {
		return err
	}

	nav := navigation.NewContext("Home", navigation.SectionHome, "home").
		AddBreadcrumb("Home", Path, true)

	return c.Render(TemplateName, fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
		"User":       user,
		"Posts":      entries,
		"TotalPosts": total,
		"Page":       page,
		"Flash":      handler.PopFlash(c),
	}, handler.BaseLayout)
}
