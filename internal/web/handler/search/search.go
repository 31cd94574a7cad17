// Package search provides the user and group search handler.
package search

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	searchctl "github.com/peerhive/peerhive/internal/db/controller/search"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the base path for search routes.
	Path = handler.RootPath + "search"

	// TemplateName is the search results template.
	TemplateName = "search"

	// MaxResults caps results per entity kind.
	MaxResults = 25
)

// Service provides the search handler.
type Service struct {
	handler.Service
	cfg *config.Config
	db  *gorm.DB
}

// Handler is the search handler.
var Handler = Service{}

// Init initializes the search handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db

	app.Get(Path, s.Get)
	app.Get(Path+"/:query", s.Get)

	return nil
}

// Get renders users and groups matching the query. An empty query renders
// the empty search page.
func (s *Service) Get(c *fiber.Ctx) error {
	if _, ok := handler.CurrentUser(c); !ok {
		return handler.PermissionDenied(c)
	}

	nav := navigation.NewContext("Search", navigation.SectionSearch, "search").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb("Search", Path, true)

	data := fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
	}

	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		query = c.Params("query")
	}

	data["Query"] = query

	if query != "" {
		users, err := searchctl.Users(s.db, query, MaxResults)
		if err != nil {
			return err
		}

		groups, err := searchctl.Groups(s.db, query, MaxResults)
		if err != nil {
			return err
		}

		data["Users"] = users
		data["Groups"] = groups
	}

	return c.Render(TemplateName, data, handler.BaseLayout)
}
