// Package settings provides the account settings handlers.
package settings

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/auth"
	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the base path for settings routes.
	Path = handler.RootPath + "settings"

	// TemplateName is the settings template.
	TemplateName = "settings"
)

// passwordInput is the password change form.
type passwordInput struct {
	Old string `form:"old_password" validate:"required"`
	New string `form:"new_password" validate:"required,min=8"`
}

// Service provides the account settings handlers.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	localAuth *auth.LocalProvider
	validator *validator.Validate
}

// Handler is the settings handler.
var Handler = Service{}

// Init initializes the settings handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.localAuth = auth.NewLocalProvider(db)
	s.validator = validator.New()

	app.Get(Path, s.Get)
	app.Post(Path+"/password", s.ChangePassword)

	return nil
}

// Get renders the account settings page with the stored account record, not
// the session copy, so a change on another device is visible here.
func (s *Service) Get(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	account, err := s.localAuth.GetUserByID(user.ID)
	if err != nil {
		return err
	}

	return s.render(c, fiber.StatusOK, account, "")
}

func (s *Service) render(c *fiber.Ctx, status int, account *models.User, message string) error {
	nav := navigation.NewContext("Settings", navigation.SectionSettings, "settings").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb("Settings", Path, true)

	data := fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
		"Account":    account,
		"IsLocal":    account.AuthSource == models.AuthSourceLocal,
		"Flash":      handler.PopFlash(c),
	}

	if message != "" {
		data["error"] = message
	}

	return c.Status(status).Render(TemplateName, data, handler.BaseLayout)
}

// ChangePassword changes the local account password after verifying the
// current one. Accounts from an external auth source have no local password.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	account, err := s.localAuth.GetUserByID(user.ID)
	if err != nil {
		return err
	}

	if account.AuthSource != models.AuthSourceLocal {
		return handler.PermissionDenied(c)
	}

	var in passwordInput
	if err := c.BodyParser(&in); err != nil {
		return s.render(c, fiber.StatusBadRequest, account, "Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return s.render(c, fiber.StatusUnprocessableEntity, account, "Please correct the highlighted errors")
	}

	if err := s.localAuth.ChangePassword(user.ID, in.Old, in.New); err != nil {
		if errors.Is(err, auth.ErrInvalidOldPassword) {
			return s.render(c, fiber.StatusUnprocessableEntity, account, "Current password is incorrect")
		}

		log.Error().Err(err).Uint64("user_id", user.ID).Msg("password change failed")

		return s.render(c, fiber.StatusInternalServerError, account, "Internal server error")
	}

	return handler.FlashRedirect(c, "Password changed", Path)
}
