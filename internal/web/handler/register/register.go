// Package register provides the account registration handlers.
package register

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/auth"
	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/handler/login"
)

const (
	// Path is the path to the registration page.
	Path = "/register"

	// TemplateName is the name of the registration template.
	TemplateName = "auth/register"
)

// Service is the registration handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	localAuth *auth.LocalProvider
	validator *validator.Validate
}

// Handler is the registration handler.
var Handler = Service{}

// Init initializes the registration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.localAuth = auth.NewLocalProvider(db)
	s.validator = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.Get)
		router.Post(handler.RootPath, s.Post)
	})

	return nil
}

// Get handles the registration page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render(TemplateName, fiber.Map{
		"Title": s.cfg.Title,
	})
}

func (s *Service) renderError(c *fiber.Ctx, status int, message string, in any) error {
	return c.Status(status).Render(TemplateName, fiber.Map{
		"Title": s.cfg.Title,
		"error": message,
		"Form":  in,
	})
}

// Post handles the registration form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	var in struct {
		Username string `form:"username" validate:"required,min=3,max=100,alphanum"`
		Name     string `form:"name"     validate:"required,max=100"`
		Email    string `form:"email"    validate:"required,email,max=255"`
		Password string `form:"password" validate:"required,min=8"`
	}

	if err := c.BodyParser(&in); err != nil {
		return s.renderError(c, fiber.StatusBadRequest, "Invalid form data", in)
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderError(c, fiber.StatusUnprocessableEntity, "Please correct the highlighted errors", in)
	}

	user, err := s.localAuth.CreateUser(in.Username, in.Email, in.Password, in.Name)
	if err != nil {
		if errors.Is(err, auth.ErrUserNameOrEmailExists) {
			return s.renderError(c, fiber.StatusUnprocessableEntity, "Username or email is already taken", in)
		}

		log.Error().Err(err).Str("username", in.Username).Msg("registration failed")

		return s.renderError(c, fiber.StatusInternalServerError, "Internal server error", in)
	}

	if err := login.EstablishSession(c, s.cfg, user); err != nil {
		log.Error().Err(err).Msg("failed to establish session after registration")

		return c.Redirect(login.Path)
	}

	return c.Redirect(handler.RootPath)
}
