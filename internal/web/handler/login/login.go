package login

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/auth"
	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/session"
)

const (
	// Path is the path to the login page.
	Path = "/login"

	// TemplateName is the name of the login template.
	TemplateName = "auth/login"
)

// Service is the login handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	localAuth *auth.LocalProvider
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.localAuth = auth.NewLocalProvider(db)

	// register routes
	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.Get)
		router.Post(handler.RootPath, s.Post)
	})

	return nil
}

// Get handles the login page rendering.
func (s *Service) Get(c *fiber.Ctx) error {
	return c.Render(TemplateName, fiber.Map{
		"Title":       s.cfg.Title,
		"OIDCEnabled": s.cfg.Auth.OIDC.Enabled,
	})
}

// renderError re-renders the login page with an error message.
func (s *Service) renderError(c *fiber.Ctx, message string) error {
	return c.Render(TemplateName, fiber.Map{
		"Title":       s.cfg.Title,
		"OIDCEnabled": s.cfg.Auth.OIDC.Enabled,
		"error":       message,
	})
}

// Post handles the login form submission.
func (s *Service) Post(c *fiber.Ctx) error {
	form := new(models.User)
	if err := c.BodyParser(form); err != nil {
		return s.renderError(c, ErrInvalidFormData.Error())
	}

	user, err := s.localAuth.Authenticate(form.Username, form.Password)
	if err != nil {
		// collapse credential errors so usernames cannot be enumerated
		if errors.Is(err, auth.ErrUserNotFound) ||
			errors.Is(err, auth.ErrInvalidPassword) ||
			errors.Is(err, auth.ErrUserAccountDisabled) {
			return s.renderError(c, ErrInvalidCredentials.Error())
		}

		log.Error().Err(err).Str("username", form.Username).Msg("login failed")

		return s.renderError(c, ErrInternalServerError.Error())
	}

	if err := EstablishSession(c, s.cfg, user); err != nil {
		log.Error().Err(err).Msg("failed to establish session")

		return s.renderError(c, ErrInternalServerError.Error())
	}

	return c.Redirect(handler.RootPath)
}

// EstablishSession creates a server-side session for the user and sets the
// session cookie. Shared with the register and OIDC handlers.
func EstablishSession(c *fiber.Ctx, cfg *config.Config, user *models.User) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	userSession := &session.Data{
		User: *user,
	}

	if err = userSession.Write(sessionID, cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	cookieSettings := &fiber.Cookie{
		Name:     "session",
		Value:    sessionID,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return nil
}
