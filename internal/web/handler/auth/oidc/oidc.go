package oidc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/auth"
	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/handler/login"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	// LogoutPath is the path for OIDC logout.
	LogoutPath = handler.RootPath + "auth/oidc/logout"

	stateTTL = 5 * time.Minute
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg          *config.Config
	db           *gorm.DB
	oidcProvider *auth.OIDCProvider

	mu         sync.Mutex
	stateStore map[string]time.Time
}

// Handler is the OIDC handler.
var Handler = Service{
	stateStore: make(map[string]time.Time),
}

// Init initializes the OIDC handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.db = db
	s.cfg = cfg

	if !cfg.Auth.OIDC.Enabled {
		return
	}

	oidcProvider, err := auth.NewOIDCProvider(context.Background(), &cfg.Auth.OIDC, db)
	if err != nil {
		if errors.Is(err, auth.ErrOIDCDisabled) {
			log.Info().Msg("OIDC authentication is disabled by configuration")
		} else {
			log.Warn().Err(err).Msg("Failed to initialize OIDC provider - OIDC authentication will be disabled")
		}

		return // Don't fail, just disable OIDC
	}

	s.oidcProvider = oidcProvider

	log.Info().Msg("OIDC authentication provider initialized")

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
	app.Get(LogoutPath, s.Logout)

	go s.cleanupStates()
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	state, err := auth.GenerateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate state token")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.mu.Lock()
	s.stateStore[state] = time.Now().Add(stateTTL)
	s.mu.Unlock()

	return c.Redirect(s.oidcProvider.GetAuthURL(state))
}

// Callback handles the OIDC callback.
func (s *Service) Callback(c *fiber.Ctx) error {
	if s.oidcProvider == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("OIDC authentication is not available")
	}

	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("Missing code or state in OIDC callback")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid callback parameters")
	}

	if !s.takeState(state) {
		log.Error().Msg("Invalid or expired state token in OIDC callback")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state token")
	}

	authenticatedUser, err := s.oidcProvider.HandleCallback(context.Background(), code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC authentication failed")
		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	if err := login.EstablishSession(c, s.cfg, authenticatedUser); err != nil {
		log.Error().Err(err).Msg("Failed to establish session")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	log.Info().Str("username", authenticatedUser.Username).Msg("User logged in successfully via OIDC")

	return c.Redirect(handler.RootPath)
}

// Logout handles OIDC logout.
func (s *Service) Logout(c *fiber.Ctx) error {
	c.ClearCookie("session")

	if s.oidcProvider != nil {
		logoutURL := s.oidcProvider.GetLogoutURL("", s.cfg.Webserver.URL)
		if logoutURL != "" {
			return c.Redirect(logoutURL)
		}
	}

	return c.Redirect(login.Path)
}

// takeState consumes a state token, reporting whether it was valid and fresh.
func (s *Service) takeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiration, exists := s.stateStore[state]
	if !exists {
		return false
	}

	delete(s.stateStore, state)

	return time.Now().Before(expiration)
}

// cleanupStates periodically removes expired state tokens.
func (s *Service) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		s.mu.Lock()
		for state, expiration := range s.stateStore {
			if now.After(expiration) {
				delete(s.stateStore, state)
			}
		}
		s.mu.Unlock()
	}
}
