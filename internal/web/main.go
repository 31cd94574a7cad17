// Package web assembles the fiber application: template engine, middleware
// and handler registration.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/template/html/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	adapter "github.com/peerhive/peerhive/internal/logger/adapter/fiber"
	"github.com/peerhive/peerhive/internal/membership"
	"github.com/peerhive/peerhive/internal/storage"
	oidchandler "github.com/peerhive/peerhive/internal/web/handler/auth/oidc"
	"github.com/peerhive/peerhive/internal/web/handler/group"
	"github.com/peerhive/peerhive/internal/web/handler/home"
	"github.com/peerhive/peerhive/internal/web/handler/login"
	"github.com/peerhive/peerhive/internal/web/handler/logout"
	posthandler "github.com/peerhive/peerhive/internal/web/handler/post"
	"github.com/peerhive/peerhive/internal/web/handler/profile"
	"github.com/peerhive/peerhive/internal/web/handler/register"
	"github.com/peerhive/peerhive/internal/web/handler/search"
	"github.com/peerhive/peerhive/internal/web/handler/settings"
	authmw "github.com/peerhive/peerhive/internal/web/middleware/auth"
)

// CheckAlivePath answers load-balancer health checks.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, members *membership.Service, uploads *storage.Store) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	httpFS := http.FS(templateEmbedFS{embeddedTemplates})
	templateEngine := html.NewFileSystem(httpFS, ".gohtml")

	// in dev mode, use local filesystem for templates
	if cfg.DevMode {
		templateEngine = html.New("./internal/web/templates", ".gohtml")
		templateEngine.ShouldReload = true

		log.Warn().Msg("dev mode enabled: using local filesystem for templates")
	}

	// Add template helper functions
	templateEngine.AddFunc("iterate", func(count int) []int {
		result := make([]int, count)
		for i := range result {
			result[i] = i
		}

		return result
	})
	templateEngine.AddFunc("add", func(a, b int) int {
		return a + b
	})
	templateEngine.AddFunc("sub", func(a, b int) int {
		return a - b
	})

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "PeerHive",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			Views:          templateEngine,
		},
	)

	// access log through zerolog
	app.Use(adapter.New(adapter.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	// serve embedded static files
	app.Use("/static",
		filesystem.New(
			filesystem.Config{
				Root:       http.FS(embeddedStaticFiles),
				PathPrefix: "static",
				Browse:     cfg.Webserver.BrowseStatic,
			},
		),
	)

	// session auth middleware
	app.Use(authmw.Middleware)

	service := &Service{
		cfg: cfg,
		App: app,
		db:  db,
	}

	service.alive.Store(true)

	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	// init handlers (they register their own routes)
	if err := login.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	logout.Handler.Init(app, cfg)

	if err := register.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init register handler")
	}

	oidchandler.Handler.Init(app, cfg, db)

	if err := home.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init home handler")
	}

	if err := group.Handler.Init(app, cfg, db, members, uploads); err != nil {
		log.Fatal().Err(err).Msg("failed to init group handler")
	}

	if err := posthandler.Handler.Init(app, cfg, db, uploads); err != nil {
		log.Fatal().Err(err).Msg("failed to init post handler")
	}

	if err := profile.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init profile handler")
	}

	if err := search.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init search handler")
	}

	if err := settings.Handler.Init(app, cfg, db); err != nil {
		log.Fatal().Err(err).Msg("failed to init settings handler")
	}

	return service
}
