// Package daemon boots the application: database, session store, uploads,
// membership service and the web frontend.
package daemon

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	fiberstorage "github.com/gofiber/storage"
	"github.com/gofiber/storage/mysql"
	"github.com/gofiber/storage/postgres"
	"github.com/gofiber/storage/sqlite3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/dsn"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/logger"
	"github.com/peerhive/peerhive/internal/membership"
	"github.com/peerhive/peerhive/internal/notify"
	"github.com/peerhive/peerhive/internal/storage"
	"github.com/peerhive/peerhive/internal/token"
	"github.com/peerhive/peerhive/internal/web"
	"github.com/peerhive/peerhive/internal/web/session"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until shutdown.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logging")
	}

	db := openDatabase(cfg)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Membership{},
		&models.Post{},
		&models.PostAttachment{},
		&models.PostReaction{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)

	session.Init(sessionStorage(cfg))

	uploads, err := storage.New(cfg.Uploads.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Uploads.Path).Msg("failed to open uploads store")
	}

	issuer := token.NewIssuer(
		cfg.Invite.TokenLength,
		time.Duration(cfg.Invite.ExpiryHours)*time.Hour,
	)

	members := membership.NewService(db, issuer, notify.New(cfg))

	return &Daemon{
		cfg:        cfg,
		webService: web.New(cfg, db, members, uploads),
	}
}

// openDatabase opens the gorm connection for the configured engine.
// TranslateError maps driver duplicate-key errors onto gorm.ErrDuplicatedKey,
// which the membership state machine relies on.
func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.Engine {
	case config.EnginePostgres:
		dialector = gormpostgres.Open(dsn.Create(cfg))
	case config.EngineSQLite:
		dialector = sqlite.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Str("engine", cfg.DB.Engine).Msg("failed to connect database")
	}

	return db
}

// sessionStorage creates the fiber session storage for the configured engine.
func sessionStorage(cfg *config.Config) fiberstorage.Storage {
	switch cfg.DB.Engine {
	case config.EnginePostgres:
		return postgres.New(postgres.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	case config.EngineSQLite:
		return sqlite3.New(sqlite3.Config{
			Database: dsn.Create(cfg),
			Table:    "sessions",
		})
	default:
		return mysql.New(mysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "sessions",
		})
	}
}
