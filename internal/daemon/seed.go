package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
)

// seed creates the initial admin account on an empty user table.
func seed(_ *config.Config, db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Count(&count)

	if count > 0 {
		return
	}

	err := db.Create(
		&models.User{
			Username:   "admin",
			Name:       "Administrator",
			Email:      "admin@localhost",
			Password:   models.HashPassword("changeme"),
			Active:     true,
			AuthSource: models.AuthSourceLocal,
		},
	).Error
	if err != nil {
		log.Error().Err(err).Msg("failed to seed admin user")
		return
	}

	log.Warn().Msg("seeded initial admin user with default password, change it after first login")
}
