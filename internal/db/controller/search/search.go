// Package search provides name-based lookups across users and groups.
package search

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/db/models"
)

// ErrDBNil is returned when the database connection is nil.
var ErrDBNil = errors.New("database connection is nil")

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(q string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(q)
}

// Users finds users whose username or display name contains the query,
// case-insensitively, ordered by username.
func Users(db *gorm.DB, query string, limit int) ([]models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var users []models.User
	err := db.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Groups finds groups whose name contains the query, case-insensitively,
// ordered by name.
func Groups(db *gorm.DB, query string, limit int) ([]models.Group, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var groups []models.Group
	err := db.Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern).
		Order("name ASC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	return groups, nil
}
