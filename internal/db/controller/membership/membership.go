// Package membership provides query operations for group membership rows.
// All status and role mutations go through the state machine in
// internal/membership; this package only reads and persists rows.
package membership

import (
	"errors"

	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/db/models"
)

const (
	userGroupQueryPattern = "user_id = ? AND group_id = ?"
	groupStatusPattern    = "group_id = ? AND status = ?"
)

var (
	// ErrMembershipNotFound is returned when no membership row matches.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrTokenEmpty is returned when looking up an empty token.
	ErrTokenEmpty = errors.New("token cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Find retrieves the membership row for a (user, group) pair.
// There is at most one such row; the schema enforces it.
func Find(db *gorm.DB, userID uint64, groupID uint) (*models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var m models.Membership
	result := db.Where(userGroupQueryPattern, userID, groupID).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, result.Error
	}

	return &m, nil
}

// FindByToken retrieves the membership row carrying the given invitation
// token, with its user and group preloaded for notification payloads.
func FindByToken(db *gorm.DB, token string) (*models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}
	if token == "" {
		return nil, ErrTokenEmpty
	}

	var m models.Membership
	result := db.Preload("User").Preload("Group").Where("token = ?", token).First(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, result.Error
	}

	return &m, nil
}

// Create inserts a new membership row. The composite unique index on
// (user_id, group_id) rejects a second row for the same pair.
func Create(db *gorm.DB, m *models.Membership) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Create(m).Error
}

// Replace atomically swaps any existing membership row for the pair with the
// given one. Used by re-invitation: the prior row (and its token) is
// discarded in the same transaction that creates the replacement, so there is
// no window where the pair has no row and no point where it has two.
func Replace(db *gorm.DB, m *models.Membership) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(userGroupQueryPattern, m.UserID, m.GroupID).
			Delete(&models.Membership{}).Error; err != nil {
			return err
		}

		return tx.Create(m).Error
	})
}

// Save persists changes to an existing membership row.
func Save(db *gorm.DB, m *models.Membership) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(m).Error
}

// Delete removes the membership row for a (user, group) pair.
func Delete(db *gorm.DB, userID uint64, groupID uint) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where(userGroupQueryPattern, userID, groupID).Delete(&models.Membership{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

// IsAdmin reports whether the user may administer the group: the owner is
// implicitly an admin, otherwise an approved membership with the admin role
// is required.
func IsAdmin(db *gorm.DB, userID uint64, group *models.Group) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	if group.IsOwner(userID) {
		return true, nil
	}

	var count int64
	err := db.Model(&models.Membership{}).
		Where(userGroupQueryPattern, userID, group.ID).
		Where("status = ? AND role = ?", models.StatusApproved, models.RoleAdmin).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// HasApprovedUser reports whether the user is an approved member of the group.
func HasApprovedUser(db *gorm.DB, userID uint64, groupID uint) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	var count int64
	err := db.Model(&models.Membership{}).
		Where(userGroupQueryPattern, userID, groupID).
		Where("status = ?", models.StatusApproved).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// Admins retrieves the users holding an approved admin membership in the
// group, ordered by name. The owner always holds such a row (created with
// the group), so the result includes the owner.
func Admins(db *gorm.DB, groupID uint) ([]models.User, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var users []models.User
	err := db.Table("users").
		Joins("JOIN group_users ON group_users.user_id = users.id").
		Where("group_users.group_id = ? AND group_users.status = ? AND group_users.role = ?",
			groupID, models.StatusApproved, models.RoleAdmin).
		Order("users.name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Members retrieves approved memberships with their users, ordered by user
// name, for the group member list.
func Members(db *gorm.DB, groupID uint) ([]models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var memberships []models.Membership
	err := db.Preload("User").
		Joins("JOIN users ON users.id = group_users.user_id").
		Where("group_users.group_id = ? AND group_users.status = ?", groupID, models.StatusApproved).
		Order("users.name ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}

// PendingRequests retrieves pending memberships with their users, ordered by
// user name, for the admin approval queue.
func PendingRequests(db *gorm.DB, groupID uint) ([]models.Membership, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var memberships []models.Membership
	err := db.Preload("User").
		Joins("JOIN users ON users.id = group_users.user_id").
		Where(groupStatusPattern, groupID, models.StatusPending).
		Order("users.name ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}

	return memberships, nil
}
