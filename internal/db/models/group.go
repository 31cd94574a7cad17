package models

import (
	"time"

	"gorm.io/gorm"
)

// Group represents a user group. Members post to the group's timeline and the
// membership workflow (invitations, join requests, approvals, roles) governs
// who belongs to it.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the display name of the group.
	Name string `gorm:"size:100;not null"`
	// Slug is the unique URL identifier derived from the name.
	Slug string `gorm:"unique;size:120;not null"`
	// UserID is the ID of the group owner (its creator). The owner is
	// implicitly an admin and exempt from removal and role changes.
	UserID uint64 `gorm:"column:user_id;not null;index"`
	// User is the owning user (loaded via foreign key).
	User User `gorm:"foreignKey:UserID"`
	// AutoApproval bypasses admin review: join requests are approved
	// immediately when set.
	AutoApproval bool `gorm:"not null;default:false"`
	// About is the free-text group description.
	About string `gorm:"type:text"`
	// CoverPath is the stored path of the group's cover image, if any.
	CoverPath string `gorm:"size:255"`
	// ThumbnailPath is the stored path of the group's thumbnail image, if any.
	ThumbnailPath string `gorm:"size:255"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
	// DeletedAt is the soft delete timestamp (managed by GORM).
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Group model.
func (Group) TableName() string {
	return "groups"
}

// IsOwner reports whether the given user is the group's owner.
func (g *Group) IsOwner(userID uint64) bool {
	return g.UserID == userID
}
