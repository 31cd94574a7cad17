// Package models contains database model definitions.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a piece of user content, optionally posted into a group.
type Post struct {
	ID        uint64 `gorm:"primaryKey"`
	UserID    uint64 `gorm:"column:user_id;not null;index"`
	User      User   `gorm:"foreignKey:UserID"`
	GroupID   *uint  `gorm:"column:group_id;index"`
	Group     *Group `gorm:"foreignKey:GroupID"`
	Body      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the database table name for the Post model.
func (Post) TableName() string {
	return "posts"
}

// IsOwner reports whether the given user authored the post.
func (p *Post) IsOwner(userID uint64) bool {
	return p.UserID == userID
}
