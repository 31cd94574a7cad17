package models

import "time"

// ReactionType is the kind of reaction left on a post.
type ReactionType string

// ReactionLike is currently the only deployed reaction type.
const ReactionLike ReactionType = "like"

// PostReaction records a single user's reaction to a post. The composite
// unique index keeps reactions to one per (post, user).
type PostReaction struct {
	ID        uint64       `gorm:"primaryKey"`
	PostID    uint64       `gorm:"column:post_id;not null;uniqueIndex:idx_post_user"`
	Post      Post         `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	UserID    uint64       `gorm:"column:user_id;not null;uniqueIndex:idx_post_user"`
	User      User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Type      ReactionType `gorm:"type:varchar(20);not null;default:'like'"`
	CreatedAt time.Time
}

// TableName specifies the database table name for the PostReaction model.
func (PostReaction) TableName() string {
	return "post_reactions"
}
