package models

import "time"

// PostAttachment is a file attached to a post, stored on disk and served by
// the download endpoint.
type PostAttachment struct {
	ID        uint64 `gorm:"primaryKey"`
	PostID    uint64 `gorm:"column:post_id;not null;index"`
	Post      Post   `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	Name      string `gorm:"size:255;not null"` // original file name
	Path      string `gorm:"size:255;not null"` // stored path relative to the uploads root
	Mime      string `gorm:"size:100;not null"`
	Size      int64  `gorm:"not null"`
	CreatedBy uint64 `gorm:"column:created_by;not null"`
	CreatedAt time.Time
}

// TableName specifies the database table name for the PostAttachment model.
func (PostAttachment) TableName() string {
	return "post_attachments"
}

// IsImage reports whether the attachment is an image, for the group photo wall.
func (a *PostAttachment) IsImage() bool {
	return len(a.Mime) >= 6 && a.Mime[:6] == "image/"
}
