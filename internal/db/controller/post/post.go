// Package post provides query operations for posts, attachments and reactions.
package post

import (
	"errors"

	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/db/models"
)

var (
	// ErrPostNotFound is returned when no post matches.
	ErrPostNotFound = errors.New("post not found")
	// ErrAttachmentNotFound is returned when no attachment matches.
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// TimelineEntry is a post decorated with reaction data for the viewer.
type TimelineEntry struct {
	Post          models.Post
	ReactionCount int64
	ViewerReacted bool
}

// Get retrieves a post by ID with its author, group and attachments.
func Get(db *gorm.DB, id uint64) (*models.Post, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var p models.Post
	result := db.Preload("User").Preload("Group").First(&p, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, result.Error
	}

	return &p, nil
}

// Create inserts a new post.
func Create(db *gorm.DB, p *models.Post) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Create(p).Error
}

// Save persists changes to an existing post.
func Save(db *gorm.DB, p *models.Post) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Save(p).Error
}

// Delete soft-deletes a post.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Post{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}

	return nil
}

// Timeline retrieves the latest posts, newest first, decorated with reaction
// counts and whether the viewer reacted. A nil groupID selects the home
// timeline across all posts; otherwise only the group's posts are returned.
func Timeline(db *gorm.DB, viewerID uint64, groupID *uint, page, pageSize int) ([]TimelineEntry, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	if page < 1 {
		page = 1
	}

	tx := db.Model(&models.Post{})
	if groupID != nil {
		tx = tx.Where("group_id = ?", *groupID)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := tx.Preload("User").Preload("Group").
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}

	entries, err := decorate(db, viewerID, posts)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// UserPosts retrieves one author's posts, newest first, decorated with
// reaction data for the viewer. Backs the profile page.
func UserPosts(db *gorm.DB, viewerID, authorID uint64, page, pageSize int) ([]TimelineEntry, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	if page < 1 {
		page = 1
	}

	tx := db.Model(&models.Post{}).Where("user_id = ?", authorID)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := tx.Preload("User").Preload("Group").
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}

	entries, err := decorate(db, viewerID, posts)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// decorate attaches reaction counts and the viewer's reaction flag to posts
// with two batched queries instead of one per post.
func decorate(db *gorm.DB, viewerID uint64, posts []models.Post) ([]TimelineEntry, error) {
	entries := make([]TimelineEntry, len(posts))

	if len(posts) == 0 {
		return entries, nil
	}

	ids := make([]uint64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
		entries[i] = TimelineEntry{Post: posts[i]}
	}

	type reactionCount struct {
		PostID uint64
		Count  int64
	}

	var counts []reactionCount
	err := db.Model(&models.PostReaction{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", ids).
		Group("post_id").
		Find(&counts).Error
	if err != nil {
		return nil, err
	}

	countByPost := make(map[uint64]int64, len(counts))
	for _, c := range counts {
		countByPost[c.PostID] = c.Count
	}

	var reactedIDs []uint64
	err = db.Model(&models.PostReaction{}).
		Where("user_id = ? AND post_id IN ?", viewerID, ids).
		Pluck("post_id", &reactedIDs).Error
	if err != nil {
		return nil, err
	}

	reacted := make(map[uint64]bool, len(reactedIDs))
	for _, id := range reactedIDs {
		reacted[id] = true
	}

	for i := range entries {
		entries[i].ReactionCount = countByPost[entries[i].Post.ID]
		entries[i].ViewerReacted = reacted[entries[i].Post.ID]
	}

	return entries, nil
}

// ToggleReaction adds the viewer's reaction to a post, or removes it when one
// already exists. Returns true when the post ends up reacted.
func ToggleReaction(db *gorm.DB, postID, userID uint64, kind models.ReactionType) (bool, error) {
	if db == nil {
		return false, ErrDBNil
	}

	var reacted bool

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.PostReaction

		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing)

		switch {
		case result.Error == nil:
			return tx.Delete(&existing).Error
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			reacted = true

			return tx.Create(&models.PostReaction{
				PostID: postID,
				UserID: userID,
				Type:   kind,
			}).Error
		default:
			return result.Error
		}
	})

	return reacted, err
}

// Attachments retrieves a post's attachments, newest first.
func Attachments(db *gorm.DB, postID uint64) ([]models.PostAttachment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var attachments []models.PostAttachment
	err := db.Where("post_id = ?", postID).Order("created_at DESC").Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	return attachments, nil
}

// GetAttachment retrieves a single attachment by ID.
func GetAttachment(db *gorm.DB, id uint64) (*models.PostAttachment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var a models.PostAttachment
	result := db.First(&a, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, result.Error
	}

	return &a, nil
}

// GroupPhotos retrieves the image attachments of a group's posts, newest
// first, for the group photo wall.
func GroupPhotos(db *gorm.DB, groupID uint) ([]models.PostAttachment, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var photos []models.PostAttachment
	err := db.Table("post_attachments").
		Select("post_attachments.*").
		Joins("JOIN posts ON posts.id = post_attachments.post_id").
		Where("posts.group_id = ? AND posts.deleted_at IS NULL", groupID).
		Where("post_attachments.mime LIKE ?", "image/%").
		Order("post_attachments.created_at DESC").
		Find(&photos).Error
	if err != nil {
		return nil, err
	}

	return photos, nil
}
