// Package post provides the post CRUD, reaction and download handlers.
package post

import (
	"errors"
	"mime"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	membershipstore "github.com/peerhive/peerhive/internal/db/controller/membership"
	postctl "github.com/peerhive/peerhive/internal/db/controller/post"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/storage"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the base path for post routes.
	Path = handler.RootPath + "post"

	// TemplateView is the single-post template.
	TemplateView = "post/view"

	defaultMime = "application/octet-stream"
)

// postInput is the create/update post form.
type postInput struct {
	Body    string `form:"body"     validate:"required,max=10000"`
	GroupID *uint  `form:"group_id"`
}

// Service provides the post handlers.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	uploads   *storage.Store
	validator *validator.Validate
}

// Handler is the post handler.
var Handler = Service{}

// Init initializes the post handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, uploads *storage.Store) error {
	if app == nil || cfg == nil || db == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.db = db
	s.uploads = uploads
	s.validator = validator.New()

	app.Post(Path, s.Create)
	app.Get(Path+"/download/:attachment", s.Download)
	app.Get(Path+"/:id", s.View)
	app.Put(Path+"/:id", s.Update)
	app.Delete(Path+"/:id", s.Delete)
	// plain HTML forms cannot send PUT or DELETE
	app.Post(Path+"/:id", s.Update)
	app.Post(Path+"/:id/delete", s.Delete)
	app.Post(Path+"/:id/reaction", s.Reaction)

	return nil
}

// findPost loads the post addressed by the :id parameter and checks that the
// current user may see it: group posts are visible to approved members only.
func (s *Service) findPost(c *fiber.Ctx, userID uint64) (*models.Post, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, c.Status(fiber.StatusNotFound).SendString("Post not found")
	}

	p, err := postctl.Get(s.db, id)
	if err != nil {
		if errors.Is(err, postctl.ErrPostNotFound) {
			return nil, c.Status(fiber.StatusNotFound).SendString("Post not found")
		}

		return nil, err
	}

	if allowed, err := s.mayAccess(p, userID); err != nil {
		return nil, err
	} else if !allowed {
		return nil, handler.PermissionDenied(c)
	}

	return p, nil
}

// mayAccess reports whether the user may see the post.
func (s *Service) mayAccess(p *models.Post, userID uint64) (bool, error) {
	if p.GroupID == nil {
		return true, nil
	}

	return membershipstore.HasApprovedUser(s.db, userID, *p.GroupID)
}

// Create creates a post, optionally into a group, with optional file
// attachments from the multipart field "attachments".
func (s *Service) Create(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in postInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	if in.GroupID != nil {
		var g models.Group
		if err := s.db.First(&g, *in.GroupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).SendString("Group not found")
			}

			return err
		}

		approved, err := membershipstore.HasApprovedUser(s.db, user.ID, g.ID)
		if err != nil {
			return err
		}

		if !approved {
			return handler.PermissionDenied(c)
		}
	}

	p := &models.Post{
		UserID:  user.ID,
		GroupID: in.GroupID,
		Body:    in.Body,
	}

	if err := postctl.Create(s.db, p); err != nil {
		return err
	}

	if err := s.saveAttachments(c, p, user.ID); err != nil {
		return err
	}

	return handler.FlashRedirect(c, "Post created", Path+"/"+strconv.FormatUint(p.ID, 10))
}

// saveAttachments stores the request's uploaded files and records them
// against the post. Requests without a multipart body have none.
func (s *Service) saveAttachments(c *fiber.Ctx, p *models.Post, userID uint64) error {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}

	for _, fh := range form.File["attachments"] {
		file, err := fh.Open()
		if err != nil {
			return err
		}

		relPath, size, err := s.uploads.Save(fh.Filename, file)
		_ = file.Close()
		if err != nil {
			log.Error().Err(err).Str("name", fh.Filename).Msg("failed to store attachment")

			return err
		}

		mime := fh.Header.Get(fiber.HeaderContentType)
		if mime == "" {
			mime = defaultMime
		}

		attachment := &models.PostAttachment{
			PostID:    p.ID,
			Name:      fh.Filename,
			Path:      relPath,
			Mime:      mime,
			Size:      size,
			CreatedBy: userID,
		}

		if err := s.db.Create(attachment).Error; err != nil {
			return err
		}
	}

	return nil
}

// View renders a single post with its attachments and reaction data.
func (s *Service) View(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	p, err := s.findPost(c, user.ID)
	if p == nil {
		return err
	}

	attachments, err := postctl.Attachments(s.db, p.ID)
	if err != nil {
		return err
	}

	var reactionCount int64
	if err := s.db.Model(&models.PostReaction{}).
		Where("post_id = ?", p.ID).
		Count(&reactionCount).Error; err != nil {
		return err
	}

	var viewerReactions int64
	if err := s.db.Model(&models.PostReaction{}).
		Where("post_id = ? AND user_id = ?", p.ID, user.ID).
		Count(&viewerReactions).Error; err != nil {
		return err
	}

	nav := navigation.NewContext("Post", navigation.SectionHome, "post-view").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb("Post", Path+"/"+strconv.FormatUint(p.ID, 10), true)

	return c.Render(TemplateView, fiber.Map{
		"Navigation":    nav,
		"Title":         s.cfg.Title,
		"Post":          p,
		"Attachments":   attachments,
		"ReactionCount": reactionCount,
		"ViewerReacted": viewerReactions > 0,
		"IsAuthor":      p.IsOwner(user.ID),
		"Flash":         handler.PopFlash(c),
	}, handler.BaseLayout)
}

// Update edits a post's body. Only the author may edit.
func (s *Service) Update(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	p, err := s.findPost(c, user.ID)
	if p == nil {
		return err
	}

	if !p.IsOwner(user.ID) {
		return handler.PermissionDenied(c)
	}

	var in postInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	p.Body = in.Body

	if err := postctl.Save(s.db, p); err != nil {
		return err
	}

	return handler.FlashRedirect(c, "Post updated", Path+"/"+strconv.FormatUint(p.ID, 10))
}

// Delete soft-deletes a post. Only the author may delete.
func (s *Service) Delete(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	p, err := s.findPost(c, user.ID)
	if p == nil {
		return err
	}

	if !p.IsOwner(user.ID) {
		return handler.PermissionDenied(c)
	}

	if err := postctl.Delete(s.db, p.ID); err != nil {
		return err
	}

	return handler.FlashRedirect(c, "Post deleted", handler.RootPath)
}

// Reaction toggles the current user's reaction on a post.
func (s *Service) Reaction(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	p, err := s.findPost(c, user.ID)
	if p == nil {
		return err
	}

	if _, err := postctl.ToggleReaction(s.db, p.ID, user.ID, models.ReactionLike); err != nil {
		return err
	}

	return c.RedirectBack(Path + "/" + strconv.FormatUint(p.ID, 10))
}

// Download streams an attachment to the client with its original file name.
// Attachments of group posts are restricted to approved members.
func (s *Service) Download(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	id, err := strconv.ParseUint(c.Params("attachment"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString("Attachment not found")
	}

	a, err := postctl.GetAttachment(s.db, id)
	if err != nil {
		if errors.Is(err, postctl.ErrAttachmentNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Attachment not found")
		}

		return err
	}

	// a soft-deleted post takes its attachments out of reach
	p, err := postctl.Get(s.db, a.PostID)
	if err != nil {
		if errors.Is(err, postctl.ErrPostNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Attachment not found")
		}

		return err
	}

	if allowed, err := s.mayAccess(p, user.ID); err != nil {
		return err
	} else if !allowed {
		return handler.PermissionDenied(c)
	}

	f, err := s.uploads.Open(a.Path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return c.Status(fiber.StatusNotFound).SendString("Attachment not found")
		}

		return err
	}

	c.Set(fiber.HeaderContentType, a.Mime)
	// the stored original name is user input and may contain quotes
	c.Set(fiber.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))

	return c.SendStream(f, int(a.Size))
}
