// Package group provides the group profile and membership workflow handlers.
package group

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/config"
	membershipstore "github.com/peerhive/peerhive/internal/db/controller/membership"
	postctl "github.com/peerhive/peerhive/internal/db/controller/post"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/membership"
	"github.com/peerhive/peerhive/internal/storage"
	"github.com/peerhive/peerhive/internal/web/handler"
	"github.com/peerhive/peerhive/internal/web/navigation"
)

const (
	// Path is the base path for group routes.
	Path = handler.RootPath + "group"

	// TemplateView is the group profile template.
	TemplateView = "group/view"
	// TemplateNew is the group creation form template.
	TemplateNew = "group/new"
	// TemplateInvitationError is rendered when redemption fails.
	TemplateInvitationError = "group/invitation_error"

	// DefaultPageSize is the group timeline page size.
	DefaultPageSize = 20
)

// Service provides the group handlers.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	members   *membership.Service
	uploads   *storage.Store
	validator *validator.Validate
}

// Handler is the group handler.
var Handler = Service{}

// Init initializes the group handler and registers its routes.
func (s *Service) Init(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	members *membership.Service,
	uploads *storage.Store,
) error {
	if app == nil || cfg == nil || db == nil || members == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.members = members
	s.uploads = uploads
	s.validator = validator.New()

	// invitation redemption is registered before the :slug routes so the
	// literal segment wins the match
	app.Get(Path+"/invitation/:token", s.Redeem)

	app.Get(Path+"/new", s.New)
	app.Post(Path, s.Create)
	app.Get(Path+"/:slug", s.View)
	app.Put(Path+"/:slug", s.Update)
	// plain HTML forms cannot send PUT or DELETE
	app.Post(Path+"/:slug", s.Update)
	app.Post(Path+"/:slug/update-image", s.UpdateImage)

	app.Post(Path+"/:slug/invite", s.Invite)
	app.Post(Path+"/:slug/join", s.Join)
	app.Post(Path+"/:slug/approve-request", s.ApproveRequest)
	app.Delete(Path+"/:slug/remove-user", s.RemoveUser)
	app.Post(Path+"/:slug/remove-user", s.RemoveUser)
	app.Post(Path+"/:slug/change-role", s.ChangeRole)

	return nil
}

// findGroup loads the group addressed by the :slug parameter.
func (s *Service) findGroup(c *fiber.Ctx) (*models.Group, error) {
	var g models.Group

	err := s.db.Preload("User").Where("slug = ?", c.Params("slug")).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).SendString("Group not found")
		}

		return nil, err
	}

	return &g, nil
}

// New renders the group creation form.
func (s *Service) New(c *fiber.Ctx) error {
	nav := navigation.NewContext("New group", navigation.SectionGroups, "group-new").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb("New group", Path+"/new", true)

	return c.Render(TemplateNew, fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
	}, handler.BaseLayout)
}

// Create creates a group owned by the current user.
func (s *Service) Create(c *fiber.Ctx) error {
	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in groupInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).Render(TemplateNew, fiber.Map{
			"Title": s.cfg.Title,
			"error": "Please correct the highlighted errors",
			"Form":  in,
		}, handler.BaseLayout)
	}

	g := &models.Group{
		Name:         in.Name,
		About:        in.About,
		AutoApproval: in.AutoApproval,
	}

	if err := s.members.CreateGroup(&user, g); err != nil {
		log.Error().Err(err).Str("name", in.Name).Msg("failed to create group")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to create group")
	}

	return handler.FlashRedirect(c, "Group created", Path+"/"+g.Slug)
}

// View renders the group profile. Approved members see the group timeline,
// member list and photo wall; admins additionally see pending join requests;
// everyone else gets the restricted view.
func (s *Service) View(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, _ := handler.CurrentUser(c)

	nav := navigation.NewContext(g.Name, navigation.SectionGroups, "group-view").
		AddBreadcrumb("Home", handler.RootPath, false).
		AddBreadcrumb(g.Name, Path+"/"+g.Slug, true)

	data := fiber.Map{
		"Navigation": nav,
		"Title":      s.cfg.Title,
		"Group":      g,
		"IsOwner":    g.IsOwner(user.ID),
		"Flash":      handler.PopFlash(c),
	}

	approved, err := membershipstore.HasApprovedUser(s.db, user.ID, g.ID)
	if err != nil {
		return err
	}

	data["IsMember"] = approved

	if !approved {
		// membership state drives the join/pending button
		if m, err := membershipstore.Find(s.db, user.ID, g.ID); err == nil {
			data["MembershipStatus"] = string(m.Status)
		}

		return c.Render(TemplateView, data, handler.BaseLayout)
	}

	page := c.QueryInt("page", 1)

	entries, total, err := postctl.Timeline(s.db, user.ID, &g.ID, page, DefaultPageSize)
	if err != nil {
		return err
	}

	members, err := membershipstore.Members(s.db, g.ID)
	if err != nil {
		return err
	}

	photos, err := postctl.GroupPhotos(s.db, g.ID)
	if err != nil {
		return err
	}

	data["Posts"] = entries
	data["TotalPosts"] = total
	data["Page"] = page
	data["Members"] = members
	data["Photos"] = photos

	isAdmin, err := s.members.IsAdmin(user.ID, g)
	if err != nil {
		return err
	}

	data["IsAdmin"] = isAdmin

	if isAdmin {
		requests, err := membershipstore.PendingRequests(s.db, g.ID)
		if err != nil {
			return err
		}

		data["Requests"] = requests
	}

	return c.Render(TemplateView, data, handler.BaseLayout)
}

// Update lets a group admin change name, about text and auto-approval. The
// slug stays stable so existing links keep working.
func (s *Service) Update(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	isAdmin, err := s.members.IsAdmin(user.ID, g)
	if err != nil {
		return err
	}

	if !isAdmin {
		return handler.PermissionDenied(c)
	}

	var in groupInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	g.Name = in.Name
	g.About = in.About
	g.AutoApproval = in.AutoApproval

	if err := s.db.Save(g).Error; err != nil {
		log.Error().Err(err).Str("slug", g.Slug).Msg("failed to update group")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to update group")
	}

	return handler.FlashRedirect(c, "Group updated", Path+"/"+g.Slug)
}

// UpdateImage lets a group admin upload a cover or thumbnail image.
func (s *Service) UpdateImage(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	isAdmin, err := s.members.IsAdmin(user.ID, g)
	if err != nil {
		return err
	}

	if !isAdmin {
		return handler.PermissionDenied(c)
	}

	var in imageInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Missing image file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	relPath, _, err := s.uploads.Save(fileHeader.Filename, file)
	if err != nil {
		log.Error().Err(err).Str("slug", g.Slug).Msg("failed to store group image")

		return c.Status(fiber.StatusInternalServerError).SendString("Failed to store image")
	}

	switch in.Kind {
	case "cover":
		if g.CoverPath != "" {
			_ = s.uploads.Remove(g.CoverPath)
		}

		g.CoverPath = relPath
	case "thumbnail":
		if g.ThumbnailPath != "" {
			_ = s.uploads.Remove(g.ThumbnailPath)
		}

		g.ThumbnailPath = relPath
	}

	if err := s.db.Save(g).Error; err != nil {
		return err
	}

	return handler.FlashRedirect(c, "Image updated", Path+"/"+g.Slug)
}
