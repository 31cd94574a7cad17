package group

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/membership"
	"github.com/peerhive/peerhive/internal/web/handler"
)

// mapMembershipError renders a state-machine error; unknown errors are
// passed through to the fiber error handler.
func mapMembershipError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, membership.ErrPermissionDenied),
		errors.Is(err, membership.ErrOwnerImmutable):
		return handler.PermissionDenied(c)
	case errors.Is(err, membership.ErrNotFound):
		return c.Status(fiber.StatusNotFound).SendString("Not found")
	case errors.Is(err, membership.ErrUnknownRole):
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Unknown role")
	case errors.Is(err, membership.ErrAlreadyMember):
		return handler.FlashBack(c, "You are already a member of this group")
	default:
		return err
	}
}

// Invite lets a group admin invite a user by username.
func (s *Service) Invite(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in inviteInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	var target models.User
	if err := s.db.Where("username = ?", in.Username).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return handler.FlashBack(c, "No such user: "+in.Username)
		}

		return err
	}

	if _, err := s.members.Invite(user.ID, g, &target); err != nil {
		return mapMembershipError(c, err)
	}

	log.Info().
		Str("group", g.Slug).
		Str("invitee", target.Username).
		Uint64("inviter", user.ID).
		Msg("invitation sent")

	return handler.FlashRedirect(c, "Invitation sent to "+target.Username, Path+"/"+g.Slug)
}

// Redeem accepts an invitation token. No session is required: the token is
// the credential. Failures render a dedicated error view.
func (s *Service) Redeem(c *fiber.Ctx) error {
	m, err := s.members.Redeem(c.Params("token"))
	if err != nil {
		switch {
		case errors.Is(err, membership.ErrTokenInvalid),
			errors.Is(err, membership.ErrTokenUsed),
			errors.Is(err, membership.ErrTokenExpired):
			return c.Render(TemplateInvitationError, fiber.Map{
				"Title":   s.cfg.Title,
				"Message": err.Error(),
			}, handler.BaseLayout)
		default:
			return err
		}
	}

	log.Info().
		Str("group", m.Group.Slug).
		Str("user", m.User.Username).
		Msg("invitation redeemed")

	return handler.FlashRedirect(c, "Welcome to "+m.Group.Name, Path+"/"+m.Group.Slug)
}

// Join joins the group, or requests to join when admin approval is required.
func (s *Service) Join(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	m, err := s.members.Join(user.ID, g)
	if err != nil {
		return mapMembershipError(c, err)
	}

	message := "You joined " + g.Name
	if m.Status == models.StatusPending {
		message = "Your request to join " + g.Name + " is waiting for approval"
	}

	return handler.FlashRedirect(c, message, Path+"/"+g.Slug)
}

// ApproveRequest resolves a pending join request (approve or reject).
func (s *Service) ApproveRequest(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in decideInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	approve := in.Action == "approve"

	if _, err := s.members.Decide(user.ID, g, in.UserID, approve); err != nil {
		return mapMembershipError(c, err)
	}

	message := "Request approved"
	if !approve {
		message = "Request rejected"
	}

	return handler.FlashRedirect(c, message, Path+"/"+g.Slug)
}

// RemoveUser removes a member from the group.
func (s *Service) RemoveUser(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in removeInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	if err := s.members.Remove(user.ID, g, in.UserID); err != nil {
		return mapMembershipError(c, err)
	}

	return handler.FlashRedirect(c, "Member removed", Path+"/"+g.Slug)
}

// ChangeRole updates a member's role.
func (s *Service) ChangeRole(c *fiber.Ctx) error {
	g, err := s.findGroup(c)
	if g == nil {
		return err
	}

	user, ok := handler.CurrentUser(c)
	if !ok {
		return handler.PermissionDenied(c)
	}

	var in roleInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid form data")
	}

	if err := s.validator.Struct(in); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("Please correct the highlighted errors")
	}

	if _, err := s.members.ChangeRole(user.ID, g, in.UserID, models.MembershipRole(in.Role)); err != nil {
		return mapMembershipError(c, err)
	}

	return handler.FlashRedirect(c, "Role updated", Path+"/"+g.Slug)
}
