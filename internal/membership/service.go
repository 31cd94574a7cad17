// Package membership implements the group-membership state machine.
//
// A membership moves between four states: no row at all, pending, approved
// and rejected. Every transition is guarded by an explicit permission check
// against the caller's identity, which is always passed in as a parameter -
// the state machine never consults ambient request state. Each operation is
// one request-scoped unit of work; mutations run inside a single database
// transaction and notifications are dispatched only after the transaction
// committed.
package membership

import (
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	store "github.com/peerhive/peerhive/internal/db/controller/membership"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/token"
)

// Service applies guarded membership transitions.
type Service struct {
	db       *gorm.DB
	tokens   *token.Issuer
	notifier Notifier
	now      func() time.Time
}

// NewService creates a membership service. A nil notifier disables dispatch.
func NewService(db *gorm.DB, tokens *token.Issuer, notifier Notifier) *Service {
	if tokens == nil {
		tokens = token.NewIssuer(0, 0)
	}

	return &Service{
		db:       db,
		tokens:   tokens,
		notifier: notifier,
		now:      time.Now,
	}
}

// IsAdmin reports whether the user may administer the group.
func (s *Service) IsAdmin(userID uint64, group *models.Group) (bool, error) {
	return store.IsAdmin(s.db, userID, group)
}

// CreateGroup creates a group owned by the given user and the owner's
// approved admin membership in one transaction. The group's slug is derived
// from its name and made unique with a numeric suffix when taken.
func (s *Service) CreateGroup(owner *models.User, group *models.Group) error {
	group.UserID = owner.ID

	return s.db.Transaction(func(tx *gorm.DB) error {
		uniqueSlug, err := s.uniqueSlug(tx, group.Name)
		if err != nil {
			return err
		}

		group.Slug = uniqueSlug

		if err := tx.Create(group).Error; err != nil {
			return err
		}

		return tx.Create(&models.Membership{
			UserID:    owner.ID,
			GroupID:   group.ID,
			Status:    models.StatusApproved,
			Role:      models.RoleAdmin,
			CreatedBy: owner.ID,
		}).Error
	})
}

// uniqueSlug derives a slug from name and appends -2, -3, ... until free.
func (s *Service) uniqueSlug(tx *gorm.DB, name string) (string, error) {
	base := slug.Make(name)
	candidate := base

	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&models.Group{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}

		if count == 0 {
			return candidate, nil
		}

		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Invite moves (target, group) from any prior state to pending with a fresh
// single-use token. The caller must be a group admin. A prior membership row
// for the pair - including an earlier invitation and its token - is discarded
// atomically with the creation of the new one, so an old token can never be
// redeemed after a re-invite.
func (s *Service) Invite(callerID uint64, group *models.Group, target *models.User) (*models.Membership, error) {
	isAdmin, err := store.IsAdmin(s.db, callerID, group)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		return nil, ErrPermissionDenied
	}

	grant := s.tokens.Issue()

	m := &models.Membership{
		UserID:         target.ID,
		GroupID:        group.ID,
		Status:         models.StatusPending,
		Role:           models.RoleUser,
		Token:          grant.Value,
		TokenExpiresAt: &grant.ExpiresAt,
		CreatedBy:      callerID,
	}

	if err := store.Replace(s.db, m); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.InvitationCreated(group, target, grant.Value, grant.ExpiresAt)
	}

	return m, nil
}

// Join creates the caller's membership in the group: approved immediately
// when the group auto-approves, pending admin review otherwise. Pending
// requests notify every current admin. Joining a group the caller already
// has a row in fails with ErrAlreadyMember.
func (s *Service) Join(callerID uint64, group *models.Group) (*models.Membership, error) {
	status := models.StatusApproved
	if !group.AutoApproval {
		status = models.StatusPending
	}

	m := &models.Membership{
		UserID:    callerID,
		GroupID:   group.ID,
		Status:    status,
		Role:      models.RoleUser,
		CreatedBy: callerID,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := store.Find(tx, callerID, group.ID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, store.ErrMembershipNotFound) {
			return err
		}

		return store.Create(tx, m)
	})
	if err != nil {
		// the unique index turns a concurrent double join into a duplicate key
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}

		return nil, err
	}

	if status == models.StatusPending && s.notifier != nil {
		// the membership is committed; notification assembly is best effort
		admins, err := store.Admins(s.db, group.ID)
		if err != nil {
			log.Error().Err(err).Uint("group_id", group.ID).Msg("failed to look up admins for join notification")
			return m, nil
		}

		var requester models.User
		if err := s.db.First(&requester, callerID).Error; err == nil {
			s.notifier.JoinRequested(group, &requester, admins)
		}
	}

	return m, nil
}

// Redeem approves the invitation carrying the presented token. The token is
// the sole credential; no caller identity is required. Failures are checked
// in fixed priority order: unknown token, already used (or membership already
// approved), expired. On success the inviter is notified.
func (s *Service) Redeem(tokenValue string) (*models.Membership, error) {
	var m *models.Membership

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error

		m, err = store.FindByToken(tx, tokenValue)
		if err != nil {
			if errors.Is(err, store.ErrMembershipNotFound) || errors.Is(err, store.ErrTokenEmpty) {
				return ErrTokenInvalid
			}

			return err
		}

		if m.TokenUsed() || m.Status == models.StatusApproved {
			return ErrTokenUsed
		}

		if m.TokenExpired(s.now()) {
			return ErrTokenExpired
		}

		usedAt := s.now()
		m.Status = models.StatusApproved
		m.TokenUsedAt = &usedAt

		return store.Save(tx, m)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		var inviter models.User
		if err := s.db.First(&inviter, m.CreatedBy).Error; err == nil {
			s.notifier.InvitationAccepted(&m.Group, &inviter, &m.User)
		}
	}

	return m, nil
}

// Decide resolves a pending join request. The caller must be a group admin
// and the target membership must exist with pending status; anything else is
// ErrNotFound. The target user is notified of the outcome.
func (s *Service) Decide(callerID uint64, group *models.Group, targetUserID uint64, approve bool) (*models.Membership, error) {
	isAdmin, err := store.IsAdmin(s.db, callerID, group)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		return nil, ErrPermissionDenied
	}

	var m *models.Membership

	err = s.db.Transaction(func(tx *gorm.DB) error {
		m, err = store.Find(tx, targetUserID, group.ID)
		if err != nil {
			if errors.Is(err, store.ErrMembershipNotFound) {
				return ErrNotFound
			}

			return err
		}

		if m.Status != models.StatusPending {
			return ErrNotFound
		}

		if approve {
			m.Status = models.StatusApproved
		} else {
			m.Status = models.StatusRejected
		}

		return store.Save(tx, m)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		var target models.User
		if err := s.db.First(&target, targetUserID).Error; err == nil {
			s.notifier.RequestDecided(group, &target, approve)
		}
	}

	return m, nil
}

// Remove deletes the target's membership row, returning the pair to the
// no-membership state. The caller must be a group admin and the target must
// not be the group owner. The removed user is notified.
func (s *Service) Remove(callerID uint64, group *models.Group, targetUserID uint64) error {
	isAdmin, err := store.IsAdmin(s.db, callerID, group)
	if err != nil {
		return err
	}

	if !isAdmin {
		return ErrPermissionDenied
	}

	if group.IsOwner(targetUserID) {
		return ErrOwnerImmutable
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := store.Delete(tx, targetUserID, group.ID); err != nil {
			if errors.Is(err, store.ErrMembershipNotFound) {
				return ErrNotFound
			}

			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		var target models.User
		if err := s.db.First(&target, targetUserID).Error; err == nil {
			s.notifier.MemberRemoved(group, &target)
		}
	}

	return nil
}

// ChangeRole updates the target member's role. The caller must be a group
// admin, the role must be known, the target must not be the group owner and
// the membership must be approved (role is immutable in any other state).
// The target user is notified.
func (s *Service) ChangeRole(callerID uint64, group *models.Group, targetUserID uint64, role models.MembershipRole) (*models.Membership, error) {
	isAdmin, err := store.IsAdmin(s.db, callerID, group)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		return nil, ErrPermissionDenied
	}

	if !models.KnownRole(role) {
		return nil, ErrUnknownRole
	}

	if group.IsOwner(targetUserID) {
		return nil, ErrOwnerImmutable
	}

	var m *models.Membership

	err = s.db.Transaction(func(tx *gorm.DB) error {
		m, err = store.Find(tx, targetUserID, group.ID)
		if err != nil {
			if errors.Is(err, store.ErrMembershipNotFound) {
				return ErrNotFound
			}

			return err
		}

		if m.Status != models.StatusApproved {
			return ErrNotFound
		}

		m.Role = role

		return store.Save(tx, m)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		var target models.User
		if err := s.db.First(&target, targetUserID).Error; err == nil {
			s.notifier.RoleChanged(group, &target, role)
		}
	}

	return m, nil
}
