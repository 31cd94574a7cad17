// Package notify delivers membership notifications. The Mailer sends email
// over SMTP when mail is configured; the LogNotifier writes structured log
// events and serves as the fallback. Delivery is fire-and-forget: a failed
// send is logged and never propagated back to the state machine.
package notify

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peerhive/peerhive/internal/config"
	"github.com/peerhive/peerhive/internal/db/models"
	"github.com/peerhive/peerhive/internal/membership"
)

// New returns the notifier matching the configuration: a Mailer when mail is
// enabled, otherwise a LogNotifier.
func New(cfg *config.Config) membership.Notifier {
	if cfg.Mail.Enabled {
		return NewMailer(cfg)
	}

	return &LogNotifier{}
}

// LogNotifier writes each membership event to the structured log.
type LogNotifier struct{}

var _ membership.Notifier = (*LogNotifier)(nil)

// InvitationCreated logs a freshly issued invitation. The token itself is
// never logged.
func (n *LogNotifier) InvitationCreated(group *models.Group, invitee *models.User, _ string, expiresAt time.Time) {
	log.Info().
		Str("group", group.Slug).
		Str("user", invitee.Username).
		Time("expires_at", expiresAt).
		Msg("invitation created")
}

// InvitationAccepted logs a redeemed invitation.
func (n *LogNotifier) InvitationAccepted(group *models.Group, inviter *models.User, invitee *models.User) {
	log.Info().
		Str("group", group.Slug).
		Str("inviter", inviter.Username).
		Str("user", invitee.Username).
		Msg("invitation accepted")
}

// JoinRequested logs a pending join request.
func (n *LogNotifier) JoinRequested(group *models.Group, requester *models.User, admins []models.User) {
	log.Info().
		Str("group", group.Slug).
		Str("user", requester.Username).
		Int("admins", len(admins)).
		Msg("join requested")
}

// RequestDecided logs the outcome of a join request.
func (n *LogNotifier) RequestDecided(group *models.Group, user *models.User, approved bool) {
	log.Info().
		Str("group", group.Slug).
		Str("user", user.Username).
		Bool("approved", approved).
		Msg("join request decided")
}

// MemberRemoved logs a member removal.
func (n *LogNotifier) MemberRemoved(group *models.Group, user *models.User) {
	log.Info().
		Str("group", group.Slug).
		Str("user", user.Username).
		Msg("member removed")
}

// RoleChanged logs a role change.
func (n *LogNotifier) RoleChanged(group *models.Group, user *models.User, role models.MembershipRole) {
	log.Info().
		Str("group", group.Slug).
		Str("user", user.Username).
		Str("role", string(role)).
		Msg("role changed")
}
