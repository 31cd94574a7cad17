package membership

import (
	"time"

	"github.com/peerhive/peerhive/internal/db/models"
)

// Notifier is informed of membership state changes after they are persisted.
// Dispatch is fire-and-forget: implementations must handle delivery failures
// themselves - a failed notification never rolls back a committed transition.
type Notifier interface {
	// InvitationCreated is dispatched to the invited user with the
	// redemption token and its expiry.
	InvitationCreated(group *models.Group, invitee *models.User, token string, expiresAt time.Time)

	// InvitationAccepted is dispatched to the inviting admin when the
	// invitee redeems the token.
	InvitationAccepted(group *models.Group, inviter *models.User, invitee *models.User)

	// JoinRequested is dispatched to every current group admin when a user
	// requests to join a group without auto-approval.
	JoinRequested(group *models.Group, requester *models.User, admins []models.User)

	// RequestDecided is dispatched to the requesting user when an admin
	// approves or rejects their join request.
	RequestDecided(group *models.Group, user *models.User, approved bool)

	// MemberRemoved is dispatched to a user removed from a group.
	MemberRemoved(group *models.Group, user *models.User)

	// RoleChanged is dispatched to a member whose role was changed.
	RoleChanged(group *models.Group, user *models.User, role models.MembershipRole)
}
