package models

import "time"

// MembershipStatus is the approval state of a user's association with a group.
type MembershipStatus string

const (
	// StatusPending indicates the membership awaits admin approval or
	// invitation redemption.
	StatusPending MembershipStatus = "pending"
	// StatusApproved indicates the user is a full member of the group.
	StatusApproved MembershipStatus = "approved"
	// StatusRejected indicates an admin declined the join request.
	StatusRejected MembershipStatus = "rejected"
)

// MembershipRole is the role a member holds within a group.
type MembershipRole string

const (
	// RoleAdmin may manage members, invitations and group settings.
	RoleAdmin MembershipRole = "admin"
	// RoleModerator may moderate group content.
	RoleModerator MembershipRole = "moderator"
	// RoleUser is a regular member.
	RoleUser MembershipRole = "user"
)

// KnownRole reports whether the given role is part of the deployed role set.
func KnownRole(role MembershipRole) bool {
	switch role {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	default:
		return false
	}
}

// Membership represents the association between a user and a group, carrying
// the approval status, the member's role and - for invitations - the
// single-use redemption token. At most one row may exist per (user, group)
// pair; the composite unique index enforces this at the schema level so
// concurrent invite/join requests for the same pair cannot race.
type Membership struct {
	// ID is the unique identifier for the membership row.
	ID uint `gorm:"primaryKey"`
	// UserID is the subject user of the membership.
	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex:idx_user_group"`
	// GroupID is the group the membership belongs to.
	GroupID uint `gorm:"column:group_id;not null;uniqueIndex:idx_user_group"`
	// User is the subject user (loaded via foreign key).
	// When a user is deleted, their memberships are removed (CASCADE).
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Group is the associated group (loaded via foreign key).
	// When a group is deleted, its memberships are removed (CASCADE).
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// Status is the approval state. Mutated only by the membership state
	// machine's guarded transitions, never directly.
	Status MembershipStatus `gorm:"type:varchar(20);not null;index"`
	// Role is the member's role. Mutable only while Status is approved.
	Role MembershipRole `gorm:"type:varchar(20);not null"`
	// Token is the opaque single-use invitation credential. Empty for
	// memberships not created by an invitation.
	Token string `gorm:"size:255;index"`
	// TokenExpiresAt is the invitation expiry, fixed at issuance.
	TokenExpiresAt *time.Time
	// TokenUsedAt is stamped when the invitation is redeemed.
	TokenUsedAt *time.Time
	// CreatedBy is the user who initiated the membership: the inviting admin
	// for invitations, the subject user for join requests.
	CreatedBy uint64 `gorm:"column:created_by;not null"`
	// CreatedAt is the timestamp when the membership was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the membership was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Membership model.
func (Membership) TableName() string {
	return "group_users"
}

// TokenExpired reports whether the invitation token has passed its expiry at
// the given instant. Memberships without a token never expire.
func (m *Membership) TokenExpired(now time.Time) bool {
	return m.TokenExpiresAt != nil && m.TokenExpiresAt.Before(now)
}

// TokenUsed reports whether the invitation token was already redeemed.
func (m *Membership) TokenUsed() bool {
	return m.TokenUsedAt != nil
}
