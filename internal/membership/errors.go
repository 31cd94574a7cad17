package membership

import "errors"

var (
	// ErrPermissionDenied is returned when the caller lacks admin rights on
	// the group. No state change occurs.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOwnerImmutable is returned when a transition targets the group
	// owner, who is exempt from removal and role changes.
	ErrOwnerImmutable = errors.New("the group owner cannot be removed or have their role changed")

	// ErrNotFound is returned when no membership row matches the target
	// user and group in the state required by the transition.
	ErrNotFound = errors.New("no matching membership")

	// ErrAlreadyMember is returned when a join request targets a group the
	// user already has a membership row in.
	ErrAlreadyMember = errors.New("membership already exists")

	// ErrUnknownRole is returned when a role change names a role outside
	// the deployed role set.
	ErrUnknownRole = errors.New("unknown role")

	// ErrTokenInvalid is returned when no invitation carries the presented
	// token. Checked before ErrTokenUsed and ErrTokenExpired.
	ErrTokenInvalid = errors.New("the invitation link is invalid")

	// ErrTokenUsed is returned when the invitation was already redeemed or
	// the membership is already approved. Checked before ErrTokenExpired.
	ErrTokenUsed = errors.New("the invitation link was already used")

	// ErrTokenExpired is returned when the invitation token passed its
	// expiry. Checked last.
	ErrTokenExpired = errors.New("the invitation link has expired")
)
