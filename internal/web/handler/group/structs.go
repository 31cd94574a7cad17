package group

// groupInput is the create/update group form.
type groupInput struct {
	Name         string `form:"name"          validate:"required,min=3,max=100"`
	About        string `form:"about"         validate:"max=2000"`
	AutoApproval bool   `form:"auto_approval"`
}

// inviteInput is the invite-by-username form.
type inviteInput struct {
	Username string `form:"username" validate:"required,min=3,max=100"`
}

// decideInput is the approve/reject form for pending join requests.
type decideInput struct {
	UserID uint64 `form:"user_id" validate:"required"`
	Action string `form:"action"  validate:"required,oneof=approve reject"`
}

// removeInput is the remove-user form.
type removeInput struct {
	UserID uint64 `form:"user_id" validate:"required"`
}

// roleInput is the change-role form.
type roleInput struct {
	UserID uint64 `form:"user_id" validate:"required"`
	Role   string `form:"role"    validate:"required,oneof=admin moderator user"`
}

// imageInput is the cover/thumbnail upload form; the file arrives as
// multipart field "image".
type imageInput struct {
	Kind string `form:"kind" validate:"required,oneof=cover thumbnail"`
}
