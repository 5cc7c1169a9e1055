package models

// Role governs the actions a user may perform on a board.
type Role string

const (
	RoleManager      Role = "manager"
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := permissions[r]
	return ok
}

// InvitationState is the lifecycle of a UserRole row.
type InvitationState string

const (
	StateInvited  InvitationState = "invited"
	StateAccepted InvitationState = "accepted"
	StateDeclined InvitationState = "declined"
)

// Action is something a user may attempt on a board.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
)

var permissions = map[Role]map[Action]bool{
	RoleManager: {
		ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true, ActionInvite: true,
	},
	RoleCollaborator: {
		ActionView: true, ActionCreate: true, ActionEdit: true, ActionDelete: true,
	},
	RoleViewer: {
		ActionView: true,
	},
}

// Permits evaluates the fixed role/action table. Unknown roles permit nothing.
func (r Role) Permits(a Action) bool {
	return permissions[r][a]
}
