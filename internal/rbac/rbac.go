package rbac

import "strings"

type Role string
type Action string

const (
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
	RoleReader  Role = "reader"
)

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Can reports whether a single role grants the action. Viewing catalog
// metadata is open to everyone, including anonymous visitors.
func Can(role Role, action Action) bool {
	switch action {
	case ActionView:
		return true
	case ActionCreate, ActionEdit:
		return role == RoleAdmin || role == RoleCreator
	case ActionDelete:
		return role == RoleAdmin
	default:
		return false
	}
}

// CanAny reports whether any of the roles grants the action.
func CanAny(roles []Role, action Action) bool {
	if action == ActionView {
		return true
	}
	for _, role := range roles {
		if Can(role, action) {
			return true
		}
	}
	return false
}

func Has(roles []Role, want Role) bool {
	for _, role := range roles {
		if role == want {
			return true
		}
	}
	return false
}

// Normalize maps a raw role string from a token onto a known role. Unknown
// roles come back empty and grant nothing.
func Normalize(role string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(role))); r {
	case RoleAdmin, RoleCreator, RoleReader:
		return r
	default:
		return ""
	}
}

func NormalizeAll(raw []string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, value := range raw {
		if role := Normalize(value); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// SelfAssignable reports whether a role may be requested at registration.
func SelfAssignable(role Role) bool {
	return role == RoleReader || role == RoleCreator
}

// Capabilities is what the client shows a user. Action visibility follows
// roles; media visibility follows authentication alone.
type Capabilities struct {
	CanCreate           bool `json:"canCreate"`
	CanEdit             bool `json:"canEdit"`
	CanDelete           bool `json:"canDelete"`
	CanViewMediaPayload bool `json:"canViewMediaPayload"`
}

func CapabilitiesFor(roles []Role, authenticated bool) Capabilities {
	return Capabilities{
		CanCreate:           CanAny(roles, ActionCreate),
		CanEdit:             CanAny(roles, ActionEdit),
		CanDelete:           CanAny(roles, ActionDelete),
		CanViewMediaPayload: authenticated,
	}
}

func (c Capabilities) Allows(action Action) bool {
	switch action {
	case ActionView:
		return true
	case ActionCreate:
		return c.CanCreate
	case ActionEdit:
		return c.CanEdit
	case ActionDelete:
		return c.CanDelete
	default:
		return false
	}
}
