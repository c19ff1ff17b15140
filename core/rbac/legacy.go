package rbac

import "strings"

// LegacyEventRole is a membership role name of the per-event membership model.
type LegacyEventRole string

const (
	LegacyEventAdmin     LegacyEventRole = "admin"
	LegacyEventResponder LegacyEventRole = "responder"
	LegacyEventReporter  LegacyEventRole = "reporter"
)

// LegacyOrgRole is a membership role name of the per-organization membership model.
type LegacyOrgRole string

const (
	LegacyOrgAdmin  LegacyOrgRole = "admin"
	LegacyOrgViewer LegacyOrgRole = "viewer"
)

// LegacySystemRole is the global role flag of the membership model.
type LegacySystemRole string

const LegacySuperAdmin LegacySystemRole = "superadmin"

func LegacyEventRoles() []LegacyEventRole {
	return []LegacyEventRole{LegacyEventAdmin, LegacyEventResponder, LegacyEventReporter}
}

func LegacyOrgRoles() []LegacyOrgRole {
	return []LegacyOrgRole{LegacyOrgAdmin, LegacyOrgViewer}
}

func (r LegacyEventRole) Unified() (RoleName, bool) {
	switch r {
	case LegacyEventAdmin:
		return RoleEventAdmin, true
	case LegacyEventResponder:
		return RoleResponder, true
	case LegacyEventReporter:
		return RoleReporter, true
	}
	return "", false
}

func (r LegacyOrgRole) Unified() (RoleName, bool) {
	switch r {
	case LegacyOrgAdmin:
		return RoleOrgAdmin, true
	case LegacyOrgViewer:
		return RoleOrgViewer, true
	}
	return "", false
}

func (r LegacySystemRole) Unified() (RoleName, bool) {
	if r == LegacySuperAdmin {
		return RoleSystemAdmin, true
	}
	return "", false
}

// ResolveRoleName accepts a unified role name or a membership-model name
// valid for the given scope.
func ResolveRoleName(raw string, scope ScopeType) (RoleName, bool) {
	if name, ok := ParseRoleName(raw); ok {
		return name, true
	}
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch scope {
	case ScopeEvent:
		return LegacyEventRole(raw).Unified()
	case ScopeOrganization:
		return LegacyOrgRole(raw).Unified()
	case ScopeSystem:
		return LegacySystemRole(raw).Unified()
	}
	return "", false
}
