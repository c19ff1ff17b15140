package rbac

import (
	"sort"
	"strings"
)

type RoleName string

const (
	RoleSystemAdmin RoleName = "system_admin"
	RoleOrgAdmin    RoleName = "org_admin"
	RoleEventAdmin  RoleName = "event_admin"
	RoleResponder   RoleName = "responder"
	RoleOrgViewer   RoleName = "org_viewer"
	RoleReporter    RoleName = "reporter"
)

type ScopeType string

const (
	ScopeSystem       ScopeType = "system"
	ScopeOrganization ScopeType = "organization"
	ScopeEvent        ScopeType = "event"
)

// SystemScopeID is the canonical scope id of system-scoped assignments.
const SystemScopeID = "SYSTEM"

type Role struct {
	Name        RoleName
	Scope       ScopeType
	Level       int
	Description string
}

var roles = []Role{
	{Name: RoleSystemAdmin, Scope: ScopeSystem, Level: 100, Description: "full access to every organization and event"},
	{Name: RoleOrgAdmin, Scope: ScopeOrganization, Level: 80, Description: "administers an organization and all of its events"},
	{Name: RoleEventAdmin, Scope: ScopeEvent, Level: 60, Description: "administers one event"},
	{Name: RoleResponder, Scope: ScopeEvent, Level: 40, Description: "triages and handles incident reports of one event"},
	{Name: RoleOrgViewer, Scope: ScopeOrganization, Level: 30, Description: "read access to an organization"},
	{Name: RoleReporter, Scope: ScopeEvent, Level: 10, Description: "submits incident reports to one event"},
}

var roleIndex = buildRoleIndex()

func buildRoleIndex() map[RoleName]Role {
	out := make(map[RoleName]Role, len(roles))
	for _, r := range roles {
		out[r.Name] = r
	}
	return out
}

func DefaultRoles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

func LookupRole(name RoleName) (Role, bool) {
	r, ok := roleIndex[name]
	return r, ok
}

func ParseRoleName(raw string) (RoleName, bool) {
	name := RoleName(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := roleIndex[name]
	return name, ok
}

func ParseScopeType(raw string) (ScopeType, bool) {
	switch st := ScopeType(strings.ToLower(strings.TrimSpace(raw))); st {
	case ScopeSystem, ScopeOrganization, ScopeEvent:
		return st, true
	}
	return "", false
}

// Level returns the hierarchy level of a role, zero for unknown names.
func Level(name RoleName) int {
	return roleIndex[name].Level
}

// MaxLevel returns the highest level among roles.
func MaxLevel(names []RoleName) int {
	best := 0
	for _, n := range names {
		if l := Level(n); l > best {
			best = l
		}
	}
	return best
}

// AtLeast reports whether any of names is at or above the level of min.
func AtLeast(names []RoleName, min RoleName) bool {
	want := Level(min)
	return want > 0 && MaxLevel(names) >= want
}

func Contains(names []RoleName, want ...RoleName) bool {
	for _, n := range names {
		for _, w := range want {
			if n == w {
				return true
			}
		}
	}
	return false
}

func roleNameStrings(names []RoleName) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}
