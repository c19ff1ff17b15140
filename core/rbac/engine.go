package rbac

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reportdesk/core/audit"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

// Assignment is one role held by a user at a scope.
type Assignment struct {
	Role      RoleName  `json:"role"`
	Level     int       `json:"level"`
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id"`
}

type DecisionCounts struct {
	Allowed int64
	Denied  int64
	Errors  int64
}

// Engine resolves role questions against stored assignments. Every method
// fails closed: storage errors are logged and answered with a denial.
type Engine struct {
	roles       store.RolesStore
	assignments store.RoleAssignmentsStore
	events      store.EventsStore
	audit       audit.Sink
	logger      *utils.Logger

	mu    sync.Mutex
	stats map[string]*DecisionCounts
}

func NewEngine(roles store.RolesStore, assignments store.RoleAssignmentsStore, events store.EventsStore, sink audit.Sink, logger *utils.Logger) *Engine {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Engine{
		roles:       roles,
		assignments: assignments,
		events:      events,
		audit:       sink,
		logger:      logger,
		stats:       map[string]*DecisionCounts{},
	}
}

// HasRole reports whether userID holds any of names. An empty scopeType
// matches every scope; an empty scopeID matches every id of the scope type.
func (e *Engine) HasRole(ctx context.Context, userID string, names []RoleName, scopeType ScopeType, scopeID string) bool {
	ok, err := e.hasRole(ctx, userID, names, scopeType, scopeID)
	return e.decide("has_role", ok, err)
}

func (e *Engine) hasRole(ctx context.Context, userID string, names []RoleName, scopeType ScopeType, scopeID string) (bool, error) {
	if strings.TrimSpace(userID) == "" || len(names) == 0 {
		return false, nil
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}
	list, err := e.assignments.List(ctx, store.AssignmentFilter{
		UserID:    userID,
		ScopeType: string(scopeType),
		ScopeID:   scopeID,
		RoleNames: roleNameStrings(names),
	})
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

func (e *Engine) IsSystemAdmin(ctx context.Context, userID string) bool {
	ok, err := e.hasRole(ctx, userID, []RoleName{RoleSystemAdmin}, ScopeSystem, SystemScopeID)
	return e.decide("is_system_admin", ok, err)
}

// HasOrgRole defaults to org_admin and org_viewer when names is empty.
func (e *Engine) HasOrgRole(ctx context.Context, userID, orgID string, names ...RoleName) bool {
	if len(names) == 0 {
		names = []RoleName{RoleOrgAdmin, RoleOrgViewer}
	}
	ok, err := e.hasOrgRole(ctx, userID, orgID, names)
	return e.decide("has_org_role", ok, err)
}

func (e *Engine) hasOrgRole(ctx context.Context, userID, orgID string, names []RoleName) (bool, error) {
	if ok, err := e.hasRole(ctx, userID, []RoleName{RoleSystemAdmin}, ScopeSystem, SystemScopeID); err != nil || ok {
		return ok, err
	}
	if strings.TrimSpace(orgID) == "" {
		return false, nil
	}
	return e.hasRole(ctx, userID, names, ScopeOrganization, orgID)
}

// HasEventRole defaults to event_admin, responder and reporter when names is
// empty. System admins pass for every event, org admins pass for every event
// of their organization.
func (e *Engine) HasEventRole(ctx context.Context, userID, eventID string, names ...RoleName) bool {
	if len(names) == 0 {
		names = []RoleName{RoleEventAdmin, RoleResponder, RoleReporter}
	}
	ok, err := e.hasEventRole(ctx, userID, eventID, names)
	return e.decide("has_event_role", ok, err)
}

func (e *Engine) hasEventRole(ctx context.Context, userID, eventID string, names []RoleName) (bool, error) {
	if ok, err := e.hasRole(ctx, userID, []RoleName{RoleSystemAdmin}, ScopeSystem, SystemScopeID); err != nil || ok {
		return ok, err
	}
	if strings.TrimSpace(eventID) == "" {
		return false, nil
	}
	if ok, err := e.hasRole(ctx, userID, names, ScopeEvent, eventID); err != nil || ok {
		return ok, err
	}
	orgID, err := e.eventOrganization(ctx, eventID)
	if err != nil || orgID == "" {
		return false, err
	}
	return e.hasRole(ctx, userID, []RoleName{RoleOrgAdmin}, ScopeOrganization, orgID)
}

// EffectiveEventRoles resolves the roles a user acts with inside an event:
// direct event roles, event_admin inherited from org_admin of the owning
// organization, and system_admin.
func (e *Engine) EffectiveEventRoles(ctx context.Context, userID, eventID string) []RoleName {
	roles, err := e.effectiveEventRoles(ctx, userID, eventID)
	if err != nil {
		e.logger.Errorf("rbac.effective_event_roles user=%s event=%s: %v", userID, eventID, err)
		e.count("effective_event_roles", false, true)
		return nil
	}
	e.count("effective_event_roles", len(roles) > 0, false)
	return roles
}

func (e *Engine) effectiveEventRoles(ctx context.Context, userID, eventID string) ([]RoleName, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	list, err := e.assignments.List(ctx, store.AssignmentFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	var orgID string
	orgLoaded := false
	seen := map[RoleName]struct{}{}
	var out []RoleName
	add := func(n RoleName) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, a := range list {
		name := RoleName(a.RoleName)
		switch ScopeType(a.ScopeType) {
		case ScopeSystem:
			if name == RoleSystemAdmin {
				add(RoleSystemAdmin)
			}
		case ScopeEvent:
			if a.ScopeID == eventID {
				add(name)
			}
		case ScopeOrganization:
			if name != RoleOrgAdmin {
				continue
			}
			if !orgLoaded {
				if orgID, err = e.eventOrganization(ctx, eventID); err != nil {
					return nil, err
				}
				orgLoaded = true
			}
			if orgID != "" && a.ScopeID == orgID {
				add(RoleEventAdmin)
			}
		}
	}
	return out, nil
}

func (e *Engine) GetUserRoles(ctx context.Context, userID string, scopeType ScopeType, scopeID string) []Assignment {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}
	list, err := e.assignments.List(ctx, store.AssignmentFilter{UserID: userID, ScopeType: string(scopeType), ScopeID: scopeID})
	if err != nil {
		e.logger.Errorf("rbac.get_user_roles user=%s: %v", userID, err)
		return nil
	}
	out := make([]Assignment, 0, len(list))
	for _, a := range list {
		out = append(out, Assignment{
			Role:      RoleName(a.RoleName),
			Level:     a.RoleLevel,
			ScopeType: ScopeType(a.ScopeType),
			ScopeID:   a.ScopeID,
		})
	}
	return out
}

// GrantRole upserts the assignment; granting twice refreshes grantedAt and
// grantedBy. Unknown roles and roles granted at the wrong scope type are
// refused.
func (e *Engine) GrantRole(ctx context.Context, userID string, name RoleName, scopeType ScopeType, scopeID, grantedBy string) bool {
	role, scopeID, ok := e.resolveGrant(ctx, "grant", userID, name, scopeType, scopeID)
	if !ok {
		return false
	}
	a := &store.RoleAssignment{
		UserID:    userID,
		RoleID:    role.ID,
		ScopeType: string(scopeType),
		ScopeID:   scopeID,
	}
	if grantedBy != "" {
		a.GrantedBy = &grantedBy
	}
	if err := e.assignments.Upsert(ctx, a); err != nil {
		e.logger.Errorf("rbac.grant user=%s role=%s: %v", userID, name, err)
		return false
	}
	e.audit.Record(ctx, roleEntry("role.grant", userID, grantedBy, name, scopeType, scopeID))
	return true
}

func (e *Engine) RevokeRole(ctx context.Context, userID string, name RoleName, scopeType ScopeType, scopeID, revokedBy string) bool {
	role, scopeID, ok := e.resolveGrant(ctx, "revoke", userID, name, scopeType, scopeID)
	if !ok {
		return false
	}
	if _, err := e.assignments.Delete(ctx, userID, role.ID, string(scopeType), scopeID); err != nil {
		e.logger.Errorf("rbac.revoke user=%s role=%s: %v", userID, name, err)
		return false
	}
	e.audit.Record(ctx, roleEntry("role.revoke", userID, revokedBy, name, scopeType, scopeID))
	return true
}

func (e *Engine) resolveGrant(ctx context.Context, op, userID string, name RoleName, scopeType ScopeType, scopeID string) (*store.Role, string, bool) {
	def, known := LookupRole(name)
	if !known {
		e.logger.Warnf("rbac.%s unknown role %q", op, name)
		return nil, "", false
	}
	if def.Scope != scopeType {
		e.logger.Warnf("rbac.%s role %s cannot be held at %s scope", op, name, scopeType)
		return nil, "", false
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(scopeID) == "" {
		return nil, "", false
	}
	role, err := e.roles.FindByName(ctx, string(name))
	if err != nil {
		e.logger.Errorf("rbac.%s role lookup %s: %v", op, name, err)
		return nil, "", false
	}
	if role == nil {
		e.logger.Warnf("rbac.%s role %s missing from catalog table", op, name)
		return nil, "", false
	}
	return role, scopeID, true
}

// HasMinimumLevel compares the highest role level among matching
// assignments with minLevel.
func (e *Engine) HasMinimumLevel(ctx context.Context, userID string, minLevel int, scopeType ScopeType, scopeID string) bool {
	if strings.TrimSpace(userID) == "" {
		return e.decide("has_minimum_level", false, nil)
	}
	if scopeType == ScopeSystem {
		scopeID = SystemScopeID
	}
	list, err := e.assignments.List(ctx, store.AssignmentFilter{UserID: userID, ScopeType: string(scopeType), ScopeID: scopeID})
	if err != nil {
		return e.decide("has_minimum_level", false, err)
	}
	best := 0
	for _, a := range list {
		if a.RoleLevel > best {
			best = a.RoleLevel
		}
	}
	return e.decide("has_minimum_level", len(list) > 0 && best >= minLevel, nil)
}

func (e *Engine) eventOrganization(ctx context.Context, eventID string) (string, error) {
	if e.events == nil {
		return "", nil
	}
	ev, err := e.events.GetEvent(ctx, eventID)
	if err != nil || ev == nil || ev.OrganizationID == nil {
		return "", err
	}
	return *ev.OrganizationID, nil
}

func (e *Engine) decide(check string, ok bool, err error) bool {
	if err != nil {
		e.logger.Errorf("rbac.%s: %v", check, err)
		e.count(check, false, true)
		return false
	}
	e.count(check, ok, false)
	return ok
}

func (e *Engine) count(check string, allowed, failed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.stats[check]
	if c == nil {
		c = &DecisionCounts{}
		e.stats[check] = c
	}
	switch {
	case failed:
		c.Errors++
	case allowed:
		c.Allowed++
	default:
		c.Denied++
	}
}

func (e *Engine) StatsSnapshot() map[string]DecisionCounts {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]DecisionCounts, len(e.stats))
	for k, v := range e.stats {
		out[k] = *v
	}
	return out
}

func roleEntry(action, userID, actor string, name RoleName, scopeType ScopeType, scopeID string) audit.Entry {
	entry := audit.Entry{
		Action:     action,
		TargetType: "user",
		TargetID:   userID,
		UserID:     actor,
		Details:    fmt.Sprintf("role=%s scope=%s:%s", name, scopeType, scopeID),
	}
	if scopeType == ScopeEvent {
		entry.EventID = scopeID
	}
	return entry
}
