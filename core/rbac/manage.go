package rbac

import (
	"context"
	"strings"
)

// CanManageScope reports whether actorID may grant or revoke roles at the
// given scope. System admins manage every scope. Org admins manage their
// organization and the events it owns.
func (e *Engine) CanManageScope(ctx context.Context, actorID string, scopeType ScopeType, scopeID string) bool {
	ok, err := e.canManageScope(ctx, actorID, scopeType, scopeID)
	return e.decide("can_manage_scope", ok, err)
}

func (e *Engine) canManageScope(ctx context.Context, actorID string, scopeType ScopeType, scopeID string) (bool, error) {
	if strings.TrimSpace(actorID) == "" {
		return false, nil
	}
	if ok, err := e.hasRole(ctx, actorID, []RoleName{RoleSystemAdmin}, ScopeSystem, SystemScopeID); err != nil || ok {
		return ok, err
	}
	switch scopeType {
	case ScopeOrganization:
		return e.hasRole(ctx, actorID, []RoleName{RoleOrgAdmin}, ScopeOrganization, scopeID)
	case ScopeEvent:
		orgID, err := e.eventOrganization(ctx, scopeID)
		if err != nil || orgID == "" {
			return false, err
		}
		return e.hasRole(ctx, actorID, []RoleName{RoleOrgAdmin}, ScopeOrganization, orgID)
	}
	return false, nil
}
