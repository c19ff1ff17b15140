package handlers

import (
	"net/http"
	"strings"

	"reportdesk/core/rbac"
	"reportdesk/core/utils"
)

type RolesHandler struct {
	engine *rbac.Engine
	logger *utils.Logger
}

func NewRolesHandler(engine *rbac.Engine, logger *utils.Logger) *RolesHandler {
	return &RolesHandler{engine: engine, logger: logger}
}

type roleAssignmentPayload struct {
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	ScopeType string `json:"scopeType"`
	ScopeID   string `json:"scopeId"`
}

// ListUserRoles returns a user's assignments, optionally narrowed by the
// scopeType and scopeId query parameters. Users see their own roles; system
// admins see anyone's.
func (h *RolesHandler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	caller := CurrentUserID(r)
	target := urlParam(r, "userID")
	if caller != target && !h.engine.IsSystemAdmin(r.Context(), caller) {
		WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}
	q := r.URL.Query()
	var scopeType rbac.ScopeType
	if raw := strings.TrimSpace(q.Get("scopeType")); raw != "" {
		st, ok := rbac.ParseScopeType(raw)
		if !ok {
			WriteError(w, http.StatusBadRequest, "Invalid scope type")
			return
		}
		scopeType = st
	}
	roles := h.engine.GetUserRoles(r.Context(), target, scopeType, strings.TrimSpace(q.Get("scopeId")))
	if roles == nil {
		roles = []rbac.Assignment{}
	}
	writeData(w, http.StatusOK, roles)
}

func (h *RolesHandler) Grant(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parseAssignment(w, r)
	if !ok {
		return
	}
	name, _ := rbac.ParseRoleName(p.Role)
	scope, _ := rbac.ParseScopeType(p.ScopeType)
	if !h.engine.GrantRole(r.Context(), p.UserID, name, scope, p.ScopeID, CurrentUserID(r)) {
		WriteError(w, http.StatusBadRequest, "Role could not be granted for this scope")
		return
	}
	writeData(w, http.StatusOK, map[string]any{"granted": true})
}

func (h *RolesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := h.parseAssignment(w, r)
	if !ok {
		return
	}
	name, _ := rbac.ParseRoleName(p.Role)
	scope, _ := rbac.ParseScopeType(p.ScopeType)
	if !h.engine.RevokeRole(r.Context(), p.UserID, name, scope, p.ScopeID, CurrentUserID(r)) {
		WriteError(w, http.StatusNotFound, "Role assignment not found")
		return
	}
	writeData(w, http.StatusOK, map[string]any{"revoked": true})
}

func (h *RolesHandler) parseAssignment(w http.ResponseWriter, r *http.Request) (roleAssignmentPayload, bool) {
	var p roleAssignmentPayload
	if !decodeJSON(w, r, &p) {
		return p, false
	}
	p.UserID = strings.TrimSpace(p.UserID)
	p.ScopeID = strings.TrimSpace(p.ScopeID)
	if p.UserID == "" {
		WriteError(w, http.StatusBadRequest, "userId is required")
		return p, false
	}
	if _, ok := rbac.ParseRoleName(p.Role); !ok {
		WriteError(w, http.StatusBadRequest, "Unknown role")
		return p, false
	}
	scope, ok := rbac.ParseScopeType(p.ScopeType)
	if !ok {
		WriteError(w, http.StatusBadRequest, "Invalid scope type")
		return p, false
	}
	if scope == rbac.ScopeSystem {
		p.ScopeID = rbac.SystemScopeID
	}
	if !h.engine.CanManageScope(r.Context(), CurrentUserID(r), scope, p.ScopeID) {
		WriteError(w, http.StatusForbidden, "Forbidden")
		return p, false
	}
	return p, true
}
