package incidents

import (
	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

var defaultPolicy = rbac.MustDefaultPolicy()

// FilterIncidentFields projects an incident for one viewer. Staff and the
// incident's own reporter get the full record; everyone else gets the
// MinimalIncident allow-list.
func FilterIncidentFields(d Detail, userRoles []rbac.RoleName, isReporter bool, userID string) View {
	return filterWithPolicy(defaultPolicy, d, userRoles, isReporter, userID)
}

func filterWithPolicy(p *rbac.Policy, d Detail, userRoles []rbac.RoleName, isReporter bool, userID string) View {
	inc := d.Incident
	if inc == nil {
		return View{}
	}
	owns := isReporter && inc.ReportedBy(userID)
	if p.Allowed(rbac.Subjects(userRoles, owns, false), rbac.ActViewFull) {
		return View{Full: &FullIncident{
			Incident:     *inc,
			Event:        d.Event,
			UserRoles:    rolesOrEmpty(userRoles),
			CommentCount: d.CommentCount,
		}}
	}
	tags := inc.Tags
	if tags == nil {
		tags = []store.Tag{}
	}
	return View{Minimal: &MinimalIncident{
		ID:           inc.ID,
		Title:        inc.Title,
		State:        inc.State,
		Severity:     inc.Severity,
		IncidentAt:   inc.IncidentAt,
		CreatedAt:    inc.CreatedAt,
		EventID:      inc.EventID,
		Event:        d.Event,
		Tags:         tags,
		UserRoles:    rolesOrEmpty(userRoles),
		CommentCount: d.CommentCount,
	}}
}

func rolesOrEmpty(roles []rbac.RoleName) []rbac.RoleName {
	if roles == nil {
		return []rbac.RoleName{}
	}
	return roles
}
