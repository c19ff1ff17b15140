package incidents

import (
	"context"

	"reportdesk/core/rbac"
)

// CheckIncidentEditAccess reports whether userID may edit the incident's
// title-level fields: its reporter, or an event admin of its event.
func (s *Service) CheckIncidentEditAccess(ctx context.Context, userID, incidentID, eventID string) (*EditAccess, error) {
	rec, err := s.loadIncident(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	subjects, roles, isReporter, _ := s.subjects(ctx, userID, rec)
	return &EditAccess{
		CanEdit:    s.policy.Allowed(subjects, rbac.ActEdit),
		IsReporter: isReporter,
		Roles:      roles,
	}, nil
}

// CheckIncidentAccess reports whether userID may work with the incident: its
// reporter or staff of its event. An empty eventID uses the incident's own
// event. The resolved roles are returned for follow-up visibility checks.
func (s *Service) CheckIncidentAccess(ctx context.Context, userID, incidentID, eventID string) (*Access, error) {
	rec, err := s.loadIncident(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	_, roles, isReporter, isAssignee := s.subjects(ctx, userID, rec)
	acc := &Access{
		HasAccess:  isReporter || isStaff(roles),
		IsReporter: isReporter,
		IsAssignee: isAssignee,
		Roles:      roles,
	}
	if acc.HasAccess {
		if acc.Incident, err = s.decode(ctx, rec); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// CanViewInternal reports whether the access allows internal comments:
// staff, or the currently assigned responder.
func (s *Service) CanViewInternal(acc *Access) bool {
	if acc == nil {
		return false
	}
	return s.policy.Allowed(rbac.Subjects(acc.Roles, acc.IsReporter, acc.IsAssignee), rbac.ActViewInternalComments)
}
