package incidents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

// authorizeField loads the incident and checks the field permission for
// userID.
func (s *Service) authorizeField(ctx context.Context, eventID, incidentID, userID string, action rbac.Action) (*store.Incident, error) {
	rec, err := s.loadIncident(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	subjects, _, _, _ := s.subjects(ctx, userID, rec)
	if !s.policy.Allowed(subjects, action) {
		return nil, ErrForbidden
	}
	return rec, nil
}

func (s *Service) setField(ctx context.Context, rec *store.Incident, field store.IncidentField, value any, auditAction, userID, details string) (*Incident, error) {
	found, err := s.incidents.UpdateIncidentField(ctx, rec.ID, field, value)
	if err != nil {
		s.logger.Errorf("incidents.update %s %s: %v", field, rec.ID, err)
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	s.audit.Record(ctx, entry(auditAction, rec, userID, details))
	return s.reload(ctx, rec.ID)
}

func (s *Service) UpdateIncidentTitle(ctx context.Context, eventID, incidentID, userID, title string) (*Incident, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActEdit)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, rec, store.FieldTitle, title, AuditIncidentTitle, userID, fmt.Sprintf("title=%q", title))
}

// UpdateIncidentDescription is limited to the reporter and event admins;
// responders cannot rewrite the original account.
func (s *Service) UpdateIncidentDescription(ctx context.Context, eventID, incidentID, userID, description string) (*Incident, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, invalid("description is required")
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateDescription)
	if err != nil {
		return nil, err
	}
	enc, err := s.codec.EncryptField(description)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, rec, store.FieldDescription, enc, AuditIncidentDescription, userID, "description updated")
}

func (s *Service) UpdateIncidentLocation(ctx context.Context, eventID, incidentID, userID string, location *string) (*Incident, error) {
	location = trimOptional(location)
	if err := validateMaxLength("location", location, LocationMaxLength); err != nil {
		return nil, err
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateLocation)
	if err != nil {
		return nil, err
	}
	enc, err := s.codec.EncryptOptional(location)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, rec, store.FieldLocation, optionalValue(enc), AuditIncidentLocation, userID, "location updated")
}

func (s *Service) UpdateIncidentParties(ctx context.Context, eventID, incidentID, userID string, parties *string) (*Incident, error) {
	parties = trimOptional(parties)
	if err := validateMaxLength("parties", parties, PartiesUpdateMaxLength); err != nil {
		return nil, err
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateParties)
	if err != nil {
		return nil, err
	}
	enc, err := s.codec.EncryptOptional(parties)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, rec, store.FieldParties, optionalValue(enc), AuditIncidentParties, userID, "parties updated")
}

func (s *Service) UpdateIncidentIncidentDate(ctx context.Context, eventID, incidentID, userID string, at *time.Time) (*Incident, error) {
	if err := validateIncidentAt(at, s.now()); err != nil {
		return nil, err
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateIncidentAt)
	if err != nil {
		return nil, err
	}
	var value any
	details := "incident_at cleared"
	if at != nil {
		value = at.UTC()
		details = "incident_at=" + at.UTC().Format(time.RFC3339)
	}
	return s.setField(ctx, rec, store.FieldIncidentAt, value, AuditIncidentDate, userID, details)
}

// UpdateIncidentSeverity is staff-only, reporters included for their own
// incidents are refused.
func (s *Service) UpdateIncidentSeverity(ctx context.Context, eventID, incidentID, userID, severity string) (*Incident, error) {
	sv, ok := ParseSeverity(severity)
	if !ok {
		return nil, invalid("severity must be one of: low, medium, high, critical")
	}
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateSeverity)
	if err != nil {
		return nil, err
	}
	return s.setField(ctx, rec, store.FieldSeverity, string(sv), AuditIncidentSeverity, userID, "severity="+string(sv))
}

// UpdateIncidentTags replaces the incident's tags. Every tag must belong to
// the incident's event or nothing is changed.
func (s *Service) UpdateIncidentTags(ctx context.Context, eventID, incidentID, userID string, tagIDs []string) (*Incident, error) {
	rec, err := s.authorizeField(ctx, eventID, incidentID, userID, rbac.ActUpdateTags)
	if err != nil {
		return nil, err
	}
	ids := uniqueNonEmpty(tagIDs)
	if err := s.checkTagsBelong(ctx, rec.EventID, ids); err != nil {
		return nil, err
	}
	if err := s.incidents.SetIncidentTags(ctx, rec.ID, ids); err != nil {
		s.logger.Errorf("incidents.tags %s: %v", rec.ID, err)
		return nil, err
	}
	s.audit.Record(ctx, entry(AuditIncidentTags, rec, userID, "tags="+strings.Join(ids, ",")))
	return s.reload(ctx, rec.ID)
}

// AssignIncident changes the assigned responder without a state change. A
// nil assignee clears the assignment.
func (s *Service) AssignIncident(ctx context.Context, eventID, incidentID, userID string, assigneeID *string) (*Change, error) {
	rec, err := s.loadIncident(ctx, eventID, incidentID)
	if err != nil {
		return nil, err
	}
	if !isStaff(s.authz.EffectiveEventRoles(ctx, userID, rec.EventID)) {
		return nil, ErrForbidden
	}
	assigneeID = trimOptional(assigneeID)
	if assigneeID != nil && !s.authz.HasEventRole(ctx, *assigneeID, rec.EventID, assigneeRoles...) {
		return nil, invalid("assigned user must be a responder or event admin for this event")
	}
	oldAssignee := derefString(rec.AssignedResponderID)
	details := "assignment cleared"
	if assigneeID != nil {
		details = "Assigned to " + *assigneeID
	}
	inc, err := s.setField(ctx, rec, store.FieldAssignee, optionalValue(assigneeID), AuditIncidentAssign, userID, details)
	if err != nil {
		return nil, err
	}
	return &Change{
		Incident:    inc,
		OldState:    State(rec.State),
		NewState:    State(rec.State),
		OldAssignee: oldAssignee,
		NewAssignee: derefString(assigneeID),
	}, nil
}

// optionalValue maps a nil pointer to SQL NULL.
func optionalValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
