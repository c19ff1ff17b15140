package incidents

import (
	"context"

	"reportdesk/core/store"
)

// GetIncident returns the incident projected for userID. Callers without any
// role in the event and who did not report the incident are refused.
func (s *Service) GetIncident(ctx context.Context, eventID, incidentID, userID string) (View, error) {
	rec, err := s.loadIncident(ctx, eventID, incidentID)
	if err != nil {
		return View{}, err
	}
	roles := s.authz.EffectiveEventRoles(ctx, userID, rec.EventID)
	isReporter := userID != "" && rec.ReporterID != nil && *rec.ReporterID == userID
	if len(roles) == 0 && !isReporter {
		return View{}, ErrForbidden
	}
	d, err := s.detail(ctx, rec)
	if err != nil {
		return View{}, err
	}
	return filterWithPolicy(s.policy, d, roles, isReporter, userID), nil
}

// ListEventIncidents lists an event's incidents. Staff see every incident;
// other members only see the incidents they reported.
func (s *Service) ListEventIncidents(ctx context.Context, eventID, userID string, filter ListFilter) ([]View, error) {
	roles := s.authz.EffectiveEventRoles(ctx, userID, eventID)
	if len(roles) == 0 {
		return nil, ErrForbidden
	}
	sf := store.IncidentFilter{EventID: eventID, Limit: filter.Limit, Offset: filter.Offset}
	if filter.State != "" {
		st, ok := ParseState(filter.State)
		if !ok {
			return nil, invalid("invalid state filter")
		}
		sf.State = string(st)
	}
	if !isStaff(roles) {
		sf.ReporterID = userID
	}
	recs, err := s.incidents.ListIncidents(ctx, sf)
	if err != nil {
		s.logger.Errorf("incidents.list %s: %v", eventID, err)
		return nil, err
	}
	out := make([]View, 0, len(recs))
	for i := range recs {
		d, err := s.detail(ctx, &recs[i])
		if err != nil {
			return nil, err
		}
		isReporter := recs[i].ReporterID != nil && *recs[i].ReporterID == userID
		out = append(out, filterWithPolicy(s.policy, d, roles, isReporter, userID))
	}
	return out, nil
}

func (s *Service) detail(ctx context.Context, rec *store.Incident) (Detail, error) {
	inc, err := s.decode(ctx, rec)
	if err != nil {
		return Detail{}, err
	}
	count, err := s.incidents.CountComments(ctx, rec.ID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Incident: inc, CommentCount: count}
	ev, err := s.events.GetEvent(ctx, rec.EventID)
	if err != nil {
		return Detail{}, err
	}
	if ev != nil {
		d.Event = &EventSummary{ID: ev.ID, Name: ev.Name, Slug: ev.Slug}
	}
	return d, nil
}
