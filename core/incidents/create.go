package incidents

import (
	"context"
	"fmt"
	"strings"

	"reportdesk/core/store"
)

// CreateIncident validates and stores a new report in state submitted.
// Sensitive fields are encrypted before they reach storage. Reporter may be
// empty for anonymous reports. Notifications are left to the caller.
func (s *Service) CreateIncident(ctx context.Context, in CreateInput) (*Incident, error) {
	in.EventID = strings.TrimSpace(in.EventID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Parties = trimOptional(in.Parties)
	in.Location = trimOptional(in.Location)
	in.Urgency = trimOptional(in.Urgency)
	if in.Urgency != nil {
		v := strings.ToLower(*in.Urgency)
		in.Urgency = &v
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validateIncidentAt(in.IncidentAt, s.now()); err != nil {
		return nil, err
	}

	ev, err := s.events.GetEvent(ctx, in.EventID)
	if err != nil {
		s.logger.Errorf("incidents.create event %s: %v", in.EventID, err)
		return nil, err
	}
	if ev == nil {
		return nil, ErrNotFound
	}
	if err := s.checkTagsBelong(ctx, in.EventID, in.TagIDs); err != nil {
		return nil, err
	}

	severity := string(SeverityLow)
	if in.Urgency != nil {
		severity = *in.Urgency
	}
	rec := &store.Incident{
		EventID:    in.EventID,
		Title:      in.Title,
		State:      string(StateSubmitted),
		Severity:   &severity,
		IncidentAt: in.IncidentAt,
	}
	if in.ReporterID != "" {
		reporter := in.ReporterID
		rec.ReporterID = &reporter
	}
	if rec.Description, err = s.codec.EncryptField(in.Description); err != nil {
		return nil, err
	}
	if rec.Parties, err = s.codec.EncryptOptional(in.Parties); err != nil {
		return nil, err
	}
	if rec.Location, err = s.codec.EncryptOptional(in.Location); err != nil {
		return nil, err
	}
	files := make([]store.RelatedFile, 0, len(in.Files))
	for _, f := range in.Files {
		files = append(files, store.RelatedFile{
			Filename:   strings.TrimSpace(f.Filename),
			MimeType:   strings.TrimSpace(f.MimeType),
			Data:       f.Data,
			UploaderID: rec.ReporterID,
		})
	}
	if err := s.incidents.CreateIncident(ctx, rec, in.TagIDs, files); err != nil {
		s.logger.Errorf("incidents.create: %v", err)
		return nil, err
	}

	s.record(ctx, AuditIncidentCreate, rec.ID, in.ReporterID, rec.EventID, fmt.Sprintf("title=%q", rec.Title))
	for _, f := range files {
		s.audit.Record(ctx, fileEntry(AuditIncidentFile, f, in.ReporterID, rec.EventID))
	}
	return s.decode(ctx, rec)
}

// checkTagsBelong rejects unknown tags and tags of other events.
func (s *Service) checkTagsBelong(ctx context.Context, eventID string, tagIDs []string) error {
	ids := uniqueNonEmpty(tagIDs)
	if len(ids) == 0 {
		return nil
	}
	tags, err := s.tags.GetTagsByIDs(ctx, ids)
	if err != nil {
		s.logger.Errorf("incidents.tags lookup: %v", err)
		return err
	}
	if len(tags) != len(ids) {
		return invalid("one or more tags do not exist")
	}
	for _, t := range tags {
		if t.EventID != eventID {
			return invalid("all tags must belong to the incident's event")
		}
	}
	return nil
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
