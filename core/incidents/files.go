package incidents

import (
	"context"
	"fmt"
	"strings"

	"reportdesk/core/audit"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

func (s *Service) requireAccess(ctx context.Context, eventID, incidentID, userID string) (*Access, error) {
	acc, err := s.CheckIncidentAccess(ctx, userID, incidentID, eventID)
	if err != nil {
		return nil, err
	}
	if !acc.HasAccess {
		return nil, ErrForbidden
	}
	return acc, nil
}

func (s *Service) AddRelatedFile(ctx context.Context, eventID, incidentID, userID string, in FileInput) (*store.RelatedFile, error) {
	in.Filename = strings.TrimSpace(in.Filename)
	in.MimeType = strings.TrimSpace(in.MimeType)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, invalid("file is empty")
	}
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	f := &store.RelatedFile{
		IncidentID: acc.Incident.ID,
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		Data:       in.Data,
	}
	if userID != "" {
		f.UploaderID = &userID
	}
	if err := s.files.AddFile(ctx, f); err != nil {
		s.logger.Errorf("incidents.file add %s: %v", incidentID, err)
		return nil, err
	}
	s.audit.Record(ctx, fileEntry(AuditIncidentFile, *f, userID, acc.Incident.EventID))
	f.Data = nil
	return f, nil
}

func (s *Service) ListRelatedFiles(ctx context.Context, eventID, incidentID, userID string) ([]store.RelatedFile, error) {
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListFiles(ctx, acc.Incident.ID)
	if err != nil {
		s.logger.Errorf("incidents.file list %s: %v", incidentID, err)
		return nil, err
	}
	if files == nil {
		files = []store.RelatedFile{}
	}
	return files, nil
}

// GetRelatedFile returns the file including its data.
func (s *Service) GetRelatedFile(ctx context.Context, eventID, incidentID, fileID, userID string) (*store.RelatedFile, error) {
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	return s.fileOf(ctx, acc.Incident.ID, fileID)
}

// DeleteRelatedFile is allowed to the uploader and event admins.
func (s *Service) DeleteRelatedFile(ctx context.Context, eventID, incidentID, fileID, userID string) error {
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return err
	}
	f, err := s.fileOf(ctx, acc.Incident.ID, fileID)
	if err != nil {
		return err
	}
	isUploader := f.UploaderID != nil && *f.UploaderID == userID
	if !isUploader && !rbac.AtLeast(acc.Roles, rbac.RoleEventAdmin) {
		return ErrForbidden
	}
	if err := s.files.DeleteFile(ctx, f.ID); err != nil {
		s.logger.Errorf("incidents.file delete %s: %v", f.ID, err)
		return err
	}
	s.audit.Record(ctx, fileEntry(AuditIncidentFileDelete, *f, userID, acc.Incident.EventID))
	return nil
}

func (s *Service) fileOf(ctx context.Context, incidentID, fileID string) (*store.RelatedFile, error) {
	f, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		s.logger.Errorf("incidents.file get %s: %v", fileID, err)
		return nil, err
	}
	if f == nil || f.IncidentID != incidentID {
		return nil, ErrNotFound
	}
	return f, nil
}

func fileEntry(action string, f store.RelatedFile, userID, eventID string) audit.Entry {
	return audit.Entry{
		Action:     action,
		TargetType: "related_file",
		TargetID:   f.ID,
		UserID:     userID,
		EventID:    eventID,
		Details:    fmt.Sprintf("incident=%s filename=%q size=%d", f.IncidentID, f.Filename, f.Size),
	}
}
