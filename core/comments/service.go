package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reportdesk/core/audit"
	"reportdesk/core/fieldcrypt"
	"reportdesk/core/incidents"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

const (
	AuditCommentCreate = "comment.create"
	AuditCommentUpdate = "comment.update"
	AuditCommentDelete = "comment.delete"
)

// IncidentAccess resolves who may work with an incident and whether they see
// internal comments.
type IncidentAccess interface {
	CheckIncidentAccess(ctx context.Context, userID, incidentID, eventID string) (*incidents.Access, error)
	CanViewInternal(acc *incidents.Access) bool
}

type Service struct {
	comments store.CommentsStore
	access   IncidentAccess
	codec    *fieldcrypt.Codec
	audit    audit.Sink
	logger   *utils.Logger
}

func NewService(comments store.CommentsStore, access IncidentAccess, codec *fieldcrypt.Codec, sink audit.Sink, logger *utils.Logger) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &Service{comments: comments, access: access, codec: codec, audit: sink, logger: logger}
}

func (s *Service) requireAccess(ctx context.Context, eventID, incidentID, userID string) (*incidents.Access, error) {
	acc, err := s.access.CheckIncidentAccess(ctx, userID, incidentID, eventID)
	if err != nil {
		return nil, err
	}
	if !acc.HasAccess {
		return nil, ErrForbidden
	}
	return acc, nil
}

// CreateComment stores an encrypted comment on an incident the author can
// access. Internal comments are limited to staff and the assigned responder.
func (s *Service) CreateComment(ctx context.Context, in CreateInput) (*Comment, error) {
	in.Body = strings.TrimSpace(in.Body)
	in.Visibility = strings.ToLower(strings.TrimSpace(in.Visibility))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	visibility := VisibilityPublic
	if in.Visibility != "" {
		visibility = Visibility(in.Visibility)
	}
	acc, err := s.requireAccess(ctx, in.EventID, in.IncidentID, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if visibility == VisibilityInternal && !s.access.CanViewInternal(acc) {
		return nil, ErrForbidden
	}
	enc, err := s.codec.EncryptField(in.Body)
	if err != nil {
		return nil, err
	}
	c := &store.Comment{
		IncidentID: acc.Incident.ID,
		Body:       enc,
		Visibility: string(visibility),
		IsMarkdown: in.IsMarkdown,
	}
	if in.AuthorID != "" {
		author := in.AuthorID
		c.AuthorID = &author
	}
	if err := s.comments.CreateComment(ctx, c, s.codec.SearchTokens(in.Body)); err != nil {
		s.logger.Errorf("comments.create %s: %v", in.IncidentID, err)
		return nil, err
	}
	s.record(ctx, AuditCommentCreate, c, in.AuthorID, acc.Incident.EventID, "visibility="+c.Visibility)
	out := s.decode(c)
	return &out, nil
}

// ListComments returns the comments the caller may see, oldest first.
func (s *Service) ListComments(ctx context.Context, eventID, incidentID, userID string) ([]Comment, error) {
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.comments.ListComments(ctx, acc.Incident.ID, s.access.CanViewInternal(acc))
	if err != nil {
		s.logger.Errorf("comments.list %s: %v", incidentID, err)
		return nil, err
	}
	return s.decodeAll(list), nil
}

// GetComment hides internal comments from callers who cannot see them.
func (s *Service) GetComment(ctx context.Context, eventID, incidentID, commentID, userID string) (*Comment, error) {
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	c, err := s.commentOf(ctx, acc.Incident.ID, commentID)
	if err != nil {
		return nil, err
	}
	if Visibility(c.Visibility) == VisibilityInternal && !s.access.CanViewInternal(acc) {
		return nil, ErrCommentNotFound
	}
	out := s.decode(c)
	return &out, nil
}

// UpdateComment lets only the author rewrite a comment. Calls without a
// user are rejected.
func (s *Service) UpdateComment(ctx context.Context, in UpdateInput) (*Comment, error) {
	in.Body = strings.TrimSpace(in.Body)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	c, eventID, err := s.authorOwned(ctx, in.EventID, in.IncidentID, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}
	enc, err := s.codec.EncryptField(in.Body)
	if err != nil {
		return nil, err
	}
	c.Body = enc
	if in.IsMarkdown != nil {
		c.IsMarkdown = *in.IsMarkdown
	}
	if err := s.comments.UpdateComment(ctx, c, s.codec.SearchTokens(in.Body)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		s.logger.Errorf("comments.update %s: %v", c.ID, err)
		return nil, err
	}
	s.record(ctx, AuditCommentUpdate, c, in.UserID, eventID, "")
	out := s.decode(c)
	return &out, nil
}

// DeleteComment lets only the author remove a comment.
func (s *Service) DeleteComment(ctx context.Context, eventID, incidentID, commentID, userID string) error {
	c, evID, err := s.authorOwned(ctx, eventID, incidentID, commentID, userID)
	if err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, c.ID); err != nil {
		s.logger.Errorf("comments.delete %s: %v", c.ID, err)
		return err
	}
	s.record(ctx, AuditCommentDelete, c, userID, evID, "")
	return nil
}

// SearchComments matches whole words against the blind index. Every word of
// the query must occur in a comment for it to match.
func (s *Service) SearchComments(ctx context.Context, eventID, incidentID, userID, query string) ([]Comment, error) {
	tokens := s.codec.SearchTokens(query)
	if len(tokens) == 0 {
		return nil, invalid("search query must contain at least one word of two or more characters")
	}
	acc, err := s.requireAccess(ctx, eventID, incidentID, userID)
	if err != nil {
		return nil, err
	}
	list, err := s.comments.SearchComments(ctx, acc.Incident.ID, tokens, s.access.CanViewInternal(acc))
	if err != nil {
		s.logger.Errorf("comments.search %s: %v", incidentID, err)
		return nil, err
	}
	return s.decodeAll(list), nil
}

func (s *Service) authorOwned(ctx context.Context, eventID, incidentID, commentID, userID string) (*store.Comment, string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, "", ErrForbidden
	}
	acc, err := s.access.CheckIncidentAccess(ctx, userID, incidentID, eventID)
	if err != nil {
		return nil, "", err
	}
	// Access may have been lost since writing; authorship still decides.
	c, err := s.commentOf(ctx, incidentID, commentID)
	if err != nil {
		return nil, "", err
	}
	if c.AuthorID == nil || *c.AuthorID != userID {
		return nil, "", ErrForbidden
	}
	evID := eventID
	if acc.Incident != nil {
		evID = acc.Incident.EventID
	}
	return c, evID, nil
}

func (s *Service) commentOf(ctx context.Context, incidentID, commentID string) (*store.Comment, error) {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		s.logger.Errorf("comments.get %s: %v", commentID, err)
		return nil, err
	}
	if c == nil || c.IncidentID != incidentID {
		return nil, ErrCommentNotFound
	}
	return c, nil
}

func (s *Service) decodeAll(list []store.Comment) []Comment {
	out := make([]Comment, 0, len(list))
	for i := range list {
		out = append(out, s.decode(&list[i]))
	}
	return out
}

func (s *Service) record(ctx context.Context, action string, c *store.Comment, userID, eventID, details string) {
	if details == "" {
		details = fmt.Sprintf("incident=%s", c.IncidentID)
	} else {
		details = fmt.Sprintf("incident=%s %s", c.IncidentID, details)
	}
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		TargetType: "comment",
		TargetID:   c.ID,
		UserID:     userID,
		EventID:    eventID,
		Details:    details,
	})
}
