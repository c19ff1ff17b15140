package comments

import (
	"time"

	"reportdesk/core/store"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

const BodyMaxLength = 10000

// Comment is the decrypted comment returned to callers.
type Comment struct {
	ID         string     `json:"id"`
	IncidentID string     `json:"incidentId"`
	AuthorID   *string    `json:"authorId"`
	Body       string     `json:"body"`
	Visibility Visibility `json:"visibility"`
	IsMarkdown bool       `json:"isMarkdown"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type CreateInput struct {
	EventID    string `json:"-"`
	IncidentID string `json:"-"`
	AuthorID   string `json:"-"`
	Body       string `json:"body" validate:"required,max=10000"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public internal"`
	IsMarkdown bool   `json:"isMarkdown"`
}

type UpdateInput struct {
	EventID    string `json:"-"`
	IncidentID string `json:"-"`
	CommentID  string `json:"-"`
	UserID     string `json:"-"`
	Body       string `json:"body" validate:"required,max=10000"`
	IsMarkdown *bool  `json:"isMarkdown"`
}

func (s *Service) decode(c *store.Comment) Comment {
	return Comment{
		ID:         c.ID,
		IncidentID: c.IncidentID,
		AuthorID:   c.AuthorID,
		Body:       s.codec.DecryptField(c.Body),
		Visibility: Visibility(c.Visibility),
		IsMarkdown: c.IsMarkdown,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
