package store

import (
	"context"
	"database/sql"
	"time"

	"reportdesk/core/utils"
)

type CommentsStore interface {
	CreateComment(ctx context.Context, c *Comment, tokens []string) error
	UpdateComment(ctx context.Context, c *Comment, tokens []string) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	ListComments(ctx context.Context, incidentID string, includeInternal bool) ([]Comment, error)
	DeleteComment(ctx context.Context, id string) error
	SearchComments(ctx context.Context, incidentID string, tokens []string, includeInternal bool) ([]Comment, error)
}

type commentsStore struct {
	db *sql.DB
}

func NewCommentsStore(db *sql.DB) CommentsStore {
	return &commentsStore{db: db}
}

const commentColumns = `id, incident_id, author_id, body, visibility, is_markdown, created_at, updated_at`

func (s *commentsStore) CreateComment(ctx context.Context, c *Comment, tokens []string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertCommentTx(ctx, tx, c, tokens)
	})
}

// UpdateComment rewrites body and markdown flag and replaces the search tokens.
func (s *commentsStore) UpdateComment(ctx context.Context, c *Comment, tokens []string) error {
	c.UpdatedAt = time.Now().UTC()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE comments SET body=?, is_markdown=?, updated_at=? WHERE id=?`,
			c.Body, boolToInt(c.IsMarkdown), c.UpdatedAt, c.ID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return sql.ErrNoRows
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comment_search_tokens WHERE comment_id=?`, c.ID); err != nil {
			return err
		}
		return insertTokensTx(ctx, tx, c.ID, tokens)
	})
}

func (s *commentsStore) GetComment(ctx context.Context, id string) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=?`, id)
	c, err := scanComment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (s *commentsStore) ListComments(ctx context.Context, incidentID string, includeInternal bool) ([]Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE incident_id=?`
	args := []any{incidentID}
	if !includeInternal {
		query += ` AND visibility=?`
		args = append(args, "public")
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func (s *commentsStore) DeleteComment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	return err
}

// SearchComments returns comments of the incident that carry every token hash.
func (s *commentsStore) SearchComments(ctx context.Context, incidentID string, tokens []string, includeInternal bool) ([]Comment, error) {
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return nil, nil
	}
	args := []any{incidentID}
	visibility := ""
	if !includeInternal {
		visibility = ` AND c.visibility=?`
		args = append(args, "public")
	}
	args = append(args, toAny(tokens)...)
	args = append(args, len(tokens))
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.incident_id, c.author_id, c.body, c.visibility, c.is_markdown, c.created_at, c.updated_at
		FROM comments c
		WHERE c.incident_id=?`+visibility+`
			AND c.id IN (
				SELECT comment_id FROM comment_search_tokens
				WHERE token_hash IN (`+placeholders(len(tokens))+`)
				GROUP BY comment_id
				HAVING COUNT(DISTINCT token_hash)=?
			)
		ORDER BY c.created_at, c.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComments(rows)
}

func insertCommentTx(ctx context.Context, tx *sql.Tx, c *Comment, tokens []string) error {
	if c.ID == "" {
		c.ID = utils.NewID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `INSERT INTO comments(`+commentColumns+`) VALUES(?,?,?,?,?,?,?,?)`,
		c.ID, c.IncidentID, nullableString(c.AuthorID), c.Body, c.Visibility, boolToInt(c.IsMarkdown), c.CreatedAt, c.UpdatedAt); err != nil {
		return err
	}
	return insertTokensTx(ctx, tx, c.ID, tokens)
}

func insertTokensTx(ctx context.Context, tx *sql.Tx, commentID string, tokens []string) error {
	for _, tok := range dedupe(tokens) {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO comment_search_tokens(comment_id, token_hash) VALUES(?,?)`, commentID, tok); err != nil {
			return err
		}
	}
	return nil
}

func scanComment(row rowScanner) (*Comment, error) {
	var c Comment
	var author sql.NullString
	var markdown int
	if err := row.Scan(&c.ID, &c.IncidentID, &author, &c.Body, &c.Visibility, &markdown, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.AuthorID = stringPtr(author)
	c.IsMarkdown = markdown == 1
	return &c, nil
}

func scanComments(rows *sql.Rows) ([]Comment, error) {
	var res []Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}
