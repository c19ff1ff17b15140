package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type TagsStore interface {
	CreateTag(ctx context.Context, tag *Tag) (string, error)
	ListEventTags(ctx context.Context, eventID string) ([]Tag, error)
	GetTagsByIDs(ctx context.Context, ids []string) ([]Tag, error)
}

type tagsStore struct {
	db *sql.DB
}

func NewTagsStore(db *sql.DB) TagsStore {
	return &tagsStore{db: db}
}

func (s *tagsStore) CreateTag(ctx context.Context, tag *Tag) (string, error) {
	if tag.ID == "" {
		tag.ID = utils.NewID()
	}
	tag.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tags(id, event_id, name, color, created_at) VALUES(?,?,?,?,?)`,
		tag.ID, tag.EventID, strings.TrimSpace(tag.Name), strings.TrimSpace(tag.Color), tag.CreatedAt)
	if err != nil {
		return "", err
	}
	return tag.ID, nil
}

func (s *tagsStore) ListEventTags(ctx context.Context, eventID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, name, color, created_at FROM tags WHERE event_id=? ORDER BY name`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *tagsStore) GetTagsByIDs(ctx context.Context, ids []string) ([]Tag, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_id, name, color, created_at FROM tags WHERE id IN (`+placeholders(len(ids))+`)`, toAny(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]Tag, error) {
	var res []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
