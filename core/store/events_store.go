package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type EventsStore interface {
	CreateOrganization(ctx context.Context, org *Organization) (string, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	CreateEvent(ctx context.Context, ev *Event) (string, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
}

type eventsStore struct {
	db *sql.DB
}

func NewEventsStore(db *sql.DB) EventsStore {
	return &eventsStore{db: db}
}

func (s *eventsStore) CreateOrganization(ctx context.Context, org *Organization) (string, error) {
	if org.ID == "" {
		org.ID = utils.NewID()
	}
	org.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO organizations(id, name, created_at) VALUES(?,?,?)`,
		org.ID, strings.TrimSpace(org.Name), org.CreatedAt)
	if err != nil {
		return "", err
	}
	return org.ID, nil
}

func (s *eventsStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM organizations WHERE id=?`, id)
	var o Organization
	if err := row.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *eventsStore) CreateEvent(ctx context.Context, ev *Event) (string, error) {
	if ev.ID == "" {
		ev.ID = utils.NewID()
	}
	if strings.TrimSpace(ev.Slug) == "" {
		ev.Slug = ev.ID
	}
	ev.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO events(id, organization_id, name, slug, created_at) VALUES(?,?,?,?,?)`,
		ev.ID, nullableString(ev.OrganizationID), strings.TrimSpace(ev.Name), strings.ToLower(strings.TrimSpace(ev.Slug)), ev.CreatedAt)
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

func (s *eventsStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, organization_id, name, slug, created_at FROM events WHERE id=?`, id)
	var ev Event
	var orgID sql.NullString
	if err := row.Scan(&ev.ID, &orgID, &ev.Name, &ev.Slug, &ev.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	ev.OrganizationID = stringPtr(orgID)
	return &ev, nil
}
