package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type IncidentField string

const (
	FieldTitle       IncidentField = "title"
	FieldDescription IncidentField = "description"
	FieldLocation    IncidentField = "location"
	FieldParties     IncidentField = "parties"
	FieldIncidentAt  IncidentField = "incident_at"
	FieldSeverity    IncidentField = "severity"
	FieldAssignee    IncidentField = "assigned_responder_id"
)

var updatableIncidentFields = map[IncidentField]struct{}{
	FieldTitle:       {},
	FieldDescription: {},
	FieldLocation:    {},
	FieldParties:     {},
	FieldIncidentAt:  {},
	FieldSeverity:    {},
	FieldAssignee:    {},
}

// StateChange is applied atomically by ApplyStateChange. The update only
// matches while the incident is still in FromState.
type StateChange struct {
	IncidentID    string
	FromState     string
	ToState       string
	SetAssignee   bool
	AssigneeID    *string
	Resolution    *string
	Audit         []AuditRecord
	Comment       *Comment
	CommentTokens []string
}

type BulkAction string

const (
	BulkAssign BulkAction = "assign"
	BulkStatus BulkAction = "status"
	BulkDelete BulkAction = "delete"
)

// BulkOp describes one all-or-nothing bulk mutation. Actor and assignee role
// requirements are re-checked inside the transaction.
type BulkOp struct {
	EventID       string
	IncidentIDs   []string
	Action        BulkAction
	State         string
	AssigneeID    string
	ActorID       string
	ActorRoles    []string
	AssigneeRoles []string
	Audit         []AuditRecord
}

var (
	ErrBulkMembership = errors.New("incidents no longer belong to the event")
	ErrBulkActorRole  = errors.New("actor no longer holds the required role")
	ErrBulkAssignee   = errors.New("assignee no longer holds the required role")
)

type IncidentsStore interface {
	CreateIncident(ctx context.Context, inc *Incident, tagIDs []string, files []RelatedFile) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	UpdateIncidentField(ctx context.Context, id string, field IncidentField, value any) (bool, error)
	ApplyStateChange(ctx context.Context, change StateChange) error
	SetIncidentTags(ctx context.Context, incidentID string, tagIDs []string) error
	ListIncidentTags(ctx context.Context, incidentID string) ([]Tag, error)
	CountComments(ctx context.Context, incidentID string) (int, error)
	ExistingIncidentIDs(ctx context.Context, eventID string, ids []string) ([]string, error)
	ApplyBulk(ctx context.Context, op BulkOp) (int64, error)
}

type incidentsStore struct {
	db *sql.DB
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const incidentColumns = `id, event_id, reporter_id, title, description, state, severity, resolution, incident_at, parties, location, assigned_responder_id, created_at, updated_at`

func (s *incidentsStore) CreateIncident(ctx context.Context, inc *Incident, tagIDs []string, files []RelatedFile) error {
	if inc.ID == "" {
		inc.ID = utils.NewID()
	}
	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO incidents(`+incidentColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			inc.ID, inc.EventID, nullableString(inc.ReporterID), inc.Title, inc.Description, inc.State,
			nullableString(inc.Severity), nullableString(inc.Resolution), nullableTime(inc.IncidentAt),
			nullableString(inc.Parties), nullableString(inc.Location), nullableString(inc.AssignedResponderID),
			inc.CreatedAt, inc.UpdatedAt); err != nil {
			return err
		}
		for _, tagID := range dedupe(tagIDs) {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO incident_tags(incident_id, tag_id) VALUES(?,?)`, inc.ID, tagID); err != nil {
				return err
			}
		}
		for i := range files {
			files[i].IncidentID = inc.ID
			if err := insertFileTx(ctx, tx, &files[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *incidentsStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id)
	inc, err := scanIncident(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return inc, nil
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	var clauses []string
	var args []any
	if filter.EventID != "" {
		clauses = append(clauses, "event_id=?")
		args = append(args, filter.EventID)
	}
	if filter.ReporterID != "" {
		clauses = append(clauses, "reporter_id=?")
		args = append(args, filter.ReporterID)
	}
	if filter.State != "" {
		clauses = append(clauses, "state=?")
		args = append(args, filter.State)
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(filter.Offset, 0))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) UpdateIncidentField(ctx context.Context, id string, field IncidentField, value any) (bool, error) {
	if _, ok := updatableIncidentFields[field]; !ok {
		return false, fmt.Errorf("field %q is not updatable", field)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE incidents SET `+string(field)+`=?, updated_at=? WHERE id=?`, value, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *incidentsStore) ApplyStateChange(ctx context.Context, change StateChange) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		sets := []string{"state=?", "updated_at=?"}
		args := []any{change.ToState, now}
		if change.SetAssignee {
			sets = append(sets, "assigned_responder_id=?")
			args = append(args, nullableString(change.AssigneeID))
		}
		if change.Resolution != nil {
			sets = append(sets, "resolution=?")
			args = append(args, *change.Resolution)
		}
		args = append(args, change.IncidentID, change.FromState)
		res, err := tx.ExecContext(ctx, `UPDATE incidents SET `+strings.Join(sets, ", ")+` WHERE id=? AND state=?`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStateConflict
		}
		for i := range change.Audit {
			if err := insertAuditTx(ctx, tx, &change.Audit[i]); err != nil {
				return err
			}
		}
		if change.Comment != nil {
			change.Comment.IncidentID = change.IncidentID
			if err := insertCommentTx(ctx, tx, change.Comment, change.CommentTokens); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *incidentsStore) SetIncidentTags(ctx context.Context, incidentID string, tagIDs []string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM incident_tags WHERE incident_id=?`, incidentID); err != nil {
			return err
		}
		for _, tagID := range dedupe(tagIDs) {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO incident_tags(incident_id, tag_id) VALUES(?,?)`, incidentID, tagID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE incidents SET updated_at=? WHERE id=?`, time.Now().UTC(), incidentID)
		return err
	})
}

func (s *incidentsStore) ListIncidentTags(ctx context.Context, incidentID string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.event_id, t.name, t.color, t.created_at
		FROM incident_tags it
		JOIN tags t ON t.id=it.tag_id
		WHERE it.incident_id=?
		ORDER BY t.name`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (s *incidentsStore) CountComments(ctx context.Context, incidentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM comments WHERE incident_id=?`, incidentID).Scan(&n)
	return n, err
}

// ExistingIncidentIDs returns the subset of ids that belong to eventID.
func (s *incidentsStore) ExistingIncidentIDs(ctx context.Context, eventID string, ids []string) ([]string, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]any{eventID}, toAny(ids)...)
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM incidents WHERE event_id=? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func (s *incidentsStore) ApplyBulk(ctx context.Context, op BulkOp) (int64, error) {
	ids := dedupe(op.IncidentIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	var affected int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var inEvent int
		args := append([]any{op.EventID}, toAny(ids)...)
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM incidents WHERE event_id=? AND id IN (`+placeholders(len(ids))+`)`, args...).Scan(&inEvent); err != nil {
			return err
		}
		if inEvent != len(ids) {
			return ErrBulkMembership
		}
		if len(op.ActorRoles) > 0 {
			ok, err := eventRoleHeldTx(ctx, tx, op.ActorID, op.EventID, op.ActorRoles)
			if err != nil {
				return err
			}
			if !ok {
				return ErrBulkActorRole
			}
		}
		now := time.Now().UTC()
		idArgs := toAny(ids)
		var res sql.Result
		var err error
		switch op.Action {
		case BulkAssign:
			ok, rerr := eventRoleHeldTx(ctx, tx, op.AssigneeID, op.EventID, op.AssigneeRoles)
			if rerr != nil {
				return rerr
			}
			if !ok {
				return ErrBulkAssignee
			}
			res, err = tx.ExecContext(ctx, `UPDATE incidents SET assigned_responder_id=?, updated_at=? WHERE id IN (`+placeholders(len(ids))+`)`,
				append([]any{op.AssigneeID, now}, idArgs...)...)
		case BulkStatus:
			res, err = tx.ExecContext(ctx, `UPDATE incidents SET state=?, updated_at=? WHERE id IN (`+placeholders(len(ids))+`)`,
				append([]any{op.State, now}, idArgs...)...)
		case BulkDelete:
			res, err = tx.ExecContext(ctx, `DELETE FROM incidents WHERE id IN (`+placeholders(len(ids))+`)`, idArgs...)
		default:
			return fmt.Errorf("unsupported bulk action %q", op.Action)
		}
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		for i := range op.Audit {
			if err := insertAuditTx(ctx, tx, &op.Audit[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// eventRoleHeldTx mirrors the event-scope inheritance rules of the
// authorization engine: system admins, org admins of the owning organization
// and direct event roles all qualify.
func eventRoleHeldTx(ctx context.Context, tx *sql.Tx, userID, eventID string, roleNames []string) (bool, error) {
	names := dedupe(roleNames)
	if userID == "" || len(names) == 0 {
		return false, nil
	}
	args := []any{userID, eventID}
	args = append(args, toAny(names)...)
	args = append(args, eventID)
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1)
		FROM role_assignments ra
		JOIN roles r ON r.id=ra.role_id
		WHERE ra.user_id=? AND (
			(ra.scope_type='event' AND ra.scope_id=? AND r.name IN (`+placeholders(len(names))+`))
			OR (ra.scope_type='system' AND r.name='system_admin')
			OR (ra.scope_type='organization' AND r.name='org_admin'
				AND ra.scope_id=(SELECT organization_id FROM events WHERE id=?))
		)`, args...).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*Incident, error) {
	var inc Incident
	var reporter, severity, resolution, parties, location, assignee sql.NullString
	var incidentAt sql.NullTime
	if err := row.Scan(&inc.ID, &inc.EventID, &reporter, &inc.Title, &inc.Description, &inc.State,
		&severity, &resolution, &incidentAt, &parties, &location, &assignee, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, err
	}
	inc.ReporterID = stringPtr(reporter)
	inc.Severity = stringPtr(severity)
	inc.Resolution = stringPtr(resolution)
	inc.IncidentAt = timePtr(incidentAt)
	inc.Parties = stringPtr(parties)
	inc.Location = stringPtr(location)
	inc.AssignedResponderID = stringPtr(assignee)
	return &inc, nil
}
