package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type AuditStore interface {
	Log(ctx context.Context, rec *AuditRecord) error
	List(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)
	AddDeadLetter(ctx context.Context, payload string, attempts int, lastErr string) error
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
	DeleteDeadLetter(ctx context.Context, id string) error
	BumpDeadLetter(ctx context.Context, id string, lastErr string) error
}

type AuditFilter struct {
	TargetType string
	TargetID   string
	Action     string
	Since      time.Time
	Limit      int
}

type auditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Log(ctx context.Context, rec *AuditRecord) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return insertAuditTx(ctx, tx, rec)
	})
}

func (s *auditStore) List(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	var clauses []string
	var args []any
	if filter.TargetType != "" {
		clauses = append(clauses, "target_type=?")
		args = append(args, filter.TargetType)
	}
	if filter.TargetID != "" {
		clauses = append(clauses, "target_id=?")
		args = append(args, filter.TargetID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at>=?")
		args = append(args, filter.Since.UTC())
	}
	query := `SELECT id, action, target_type, target_id, user_id, event_id, details, created_at FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var userID, eventID sql.NullString
		if err := rows.Scan(&r.ID, &r.Action, &r.TargetType, &r.TargetID, &userID, &eventID, &r.Details, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.UserID = stringPtr(userID)
		r.EventID = stringPtr(eventID)
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *auditStore) AddDeadLetter(ctx context.Context, payload string, attempts int, lastErr string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_dead_letters(id, payload, attempts, last_error, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
		utils.NewID(), payload, attempts, lastErr, now, now)
	return err
}

func (s *auditStore) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload, attempts, last_error, created_at, updated_at FROM audit_dead_letters ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DeadLetter
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.Payload, &d.Attempts, &d.LastError, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *auditStore) DeleteDeadLetter(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_dead_letters WHERE id=?`, id)
	return err
}

func (s *auditStore) BumpDeadLetter(ctx context.Context, id string, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE audit_dead_letters SET attempts=attempts+1, last_error=?, updated_at=? WHERE id=?`,
		lastErr, time.Now().UTC(), id)
	return err
}

func insertAuditTx(ctx context.Context, tx *sql.Tx, rec *AuditRecord) error {
	if rec.ID == "" {
		rec.ID = utils.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log(id, action, target_type, target_id, user_id, event_id, details, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Action, rec.TargetType, rec.TargetID, nullableString(rec.UserID), nullableString(rec.EventID), rec.Details, rec.CreatedAt)
	return err
}
