package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type RoleAssignmentsStore interface {
	Upsert(ctx context.Context, a *RoleAssignment) error
	Delete(ctx context.Context, userID, roleID, scopeType, scopeID string) (int64, error)
	List(ctx context.Context, filter AssignmentFilter) ([]RoleAssignment, error)
}

type roleAssignmentsStore struct {
	db *sql.DB
}

func NewRoleAssignmentsStore(db *sql.DB) RoleAssignmentsStore {
	return &roleAssignmentsStore{db: db}
}

// Upsert creates the assignment or, when the (user, role, scope) key already
// exists, refreshes granted_at and granted_by.
func (s *roleAssignmentsStore) Upsert(ctx context.Context, a *RoleAssignment) error {
	if a.ID == "" {
		a.ID = utils.NewID()
	}
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_assignments(id, user_id, role_id, scope_type, scope_id, granted_by, granted_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(user_id, role_id, scope_type, scope_id)
		DO UPDATE SET granted_at=excluded.granted_at, granted_by=excluded.granted_by`,
		a.ID, a.UserID, a.RoleID, a.ScopeType, a.ScopeID, nullableString(a.GrantedBy), a.GrantedAt)
	return err
}

func (s *roleAssignmentsStore) Delete(ctx context.Context, userID, roleID, scopeType, scopeID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM role_assignments WHERE user_id=? AND role_id=? AND scope_type=? AND scope_id=?`,
		userID, roleID, scopeType, scopeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *roleAssignmentsStore) List(ctx context.Context, filter AssignmentFilter) ([]RoleAssignment, error) {
	var clauses []string
	var args []any
	if filter.UserID != "" {
		clauses = append(clauses, "ra.user_id=?")
		args = append(args, filter.UserID)
	}
	if filter.ScopeType != "" {
		clauses = append(clauses, "ra.scope_type=?")
		args = append(args, filter.ScopeType)
	}
	if filter.ScopeID != "" {
		clauses = append(clauses, "ra.scope_id=?")
		args = append(args, filter.ScopeID)
	}
	if names := dedupe(filter.RoleNames); len(names) > 0 {
		clauses = append(clauses, "r.name IN ("+placeholders(len(names))+")")
		args = append(args, toAny(names)...)
	}
	query := `
		SELECT ra.id, ra.user_id, ra.role_id, r.name, r.level, ra.scope_type, ra.scope_id, ra.granted_by, ra.granted_at
		FROM role_assignments ra
		JOIN roles r ON r.id=ra.role_id`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.level DESC, ra.granted_at"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var grantedBy sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName, &a.RoleLevel, &a.ScopeType, &a.ScopeID, &grantedBy, &a.GrantedAt); err != nil {
			return nil, err
		}
		a.GrantedBy = stringPtr(grantedBy)
		res = append(res, a)
	}
	return res, rows.Err()
}
