package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"reportdesk/core/utils"
)

type RolesStore interface {
	List(ctx context.Context) ([]Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	EnsureBuiltIn(ctx context.Context, roles []Role) error
}

type rolesStore struct {
	db *sql.DB
}

func NewRolesStore(db *sql.DB) RolesStore {
	return &rolesStore{db: db}
}

func (s *rolesStore) List(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, scope_type, level, description, created_at FROM roles ORDER BY level DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.ScopeType, &r.Level, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *rolesStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, scope_type, level, description, created_at FROM roles WHERE name=?`, strings.ToLower(strings.TrimSpace(name)))
	var r Role
	if err := row.Scan(&r.ID, &r.Name, &r.ScopeType, &r.Level, &r.Description, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// EnsureBuiltIn inserts missing catalog roles and refreshes level, scope and
// description of existing ones. Role ids are never changed.
func (s *rolesStore) EnsureBuiltIn(ctx context.Context, roles []Role) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, r := range roles {
			name := strings.ToLower(strings.TrimSpace(r.Name))
			if name == "" {
				continue
			}
			var existing string
			err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name=?`, name).Scan(&existing)
			switch {
			case err == sql.ErrNoRows:
				if _, err := tx.ExecContext(ctx, `INSERT INTO roles(id, name, scope_type, level, description, created_at) VALUES(?,?,?,?,?,?)`,
					utils.NewID(), name, r.ScopeType, r.Level, r.Description, now); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if _, err := tx.ExecContext(ctx, `UPDATE roles SET scope_type=?, level=?, description=? WHERE id=?`,
					r.ScopeType, r.Level, r.Description, existing); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
