package rbac

import (
	"context"

	"reportdesk/core/store"
)

// EnsureBuiltIn persists the role catalog so assignments can reference it.
func EnsureBuiltIn(ctx context.Context, roles store.RolesStore) error {
	if roles == nil {
		return nil
	}
	return roles.EnsureBuiltIn(ctx, defaultStoreRoles())
}

func defaultStoreRoles() []store.Role {
	def := DefaultRoles()
	out := make([]store.Role, 0, len(def))
	for _, r := range def {
		out = append(out, store.Role{
			Name:        string(r.Name),
			ScopeType:   string(r.Scope),
			Level:       r.Level,
			Description: r.Description,
		})
	}
	return out
}
