package routegroups

import (
	"reportdesk/api/handlers"

	"github.com/go-chi/chi/v5"
)

func RegisterRoles(apiRouter chi.Router, g Guards, roles *handlers.RolesHandler) {
	apiRouter.MethodFunc("GET", "/users/{userID}/roles", g.User(roles.ListUserRoles))
	apiRouter.Route("/roles/assignments", func(r chi.Router) {
		r.MethodFunc("POST", "/", g.User(roles.Grant))
		r.MethodFunc("DELETE", "/", g.User(roles.Revoke))
	})
}
