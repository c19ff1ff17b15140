package routegroups

import (
	"reportdesk/api/handlers"

	"github.com/go-chi/chi/v5"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, incidents *handlers.IncidentsHandler, comments *handlers.CommentsHandler) {
	apiRouter.Route("/events/{eventID}/incidents", func(r chi.Router) {
		r.MethodFunc("POST", "/", g.Anonymous(incidents.Create))
		r.MethodFunc("GET", "/", g.User(incidents.List))
		r.MethodFunc("POST", "/bulk", g.User(incidents.Bulk))

		r.MethodFunc("GET", "/{id}", g.User(incidents.Get))
		r.MethodFunc("PATCH", "/{id}/state", g.User(incidents.UpdateState))
		r.MethodFunc("PATCH", "/{id}/title", g.User(incidents.UpdateTitle))
		r.MethodFunc("PATCH", "/{id}/description", g.User(incidents.UpdateDescription))
		r.MethodFunc("PATCH", "/{id}/location", g.User(incidents.UpdateLocation))
		r.MethodFunc("PATCH", "/{id}/parties", g.User(incidents.UpdateParties))
		r.MethodFunc("PATCH", "/{id}/incident-date", g.User(incidents.UpdateIncidentDate))
		r.MethodFunc("PATCH", "/{id}/severity", g.User(incidents.UpdateSeverity))
		r.MethodFunc("PATCH", "/{id}/tags", g.User(incidents.UpdateTags))
		r.MethodFunc("PATCH", "/{id}/assignment", g.User(incidents.Assign))

		r.MethodFunc("GET", "/{id}/files", g.User(incidents.ListFiles))
		r.MethodFunc("POST", "/{id}/files", g.User(incidents.UploadFile))
		r.MethodFunc("GET", "/{id}/files/{fileID}", g.User(incidents.DownloadFile))
		r.MethodFunc("DELETE", "/{id}/files/{fileID}", g.User(incidents.DeleteFile))

		r.MethodFunc("GET", "/{id}/comments", g.User(comments.List))
		r.MethodFunc("POST", "/{id}/comments", g.User(comments.Create))
		r.MethodFunc("GET", "/{id}/comments/search", g.User(comments.Search))
		r.MethodFunc("GET", "/{id}/comments/{commentID}", g.User(comments.Get))
		r.MethodFunc("PATCH", "/{id}/comments/{commentID}", g.User(comments.Update))
		r.MethodFunc("DELETE", "/{id}/comments/{commentID}", g.User(comments.Delete))
	})
}
