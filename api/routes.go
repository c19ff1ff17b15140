package api

import (
	"reportdesk/api/handlers"
	"reportdesk/api/routegroups"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) registerRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.securityHeadersMiddleware)

	s.registerObservabilityRoutes()

	var maxUpload int64
	if s.cfg != nil {
		maxUpload = s.cfg.HTTP.MaxUploadBytes
	}
	incidentsHandler := handlers.NewIncidentsHandler(s.incidentsSvc, s.notifier, maxUpload, s.logger)
	commentsHandler := handlers.NewCommentsHandler(s.commentsSvc, s.notifier, s.logger)
	rolesHandler := handlers.NewRolesHandler(s.engine, s.logger)

	apiRouter := chi.NewRouter()
	if s.cfg != nil && s.cfg.HTTP.RequestTimeout > 0 {
		apiRouter.Use(middleware.Timeout(s.cfg.HTTP.RequestTimeout))
	}
	guards := routegroups.Guards{RequireUser: s.requireUser, OptionalUser: s.optionalUser}
	routegroups.RegisterIncidents(apiRouter, guards, incidentsHandler, commentsHandler)
	routegroups.RegisterRoles(apiRouter, guards, rolesHandler)
	s.router.Mount("/api", apiRouter)
}
