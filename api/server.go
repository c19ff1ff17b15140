package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"reportdesk/config"
	"reportdesk/core/audit"
	"reportdesk/core/comments"
	"reportdesk/core/incidents"
	"reportdesk/core/notify"
	"reportdesk/core/rbac"
	"reportdesk/core/utils"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	cfg          *config.AppConfig
	router       *chi.Mux
	httpServer   *http.Server
	logger       *utils.Logger
	db           *sql.DB
	engine       *rbac.Engine
	incidentsSvc *incidents.Service
	commentsSvc  *comments.Service
	audit        *audit.Dispatcher
	notifier     notify.Notifier
}

func NewServer(cfg *config.AppConfig, logger *utils.Logger, deps ServerDeps) *Server {
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(logger)
	}
	s := &Server{
		cfg:          cfg,
		router:       chi.NewRouter(),
		logger:       logger,
		db:           deps.DB,
		engine:       deps.Engine,
		incidentsSvc: deps.IncidentsSvc,
		commentsSvc:  deps.CommentsSvc,
		audit:        deps.Audit,
		notifier:     deps.Notifier,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
