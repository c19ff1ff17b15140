package api

import (
	"database/sql"

	"reportdesk/core/audit"
	"reportdesk/core/comments"
	"reportdesk/core/incidents"
	"reportdesk/core/notify"
	"reportdesk/core/rbac"
)

type ServerDeps struct {
	DB           *sql.DB
	Engine       *rbac.Engine
	IncidentsSvc *incidents.Service
	CommentsSvc  *comments.Service
	Audit        *audit.Dispatcher
	Notifier     notify.Notifier
}
