package notify

import (
	"context"

	"reportdesk/core/utils"
)

type Type string

const (
	IncidentSubmitted     Type = "incident_submitted"
	IncidentAssigned      Type = "incident_assigned"
	IncidentStatusChanged Type = "incident_status_changed"
	IncidentCommentAdded  Type = "incident_comment_added"
)

// Notifier fans out incident notifications. It is called by the HTTP layer
// after a mutation committed, never by the incident services.
type Notifier interface {
	NotifyIncidentEvent(ctx context.Context, incidentID string, typ Type, excludeUserID string) error
	NotifyReportEvent(ctx context.Context, eventID, incidentID string, typ Type, excludeUserID string) error
}

// StateChange is the post-mutation context of an incident state transition.
type StateChange struct {
	IncidentID  string
	EventID     string
	OldState    string
	NewState    string
	OldAssignee string
	NewAssignee string
}

// ForStateChange returns the notifications a transition should fire.
func ForStateChange(c StateChange) []Type {
	var out []Type
	if c.OldState != c.NewState {
		out = append(out, IncidentStatusChanged)
	}
	if c.NewAssignee != "" && c.NewAssignee != c.OldAssignee {
		out = append(out, IncidentAssigned)
	}
	return out
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyIncidentEvent(_ context.Context, incidentID string, typ Type, excludeUserID string) error {
	n.logger.Printf("notify %s incident=%s exclude=%s", typ, incidentID, excludeUserID)
	return nil
}

func (n *LogNotifier) NotifyReportEvent(_ context.Context, eventID, incidentID string, typ Type, excludeUserID string) error {
	n.logger.Printf("notify %s event=%s incident=%s exclude=%s", typ, eventID, incidentID, excludeUserID)
	return nil
}
