package incidents

import (
	"encoding/json"
	"strings"
	"time"

	"reportdesk/core/notify"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

type State string

const (
	StateSubmitted     State = "submitted"
	StateAcknowledged  State = "acknowledged"
	StateInvestigating State = "investigating"
	StateResolved      State = "resolved"
	StateClosed        State = "closed"
)

func ParseState(raw string) (State, bool) {
	switch st := State(strings.ToLower(strings.TrimSpace(raw))); st {
	case StateSubmitted, StateAcknowledged, StateInvestigating, StateResolved, StateClosed:
		return st, true
	}
	return "", false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(raw string) (Severity, bool) {
	switch sv := Severity(strings.ToLower(strings.TrimSpace(raw))); sv {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sv, true
	}
	return "", false
}

// Incident is the decrypted incident record.
type Incident struct {
	ID                  string      `json:"id"`
	EventID             string      `json:"eventId"`
	ReporterID          *string     `json:"reporterId"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	State               State       `json:"state"`
	Severity            *string     `json:"severity"`
	Resolution          *string     `json:"resolution"`
	IncidentAt          *time.Time  `json:"incidentAt"`
	Parties             *string     `json:"parties"`
	Location            *string     `json:"location"`
	AssignedResponderID *string     `json:"assignedResponderId"`
	Tags                []store.Tag `json:"tags"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}

func (i *Incident) ReportedBy(userID string) bool {
	return i != nil && userID != "" && i.ReporterID != nil && *i.ReporterID == userID
}

func (i *Incident) AssignedTo(userID string) bool {
	return i != nil && userID != "" && i.AssignedResponderID != nil && *i.AssignedResponderID == userID
}

type EventSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Detail is an incident plus the context a viewer projection needs.
type Detail struct {
	Incident     *Incident
	Event        *EventSummary
	CommentCount int
}

type FileInput struct {
	Filename string `json:"filename" validate:"required,max=255"`
	MimeType string `json:"mimetype" validate:"required,max=255"`
	Data     []byte `json:"-"`
}

type CreateInput struct {
	EventID     string      `json:"eventId" validate:"required"`
	ReporterID  string      `json:"-"`
	Title       string      `json:"title" validate:"required,min=10,max=70"`
	Description string      `json:"description" validate:"required"`
	Urgency     *string     `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	IncidentAt  *time.Time  `json:"incidentAt"`
	Parties     *string     `json:"parties" validate:"omitempty,max=500"`
	Location    *string     `json:"location" validate:"omitempty,max=200"`
	TagIDs      []string    `json:"tagIds"`
	Files       []FileInput `json:"-" validate:"dive"`
}

type StateInput struct {
	EventID          string `json:"-"`
	IncidentID       string `json:"-"`
	UserID           string `json:"-"`
	State            string `json:"state"`
	Notes            string `json:"notes"`
	AssignedToUserID string `json:"assignedToUserId"`
}

// Change is the post-mutation context of a state or assignment change.
type Change struct {
	Incident    *Incident `json:"incident"`
	OldState    State     `json:"oldState"`
	NewState    State     `json:"newState"`
	OldAssignee string    `json:"oldAssignee,omitempty"`
	NewAssignee string    `json:"newAssignee,omitempty"`
}

func (c *Change) Notification() notify.StateChange {
	n := notify.StateChange{
		OldState:    string(c.OldState),
		NewState:    string(c.NewState),
		OldAssignee: c.OldAssignee,
		NewAssignee: c.NewAssignee,
	}
	if c.Incident != nil {
		n.IncidentID = c.Incident.ID
		n.EventID = c.Incident.EventID
	}
	return n
}

type Access struct {
	HasAccess  bool            `json:"hasAccess"`
	IsReporter bool            `json:"isReporter"`
	IsAssignee bool            `json:"isAssignee"`
	Roles      []rbac.RoleName `json:"roles"`
	Incident   *Incident       `json:"-"`
}

type EditAccess struct {
	CanEdit    bool            `json:"canEdit"`
	IsReporter bool            `json:"isReporter"`
	Roles      []rbac.RoleName `json:"roles"`
}

type BulkInput struct {
	EventID     string   `json:"-"`
	UserID      string   `json:"-"`
	IncidentIDs []string `json:"incidentIds"`
	Action      string   `json:"action"`
	AssignedTo  string   `json:"assignedTo"`
	Status      string   `json:"status"`
}

type BulkResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

type ListFilter struct {
	State  string
	Limit  int
	Offset int
}

// MinimalIncident is the allow-list projection shown to viewers who may not
// see sensitive fields.
type MinimalIncident struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	State        State           `json:"state"`
	Severity     *string         `json:"severity"`
	IncidentAt   *time.Time      `json:"incidentAt"`
	CreatedAt    time.Time       `json:"createdAt"`
	EventID      string          `json:"eventId"`
	Event        *EventSummary   `json:"event,omitempty"`
	Tags         []store.Tag     `json:"tags"`
	UserRoles    []rbac.RoleName `json:"userRoles"`
	CommentCount int             `json:"commentCount"`
}

type FullIncident struct {
	Incident
	Event        *EventSummary   `json:"event,omitempty"`
	UserRoles    []rbac.RoleName `json:"userRoles"`
	CommentCount int             `json:"commentCount"`
}

// View is exactly one of Full or Minimal.
type View struct {
	Full    *FullIncident
	Minimal *MinimalIncident
}

func (v View) IsMinimal() bool { return v.Full == nil }

func (v View) MarshalJSON() ([]byte, error) {
	if v.Full != nil {
		return json.Marshal(v.Full)
	}
	return json.Marshal(v.Minimal)
}
