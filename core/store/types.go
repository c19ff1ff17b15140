package store

import "time"

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID             string    `json:"id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	CreatedAt      time.Time `json:"created_at"`
}

type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ScopeType   string    `json:"scope_type"`
	Level       int       `json:"level"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoleAssignment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	RoleName  string    `json:"role"`
	RoleLevel int       `json:"level"`
	ScopeType string    `json:"scope_type"`
	ScopeID   string    `json:"scope_id"`
	GrantedBy *string   `json:"granted_by,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

type AssignmentFilter struct {
	UserID    string
	ScopeType string
	ScopeID   string
	RoleNames []string
}

type Incident struct {
	ID                  string     `json:"id"`
	EventID             string     `json:"event_id"`
	ReporterID          *string    `json:"reporter_id,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	State               string     `json:"state"`
	Severity            *string    `json:"severity,omitempty"`
	Resolution          *string    `json:"resolution,omitempty"`
	IncidentAt          *time.Time `json:"incident_at,omitempty"`
	Parties             *string    `json:"parties,omitempty"`
	Location            *string    `json:"location,omitempty"`
	AssignedResponderID *string    `json:"assigned_responder_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type IncidentFilter struct {
	EventID    string
	ReporterID string
	State      string
	Limit      int
	Offset     int
}

type Tag struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	AuthorID   *string   `json:"author_id,omitempty"`
	Body       string    `json:"body"`
	Visibility string    `json:"visibility"`
	IsMarkdown bool      `json:"is_markdown"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RelatedFile struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimetype"`
	Size       int64     `json:"size"`
	Data       []byte    `json:"-"`
	UploaderID *string   `json:"uploader_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	UserID     *string   `json:"user_id,omitempty"`
	EventID    *string   `json:"event_id,omitempty"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type DeadLetter struct {
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
