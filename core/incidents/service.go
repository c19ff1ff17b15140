package incidents

import (
	"context"
	"strings"
	"sync"
	"time"

	"reportdesk/core/audit"
	"reportdesk/core/fieldcrypt"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

// Authorizer is the part of the authorization engine incidents rely on.
type Authorizer interface {
	HasEventRole(ctx context.Context, userID, eventID string, names ...rbac.RoleName) bool
	EffectiveEventRoles(ctx context.Context, userID, eventID string) []rbac.RoleName
}

type Deps struct {
	Incidents  store.IncidentsStore
	Tags       store.TagsStore
	Files      store.FilesStore
	Events     store.EventsStore
	Authorizer Authorizer
	Policy     *rbac.Policy
	Codec      *fieldcrypt.Codec
	Audit      audit.Sink
	Logger     *utils.Logger
}

type Service struct {
	incidents store.IncidentsStore
	tags      store.TagsStore
	files     store.FilesStore
	events    store.EventsStore
	authz     Authorizer
	policy    *rbac.Policy
	codec     *fieldcrypt.Codec
	audit     audit.Sink
	logger    *utils.Logger
	now       func() time.Time

	mu          sync.Mutex
	transitions map[string]int64
}

func NewService(d Deps) *Service {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Policy == nil {
		d.Policy = rbac.MustDefaultPolicy()
	}
	return &Service{
		incidents:   d.Incidents,
		tags:        d.Tags,
		files:       d.Files,
		events:      d.Events,
		authz:       d.Authorizer,
		policy:      d.Policy,
		codec:       d.Codec,
		audit:       d.Audit,
		logger:      d.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		transitions: map[string]int64{},
	}
}

// Codec exposes the field codec to sibling services sharing the same key.
func (s *Service) Codec() *fieldcrypt.Codec {
	return s.codec
}

// TransitionsSnapshot returns applied state transitions keyed "from->to".
func (s *Service) TransitionsSnapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.transitions))
	for k, v := range s.transitions {
		out[k] = v
	}
	return out
}

func (s *Service) countTransition(from, to State) {
	s.mu.Lock()
	s.transitions[string(from)+"->"+string(to)]++
	s.mu.Unlock()
}

// loadIncident returns the stored incident when it belongs to eventID. An
// empty eventID skips the scope check. Incidents of other events are
// reported as not found.
func (s *Service) loadIncident(ctx context.Context, eventID, incidentID string) (*store.Incident, error) {
	if strings.TrimSpace(incidentID) == "" {
		return nil, ErrNotFound
	}
	rec, err := s.incidents.GetIncident(ctx, incidentID)
	if err != nil {
		s.logger.Errorf("incidents.load %s: %v", incidentID, err)
		return nil, err
	}
	if rec == nil || (eventID != "" && rec.EventID != eventID) {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *Service) decode(ctx context.Context, rec *store.Incident) (*Incident, error) {
	inc := &Incident{
		ID:                  rec.ID,
		EventID:             rec.EventID,
		ReporterID:          rec.ReporterID,
		Title:               rec.Title,
		Description:         s.codec.DecryptField(rec.Description),
		State:               State(rec.State),
		Severity:            rec.Severity,
		Resolution:          rec.Resolution,
		IncidentAt:          rec.IncidentAt,
		Parties:             s.codec.DecryptOptional(rec.Parties),
		Location:            s.codec.DecryptOptional(rec.Location),
		AssignedResponderID: rec.AssignedResponderID,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
	tags, err := s.incidents.ListIncidentTags(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	inc.Tags = tags
	if inc.Tags == nil {
		inc.Tags = []store.Tag{}
	}
	return inc, nil
}

func (s *Service) reload(ctx context.Context, incidentID string) (*Incident, error) {
	rec, err := s.loadIncident(ctx, "", incidentID)
	if err != nil {
		return nil, err
	}
	return s.decode(ctx, rec)
}

func (s *Service) record(ctx context.Context, action, incidentID, userID, eventID, details string) {
	s.audit.Record(ctx, audit.Entry{
		Action:     action,
		TargetType: "incident",
		TargetID:   incidentID,
		UserID:     userID,
		EventID:    eventID,
		Details:    details,
	})
}

// subjects resolves the policy subjects of userID for one incident.
func (s *Service) subjects(ctx context.Context, userID string, rec *store.Incident) ([]string, []rbac.RoleName, bool, bool) {
	roles := s.authz.EffectiveEventRoles(ctx, userID, rec.EventID)
	isReporter := userID != "" && rec.ReporterID != nil && *rec.ReporterID == userID
	isAssignee := userID != "" && rec.AssignedResponderID != nil && *rec.AssignedResponderID == userID
	return rbac.Subjects(roles, isReporter, isAssignee), roles, isReporter, isAssignee
}

func isStaff(roles []rbac.RoleName) bool {
	return rbac.AtLeast(roles, rbac.RoleResponder)
}
