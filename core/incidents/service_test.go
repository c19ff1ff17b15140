package incidents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reportdesk/config"
	"reportdesk/core/audit"
	"reportdesk/core/fieldcrypt"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

const testMasterKey = "5e0c7d1a9b2f4c6e8a0b3d5f7c9e1a2b4c6d8e0f"

type memorySink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *memorySink) Record(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

func (s *memorySink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	svc       *Service
	engine    *rbac.Engine
	incidents store.IncidentsStore
	events    store.EventsStore
	tags      store.TagsStore
	comments  store.CommentsStore
	sink      *memorySink
	eventID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "incidents.db")}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	roles := store.NewRolesStore(db)
	if err := rbac.EnsureBuiltIn(ctx, roles); err != nil {
		t.Fatalf("roles: %v", err)
	}
	codec, err := fieldcrypt.New(testMasterKey, "prod", logger)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	f := &fixture{
		incidents: store.NewIncidentsStore(db),
		events:    store.NewEventsStore(db),
		tags:      store.NewTagsStore(db),
		comments:  store.NewCommentsStore(db),
		sink:      &memorySink{},
	}
	f.engine = rbac.NewEngine(roles, store.NewRoleAssignmentsStore(db), f.events, audit.Nop{}, logger)
	f.svc = NewService(Deps{
		Incidents:  f.incidents,
		Tags:       f.tags,
		Files:      store.NewFilesStore(db),
		Events:     f.events,
		Authorizer: f.engine,
		Codec:      codec,
		Audit:      f.sink,
		Logger:     logger,
	})
	f.eventID = f.newEvent(t)
	f.grant(t, "admin", rbac.RoleEventAdmin, f.eventID)
	f.grant(t, "resp", rbac.RoleResponder, f.eventID)
	f.grant(t, "resp2", rbac.RoleResponder, f.eventID)
	f.grant(t, "rep", rbac.RoleReporter, f.eventID)
	f.grant(t, "rep2", rbac.RoleReporter, f.eventID)
	return f
}

func (f *fixture) newEvent(t *testing.T) string {
	t.Helper()
	ev := &store.Event{Name: "Conf"}
	if _, err := f.events.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("event: %v", err)
	}
	return ev.ID
}

func (f *fixture) grant(t *testing.T, userID string, role rbac.RoleName, eventID string) {
	t.Helper()
	if !f.engine.GrantRole(context.Background(), userID, role, rbac.ScopeEvent, eventID, "setup") {
		t.Fatalf("grant %s to %s failed", role, userID)
	}
}

func (f *fixture) expectState(t *testing.T, incidentID string, want State) {
	t.Helper()
	rec, err := f.incidents.GetIncident(context.Background(), incidentID)
	if err != nil || rec == nil {
		t.Fatalf("reload %s: %v", incidentID, err)
	}
	if State(rec.State) != want {
		t.Fatalf("stored state %s, want %s", rec.State, want)
	}
}

func (f *fixture) report(t *testing.T, reporter string) *Incident {
	t.Helper()
	inc, err := f.svc.CreateIncident(context.Background(), CreateInput{
		EventID:     f.eventID,
		ReporterID:  reporter,
		Title:       "Something happened here",
		Description: "detailed account of what happened",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return inc
}

func strPtr(s string) *string { return &s }

func TestCreateIncidentEncryptsAndDefaults(t *testing.T) {
	f := newFixture(t)
	inc := f.report(t, "rep")
	if inc.State != StateSubmitted {
		t.Fatalf("expected submitted, got %s", inc.State)
	}
	if inc.Severity == nil || *inc.Severity != "low" {
		t.Fatalf("expected default severity low, got %v", inc.Severity)
	}
	if inc.Description != "detailed account of what happened" {
		t.Fatalf("description not decrypted: %q", inc.Description)
	}
	raw, err := f.incidents.GetIncident(context.Background(), inc.ID)
	if err != nil || raw == nil {
		t.Fatalf("raw: %v %v", raw, err)
	}
	if strings.Count(raw.Description, ":") != 3 || !fieldcrypt.IsEncrypted(raw.Description) {
		t.Fatalf("description stored in clear: %q", raw.Description)
	}
	if got := f.sink.actions(); len(got) != 1 || got[0] != AuditIncidentCreate {
		t.Fatalf("unexpected audit: %v", got)
	}
}

func TestCreateIncidentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []CreateInput{
		{EventID: f.eventID, Title: "short", Description: "d"},
		{EventID: f.eventID, Title: strings.Repeat("t", 71), Description: "d"},
		{EventID: f.eventID, Title: "Something happened here", Description: "   "},
		{EventID: f.eventID, Title: "Something happened here", Description: "d", Urgency: strPtr("extreme")},
		{EventID: f.eventID, Title: "Something happened here", Description: "d", Location: strPtr(strings.Repeat("l", 201))},
		{EventID: f.eventID, Title: "Something happened here", Description: "d", Parties: strPtr(strings.Repeat("p", 501))},
	}
	for i, in := range cases {
		if _, err := f.svc.CreateIncident(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
	future := time.Now().Add(72 * time.Hour)
	_, err := f.svc.CreateIncident(ctx, CreateInput{EventID: f.eventID, Title: "Something happened here", Description: "d", IncidentAt: &future})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected future date rejection, got %v", err)
	}
	_, err = f.svc.CreateIncident(ctx, CreateInput{EventID: "missing", Title: "Something happened here", Description: "d"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found event, got %v", err)
	}
}

func TestCreateIncidentRejectsForeignTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.newEvent(t)
	foreign := &store.Tag{EventID: other, Name: "harassment"}
	if _, err := f.tags.CreateTag(ctx, foreign); err != nil {
		t.Fatalf("tag: %v", err)
	}
	_, err := f.svc.CreateIncident(ctx, CreateInput{
		EventID: f.eventID, ReporterID: "rep", Title: "Something happened here", Description: "d",
		TagIDs: []string{foreign.ID},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	list, err := f.incidents.ListIncidents(ctx, store.IncidentFilter{EventID: f.eventID})
	if err != nil || len(list) != 0 {
		t.Fatalf("incident should not be stored: %d %v", len(list), err)
	}

	own := &store.Tag{EventID: f.eventID, Name: "venue"}
	if _, err := f.tags.CreateTag(ctx, own); err != nil {
		t.Fatalf("tag: %v", err)
	}
	inc := f.report(t, "rep")
	if _, err := f.svc.UpdateIncidentTags(ctx, f.eventID, inc.ID, "resp", []string{own.ID, foreign.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input on update, got %v", err)
	}
	got, err := f.svc.UpdateIncidentTags(ctx, f.eventID, inc.ID, "resp", []string{own.ID})
	if err != nil || len(got.Tags) != 1 || got.Tags[0].ID != own.ID {
		t.Fatalf("tags update: %+v %v", got, err)
	}
}

func TestStateTransitionsEnforceRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")

	in := StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "rep", State: "acknowledged"}
	if _, err := f.svc.UpdateIncidentState(ctx, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reporter should be refused, got %v", err)
	}
	in.UserID = "resp"
	in.State = "investigating"
	if _, err := f.svc.UpdateIncidentState(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing notes should fail, got %v", err)
	}
	in.Notes = "looking into it"
	if _, err := f.svc.UpdateIncidentState(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing assignee should fail, got %v", err)
	}
	in.AssignedToUserID = "rep2"
	if _, err := f.svc.UpdateIncidentState(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("reporter assignee should fail, got %v", err)
	}
	f.expectState(t, inc.ID, StateSubmitted)
	in.AssignedToUserID = "resp2"
	ch, err := f.svc.UpdateIncidentState(ctx, in)
	if err != nil {
		t.Fatalf("investigating: %v", err)
	}
	if ch.OldState != StateSubmitted || ch.NewState != StateInvestigating || ch.NewAssignee != "resp2" {
		t.Fatalf("unexpected change: %+v", ch)
	}
	comments, err := f.comments.ListComments(ctx, inc.ID, true)
	if err != nil || len(comments) != 1 {
		t.Fatalf("expected one internal notes comment: %d %v", len(comments), err)
	}
	if comments[0].Visibility != "internal" || !comments[0].IsMarkdown {
		t.Fatalf("unexpected notes comment: %+v", comments[0])
	}
	if !fieldcrypt.IsEncrypted(comments[0].Body) {
		t.Fatalf("notes comment stored in clear")
	}
	if body := f.svc.Codec().DecryptField(comments[0].Body); body != "looking into it" {
		t.Fatalf("notes comment body: %q", body)
	}

	for _, notes := range []string{"", "   ", "\t\n"} {
		_, err := f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "resp", State: "resolved", Notes: notes})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("resolved with notes %q should fail, got %v", notes, err)
		}
	}
	f.expectState(t, inc.ID, StateInvestigating)

	ch, err = f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "resp", State: "resolved", Notes: "handled"})
	if err != nil {
		t.Fatalf("resolved: %v", err)
	}
	if ch.Incident.Resolution == nil || *ch.Incident.Resolution != "handled" {
		t.Fatalf("resolution not recorded: %v", ch.Incident.Resolution)
	}
	comments, err = f.comments.ListComments(ctx, inc.ID, true)
	if err != nil || len(comments) != 2 {
		t.Fatalf("expected two internal notes comments: %d %v", len(comments), err)
	}
	found := false
	for _, c := range comments {
		if c.Visibility == "internal" && f.svc.Codec().DecryptField(c.Body) == "handled" {
			found = true
		}
	}
	if !found {
		t.Fatalf("resolution notes comment missing")
	}
	if _, err := f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "resp", State: "closed"}); err != nil {
		t.Fatalf("closed: %v", err)
	}
	for _, target := range []string{"submitted", "acknowledged", "investigating", "resolved"} {
		_, err := f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "admin", State: target, Notes: "n", AssignedToUserID: "resp"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("closed -> %s should fail, got %v", target, err)
		}
	}
	if got := f.svc.TransitionsSnapshot(); got["submitted->investigating"] != 1 || got["resolved->closed"] != 1 {
		t.Fatalf("transition counters: %v", got)
	}
}

func TestBackwardTransitionsAreRejected(t *testing.T) {
	order := []State{StateSubmitted, StateAcknowledged, StateInvestigating, StateResolved, StateClosed}
	for i, from := range order {
		for _, to := range order[:i+1] {
			if CanTransition(from, to) {
				t.Fatalf("%s -> %s must not be allowed", from, to)
			}
		}
	}

	f := newFixture(t)
	ctx := context.Background()
	for i, from := range order[1:4] {
		inc := f.report(t, "rep")
		if _, err := f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "admin", State: string(from), Notes: "moving on", AssignedToUserID: "resp"}); err != nil {
			t.Fatalf("submitted -> %s: %v", from, err)
		}
		for _, to := range order[:i+2] {
			_, err := f.svc.UpdateIncidentState(ctx, StateInput{EventID: f.eventID, IncidentID: inc.ID, UserID: "admin", State: string(to), Notes: "again", AssignedToUserID: "resp"})
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("%s -> %s should fail, got %v", from, to, err)
			}
			f.expectState(t, inc.ID, from)
		}
	}
}

func TestIncidentOfOtherEventIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")
	other := f.newEvent(t)
	f.grant(t, "admin", rbac.RoleEventAdmin, other)
	if _, err := f.svc.UpdateIncidentTitle(ctx, other, inc.ID, "admin", "Another long title"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.GetIncident(ctx, other, inc.ID, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFieldLevelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")

	if _, err := f.svc.UpdateIncidentTitle(ctx, f.eventID, inc.ID, "resp", "Responder rewrote this"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("responder title edit should be refused, got %v", err)
	}
	if _, err := f.svc.UpdateIncidentTitle(ctx, f.eventID, inc.ID, "rep2", "Other reporter rewrote"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other reporter title edit should be refused, got %v", err)
	}
	got, err := f.svc.UpdateIncidentTitle(ctx, f.eventID, inc.ID, "rep", "Reporter clarified title")
	if err != nil || got.Title != "Reporter clarified title" {
		t.Fatalf("reporter title edit: %v %v", got, err)
	}
	if _, err := f.svc.UpdateIncidentDescription(ctx, f.eventID, inc.ID, "resp", "rewritten"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("responder description edit should be refused, got %v", err)
	}
	if _, err := f.svc.UpdateIncidentSeverity(ctx, f.eventID, inc.ID, "rep", "high"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reporter severity edit should be refused, got %v", err)
	}
	got, err = f.svc.UpdateIncidentSeverity(ctx, f.eventID, inc.ID, "resp", "HIGH")
	if err != nil || got.Severity == nil || *got.Severity != "high" {
		t.Fatalf("responder severity edit: %v %v", got, err)
	}
	got, err = f.svc.UpdateIncidentLocation(ctx, f.eventID, inc.ID, "resp", strPtr("Hall B"))
	if err != nil || got.Location == nil || *got.Location != "Hall B" {
		t.Fatalf("location edit: %v %v", got, err)
	}
	raw, _ := f.incidents.GetIncident(ctx, inc.ID)
	if raw.Location == nil || !fieldcrypt.IsEncrypted(*raw.Location) {
		t.Fatalf("location stored in clear: %v", raw.Location)
	}
	if _, err := f.svc.UpdateIncidentParties(ctx, f.eventID, inc.ID, "rep", strPtr(strings.Repeat("p", 1001))); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("long parties should fail, got %v", err)
	}
	got, err = f.svc.UpdateIncidentParties(ctx, f.eventID, inc.ID, "rep", strPtr(strings.Repeat("p", 800)))
	if err != nil || got.Parties == nil {
		t.Fatalf("parties within update limit: %v %v", got, err)
	}
	got, err = f.svc.UpdateIncidentLocation(ctx, f.eventID, inc.ID, "rep", nil)
	if err != nil || got.Location != nil {
		t.Fatalf("clear location: %v %v", got, err)
	}
}

func TestAssignIncident(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")
	if _, err := f.svc.AssignIncident(ctx, f.eventID, inc.ID, "rep", strPtr("resp")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reporter assign should be refused, got %v", err)
	}
	if _, err := f.svc.AssignIncident(ctx, f.eventID, inc.ID, "admin", strPtr("rep2")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("reporter assignee should fail, got %v", err)
	}
	ch, err := f.svc.AssignIncident(ctx, f.eventID, inc.ID, "admin", strPtr("resp"))
	if err != nil || ch.NewAssignee != "resp" || !ch.Incident.AssignedTo("resp") {
		t.Fatalf("assign: %+v %v", ch, err)
	}
	ch, err = f.svc.AssignIncident(ctx, f.eventID, inc.ID, "admin", nil)
	if err != nil || ch.OldAssignee != "resp" || ch.Incident.AssignedResponderID != nil {
		t.Fatalf("unassign: %+v %v", ch, err)
	}
}

func TestVisibilityProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")

	v, err := f.svc.GetIncident(ctx, f.eventID, inc.ID, "rep")
	if err != nil || v.IsMinimal() {
		t.Fatalf("own reporter should get full view: %v %v", v, err)
	}
	v, err = f.svc.GetIncident(ctx, f.eventID, inc.ID, "rep2")
	if err != nil || !v.IsMinimal() {
		t.Fatalf("other reporter should get minimal view: %+v %v", v, err)
	}
	v, err = f.svc.GetIncident(ctx, f.eventID, inc.ID, "resp")
	if err != nil || v.IsMinimal() || v.Full.Description != inc.Description {
		t.Fatalf("responder should get full view: %+v %v", v, err)
	}
	if _, err := f.svc.GetIncident(ctx, f.eventID, inc.ID, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger should be refused, got %v", err)
	}

	d := Detail{Incident: inc, CommentCount: 2}
	if view := FilterIncidentFields(d, nil, false, "rep"); !view.IsMinimal() {
		t.Fatalf("non reporter flag should yield minimal view")
	}
	if view := FilterIncidentFields(d, []rbac.RoleName{rbac.RoleReporter}, true, "rep2"); !view.IsMinimal() {
		t.Fatalf("reporter of another incident should yield minimal view")
	}
	view := FilterIncidentFields(d, []rbac.RoleName{rbac.RoleReporter}, true, "rep")
	if view.IsMinimal() || view.Full.CommentCount != 2 {
		t.Fatalf("owner should yield full view: %+v", view)
	}
	for _, roles := range [][]rbac.RoleName{{rbac.RoleResponder}, {rbac.RoleEventAdmin}, {rbac.RoleSystemAdmin}} {
		if FilterIncidentFields(d, roles, false, "x").IsMinimal() {
			t.Fatalf("%v should yield full view", roles)
		}
	}
	body, err := FilterIncidentFields(d, nil, false, "x").MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, hidden := range []string{"description", "parties", "location", "reporterId", "resolution"} {
		if strings.Contains(string(body), `"`+hidden+`"`) {
			t.Fatalf("minimal view leaks %s: %s", hidden, body)
		}
	}
}

func TestListEventIncidentsScopesReporters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.report(t, "rep")
	f.report(t, "rep2")
	staff, err := f.svc.ListEventIncidents(ctx, f.eventID, "resp", ListFilter{})
	if err != nil || len(staff) != 2 {
		t.Fatalf("staff list: %d %v", len(staff), err)
	}
	own, err := f.svc.ListEventIncidents(ctx, f.eventID, "rep", ListFilter{})
	if err != nil || len(own) != 1 || own[0].IsMinimal() {
		t.Fatalf("reporter list: %d %v", len(own), err)
	}
	if _, err := f.svc.ListEventIncidents(ctx, f.eventID, "stranger", ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger list should be refused, got %v", err)
	}
	if _, err := f.svc.ListEventIncidents(ctx, f.eventID, "resp", ListFilter{State: "bogus"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad state filter should fail, got %v", err)
	}
}

func TestBulkUpdateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.report(t, "rep")
	b := f.report(t, "rep")

	if _, err := f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "resp", IncidentIDs: []string{a.ID}, Action: "status", Status: "closed"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("responder bulk should be refused, got %v", err)
	}
	res, err := f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID, "missing"}, Action: "status", Status: "closed"})
	if err != nil || res.Updated != 0 || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "missing") {
		t.Fatalf("expected collected error: %+v %v", res, err)
	}
	rec, _ := f.incidents.GetIncident(ctx, a.ID)
	if rec.State != string(StateSubmitted) {
		t.Fatalf("partial bulk applied: %s", rec.State)
	}
	res, err = f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID, b.ID}, Action: "assign", AssignedTo: "rep2"})
	if err != nil || res.Updated != 0 || len(res.Errors) == 0 {
		t.Fatalf("reporter assignee should be collected: %+v %v", res, err)
	}
	res, err = f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID, b.ID}, Action: "assign", AssignedTo: "resp"})
	if err != nil || res.Updated != 2 || len(res.Errors) != 0 {
		t.Fatalf("assign: %+v %v", res, err)
	}
	res, err = f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID, b.ID}, Action: "delete"})
	if err != nil || res.Updated != 2 {
		t.Fatalf("delete: %+v %v", res, err)
	}
	if rec, _ := f.incidents.GetIncident(ctx, a.ID); rec != nil {
		t.Fatalf("incident not deleted")
	}
	res, err = f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{"x"}, Action: "archive"})
	if err != nil || res.Updated != 0 || len(res.Errors) != 2 {
		t.Fatalf("unknown action and id should both be collected: %+v %v", res, err)
	}
}

func TestBulkStatusFollowsTransitionGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.report(t, "rep")
	b := f.report(t, "rep")

	res, err := f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID}, Action: "status", Status: "closed"})
	if err != nil || res.Updated != 1 {
		t.Fatalf("close: %+v %v", res, err)
	}
	res, err = f.svc.BulkUpdateIncidents(ctx, BulkInput{EventID: f.eventID, UserID: "admin", IncidentIDs: []string{a.ID, b.ID}, Action: "status", Status: "acknowledged"})
	if err != nil || res.Updated != 0 || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], a.ID) {
		t.Fatalf("closed incident must block the batch: %+v %v", res, err)
	}
	f.expectState(t, a.ID, StateClosed)
	f.expectState(t, b.ID, StateSubmitted)
}

func TestRelatedFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inc := f.report(t, "rep")
	file, err := f.svc.AddRelatedFile(ctx, f.eventID, inc.ID, "rep", FileInput{Filename: "photo.png", MimeType: "image/png", Data: []byte{1, 2, 3}})
	if err != nil || file.Size != 3 {
		t.Fatalf("add: %+v %v", file, err)
	}
	if _, err := f.svc.AddRelatedFile(ctx, f.eventID, inc.ID, "rep2", FileInput{Filename: "x.txt", MimeType: "text/plain", Data: []byte("x")}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other reporter upload should be refused, got %v", err)
	}
	list, err := f.svc.ListRelatedFiles(ctx, f.eventID, inc.ID, "resp")
	if err != nil || len(list) != 1 || list[0].Data != nil {
		t.Fatalf("list: %+v %v", list, err)
	}
	got, err := f.svc.GetRelatedFile(ctx, f.eventID, inc.ID, file.ID, "resp")
	if err != nil || string(got.Data) != string([]byte{1, 2, 3}) {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := f.svc.DeleteRelatedFile(ctx, f.eventID, inc.ID, file.ID, "resp"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("responder delete should be refused, got %v", err)
	}
	if err := f.svc.DeleteRelatedFile(ctx, f.eventID, inc.ID, file.ID, "rep"); err != nil {
		t.Fatalf("uploader delete: %v", err)
	}
	if _, err := f.svc.GetRelatedFile(ctx, f.eventID, inc.ID, file.ID, "rep"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
