package comments

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"reportdesk/config"
	"reportdesk/core/audit"
	"reportdesk/core/fieldcrypt"
	"reportdesk/core/incidents"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

type fixture struct {
	svc        *Service
	incidents  *incidents.Service
	incStore   store.IncidentsStore
	comments   store.CommentsStore
	eventID    string
	incidentID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "comments.db")}
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
	codec, err := fieldcrypt.New("3f8a2c9d1e7b4a6c0d5e9f2a8b1c7d3e6f0a4b9c", "prod", logger)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	events := store.NewEventsStore(db)
	engine := rbac.NewEngine(roles, store.NewRoleAssignmentsStore(db), events, audit.Nop{}, logger)
	f := &fixture{
		incStore: store.NewIncidentsStore(db),
		comments: store.NewCommentsStore(db),
	}
	f.incidents = incidents.NewService(incidents.Deps{
		Incidents:  f.incStore,
		Tags:       store.NewTagsStore(db),
		Files:      store.NewFilesStore(db),
		Events:     events,
		Authorizer: engine,
		Codec:      codec,
		Logger:     logger,
	})
	f.svc = NewService(f.comments, f.incidents, codec, nil, logger)

	ev := &store.Event{Name: "Conf"}
	if _, err := events.CreateEvent(ctx, ev); err != nil {
		t.Fatalf("event: %v", err)
	}
	f.eventID = ev.ID
	for user, role := range map[string]rbac.RoleName{"resp": rbac.RoleResponder, "rep": rbac.RoleReporter, "rep2": rbac.RoleReporter} {
		if !engine.GrantRole(ctx, user, role, rbac.ScopeEvent, ev.ID, "setup") {
			t.Fatalf("grant %s", user)
		}
	}
	inc, err := f.incidents.CreateIncident(ctx, incidents.CreateInput{
		EventID: ev.ID, ReporterID: "rep", Title: "Something happened here", Description: "detailed text",
	})
	if err != nil {
		t.Fatalf("incident: %v", err)
	}
	f.incidentID = inc.ID
	return f
}

func (f *fixture) comment(t *testing.T, author, body, visibility string) *Comment {
	t.Helper()
	c, err := f.svc.CreateComment(context.Background(), CreateInput{
		EventID: f.eventID, IncidentID: f.incidentID, AuthorID: author, Body: body, Visibility: visibility,
	})
	if err != nil {
		t.Fatalf("comment by %s: %v", author, err)
	}
	return c
}

func TestCreateCommentEncryptsBody(t *testing.T) {
	f := newFixture(t)
	c := f.comment(t, "rep", "I was near the stage", "")
	if c.Visibility != VisibilityPublic || c.Body != "I was near the stage" {
		t.Fatalf("unexpected comment: %+v", c)
	}
	raw, err := f.comments.GetComment(context.Background(), c.ID)
	if err != nil || raw == nil {
		t.Fatalf("raw: %v %v", raw, err)
	}
	if !fieldcrypt.IsEncrypted(raw.Body) {
		t.Fatalf("body stored in clear: %q", raw.Body)
	}
}

func TestCreateCommentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: f.incidentID, AuthorID: "rep", Body: "secret", Visibility: "internal"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reporter internal comment should be refused, got %v", err)
	}
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: f.incidentID, AuthorID: "rep2", Body: "hi"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other reporter should be refused, got %v", err)
	}
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: f.incidentID, AuthorID: "resp", Body: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty body should fail, got %v", err)
	}
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: f.incidentID, AuthorID: "resp", Body: "x", Visibility: "private"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad visibility should fail, got %v", err)
	}
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: "missing", AuthorID: "resp", Body: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing incident should be not found, got %v", err)
	}
}

func TestListCommentsVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.comment(t, "rep", "public note", "public")
	internal := f.comment(t, "resp", "internal note", "internal")

	staff, err := f.svc.ListComments(ctx, f.eventID, f.incidentID, "resp")
	if err != nil || len(staff) != 2 {
		t.Fatalf("staff list: %d %v", len(staff), err)
	}
	own, err := f.svc.ListComments(ctx, f.eventID, f.incidentID, "rep")
	if err != nil || len(own) != 1 || own[0].Visibility != VisibilityPublic {
		t.Fatalf("reporter list: %+v %v", own, err)
	}
	if _, err := f.svc.GetComment(ctx, f.eventID, f.incidentID, internal.ID, "rep"); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("reporter should not get internal comment, got %v", err)
	}

	// The reporter is also the assigned responder.
	if _, err := f.incStore.UpdateIncidentField(ctx, f.incidentID, store.FieldAssignee, "rep"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	dual, err := f.svc.ListComments(ctx, f.eventID, f.incidentID, "rep")
	if err != nil || len(dual) != 2 {
		t.Fatalf("reporter-assignee list: %d %v", len(dual), err)
	}
	if _, err := f.svc.GetComment(ctx, f.eventID, f.incidentID, internal.ID, "rep"); err != nil {
		t.Fatalf("reporter-assignee get internal: %v", err)
	}
	if _, err := f.svc.CreateComment(ctx, CreateInput{EventID: f.eventID, IncidentID: f.incidentID, AuthorID: "rep", Body: "assignee note", Visibility: "internal"}); err != nil {
		t.Fatalf("reporter-assignee internal comment: %v", err)
	}
}

func TestUpdateAndDeleteAreAuthorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.comment(t, "rep", "meet at the blue tent", "")

	in := UpdateInput{EventID: f.eventID, IncidentID: f.incidentID, CommentID: c.ID, Body: "meet at the red tent"}
	if _, err := f.svc.UpdateComment(ctx, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("update without user should be refused, got %v", err)
	}
	in.UserID = "resp"
	if _, err := f.svc.UpdateComment(ctx, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-author update should be refused, got %v", err)
	}
	in.UserID = "rep"
	got, err := f.svc.UpdateComment(ctx, in)
	if err != nil || got.Body != "meet at the red tent" {
		t.Fatalf("author update: %+v %v", got, err)
	}
	if hits, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "rep", "blue"); err != nil || len(hits) != 0 {
		t.Fatalf("old words should leave the index: %d %v", len(hits), err)
	}
	if hits, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "rep", "RED tent"); err != nil || len(hits) != 1 {
		t.Fatalf("new words should be indexed: %d %v", len(hits), err)
	}

	if err := f.svc.DeleteComment(ctx, f.eventID, f.incidentID, c.ID, "resp"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-author delete should be refused, got %v", err)
	}
	if err := f.svc.DeleteComment(ctx, f.eventID, f.incidentID, c.ID, "rep"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if err := f.svc.DeleteComment(ctx, f.eventID, f.incidentID, c.ID, "rep"); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestSearchCommentsRespectsVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.comment(t, "rep", "It happened near hall B", "")
	f.comment(t, "resp", "Witness in hall C confirmed", "internal")

	staff, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "resp", "hall")
	if err != nil || len(staff) != 2 {
		t.Fatalf("staff search: %d %v", len(staff), err)
	}
	own, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "rep", "hall")
	if err != nil || len(own) != 1 || own[0].Body != "It happened near hall B" {
		t.Fatalf("reporter search: %+v %v", own, err)
	}
	if hits, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "resp", "hal"); err != nil || len(hits) != 0 {
		t.Fatalf("partial words should not match: %d %v", len(hits), err)
	}
	if _, err := f.svc.SearchComments(ctx, f.eventID, f.incidentID, "resp", "a ."); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty query should fail, got %v", err)
	}
}
