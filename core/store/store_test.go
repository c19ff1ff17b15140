package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reportdesk/config"
	"reportdesk/core/utils"
)

func mustTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "tmp.db")}
	logger := utils.NewLogger()
	db, err := NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustEvent(t *testing.T, db *sql.DB, orgID *string) *Event {
	t.Helper()
	ev := &Event{OrganizationID: orgID, Name: "Conf"}
	if _, err := NewEventsStore(db).CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func mustIncident(t *testing.T, db *sql.DB, eventID string) *Incident {
	t.Helper()
	inc := &Incident{EventID: eventID, Title: "Something happened here", Description: "x", State: "submitted"}
	if err := NewIncidentsStore(db).CreateIncident(context.Background(), inc, nil, nil); err != nil {
		t.Fatalf("create incident: %v", err)
	}
	return inc
}

func TestMigrationStatusAfterApply(t *testing.T) {
	db := mustTestDB(t)
	st, err := GetMigrationStatus(context.Background(), db)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Dialect != "sqlite3" || !st.HasGooseTable || st.HasPending || st.LatestVersion < 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRoleAssignmentUpsertIsIdempotent(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	roles := NewRolesStore(db)
	if err := roles.EnsureBuiltIn(ctx, []Role{{Name: "responder", ScopeType: "event", Level: 40}}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	role, err := roles.FindByName(ctx, "responder")
	if err != nil || role == nil {
		t.Fatalf("find role: %v %v", role, err)
	}
	s := NewRoleAssignmentsStore(db)
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	if err := s.Upsert(ctx, &RoleAssignment{UserID: "u1", RoleID: role.ID, ScopeType: "event", ScopeID: "e1", GrantedAt: first}); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := s.Upsert(ctx, &RoleAssignment{UserID: "u1", RoleID: role.ID, ScopeType: "event", ScopeID: "e1", GrantedAt: second}); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	list, err := s.List(ctx, AssignmentFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one assignment, got %d", len(list))
	}
	if !list[0].GrantedAt.Equal(second) {
		t.Fatalf("granted_at not refreshed: %v", list[0].GrantedAt)
	}
	if list[0].RoleName != "responder" || list[0].RoleLevel != 40 {
		t.Fatalf("unexpected join: %+v", list[0])
	}
}

func TestApplyStateChangeDetectsConflict(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	ev := mustEvent(t, db, nil)
	inc := mustIncident(t, db, ev.ID)
	s := NewIncidentsStore(db)

	notes := "triaged"
	err := s.ApplyStateChange(ctx, StateChange{
		IncidentID: inc.ID,
		FromState:  "submitted",
		ToState:    "resolved",
		Resolution: &notes,
		Audit:      []AuditRecord{{Action: "incident.state", TargetType: "incident", TargetID: inc.ID}},
		Comment:    &Comment{Body: notes, Visibility: "internal"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := s.GetIncident(ctx, inc.ID)
	if got.State != "resolved" || got.Resolution == nil || *got.Resolution != notes {
		t.Fatalf("unexpected incident: %+v", got)
	}
	if n, _ := s.CountComments(ctx, inc.ID); n != 1 {
		t.Fatalf("expected internal comment, got %d", n)
	}

	err = s.ApplyStateChange(ctx, StateChange{
		IncidentID: inc.ID,
		FromState:  "submitted",
		ToState:    "closed",
		Audit:      []AuditRecord{{Action: "incident.state", TargetType: "incident", TargetID: inc.ID}},
	})
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	logs, _ := NewAuditStore(db).List(ctx, AuditFilter{TargetID: inc.ID})
	if len(logs) != 1 {
		t.Fatalf("rolled back change left audit rows: %d", len(logs))
	}
}

func TestApplyBulkRechecksMembership(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	ev := mustEvent(t, db, nil)
	other := mustEvent(t, db, nil)
	a := mustIncident(t, db, ev.ID)
	b := mustIncident(t, db, other.ID)
	s := NewIncidentsStore(db)

	_, err := s.ApplyBulk(ctx, BulkOp{EventID: ev.ID, IncidentIDs: []string{a.ID, b.ID}, Action: BulkStatus, State: "closed"})
	if !errors.Is(err, ErrBulkMembership) {
		t.Fatalf("expected membership error, got %v", err)
	}
	got, _ := s.GetIncident(ctx, a.ID)
	if got.State != "submitted" {
		t.Fatalf("bulk partially applied: %s", got.State)
	}
	n, err := s.ApplyBulk(ctx, BulkOp{EventID: ev.ID, IncidentIDs: []string{a.ID}, Action: BulkDelete})
	if err != nil || n != 1 {
		t.Fatalf("delete: %d %v", n, err)
	}
	if got, _ := s.GetIncident(ctx, a.ID); got != nil {
		t.Fatalf("incident not deleted")
	}
}

func TestApplyBulkRechecksAssigneeRole(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	org := &Organization{Name: "Org"}
	if _, err := NewEventsStore(db).CreateOrganization(ctx, org); err != nil {
		t.Fatalf("org: %v", err)
	}
	ev := mustEvent(t, db, &org.ID)
	inc := mustIncident(t, db, ev.ID)
	roles := NewRolesStore(db)
	_ = roles.EnsureBuiltIn(ctx, []Role{{Name: "org_admin", ScopeType: "organization", Level: 80}})
	orgAdmin, _ := roles.FindByName(ctx, "org_admin")
	s := NewIncidentsStore(db)

	op := BulkOp{EventID: ev.ID, IncidentIDs: []string{inc.ID}, Action: BulkAssign, AssigneeID: "u9", AssigneeRoles: []string{"responder", "event_admin"}}
	if _, err := s.ApplyBulk(ctx, op); !errors.Is(err, ErrBulkAssignee) {
		t.Fatalf("expected assignee error, got %v", err)
	}
	if err := NewRoleAssignmentsStore(db).Upsert(ctx, &RoleAssignment{UserID: "u9", RoleID: orgAdmin.ID, ScopeType: "organization", ScopeID: org.ID}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if n, err := s.ApplyBulk(ctx, op); err != nil || n != 1 {
		t.Fatalf("assign via org admin: %d %v", n, err)
	}
}

func TestCommentSearchTokens(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	ev := mustEvent(t, db, nil)
	inc := mustIncident(t, db, ev.ID)
	s := NewCommentsStore(db)

	pub := &Comment{IncidentID: inc.ID, Body: "enc1", Visibility: "public"}
	internal := &Comment{IncidentID: inc.ID, Body: "enc2", Visibility: "internal"}
	if err := s.CreateComment(ctx, pub, []string{"h-red", "h-car"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateComment(ctx, internal, []string{"h-red"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := s.SearchComments(ctx, inc.ID, []string{"h-red"}, true)
	if err != nil || len(res) != 2 {
		t.Fatalf("search all: %d %v", len(res), err)
	}
	res, _ = s.SearchComments(ctx, inc.ID, []string{"h-red"}, false)
	if len(res) != 1 || res[0].ID != pub.ID {
		t.Fatalf("public search leaked internal: %+v", res)
	}
	res, _ = s.SearchComments(ctx, inc.ID, []string{"h-red", "h-car"}, true)
	if len(res) != 1 {
		t.Fatalf("conjunctive search: %d", len(res))
	}
	pub.Body = "enc3"
	if err := s.UpdateComment(ctx, pub, []string{"h-blue"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if res, _ = s.SearchComments(ctx, inc.ID, []string{"h-car"}, true); len(res) != 0 {
		t.Fatalf("stale tokens after update")
	}
}

func TestIncidentDeleteCascades(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	ev := mustEvent(t, db, nil)
	tag := &Tag{EventID: ev.ID, Name: "harassment"}
	if _, err := NewTagsStore(db).CreateTag(ctx, tag); err != nil {
		t.Fatalf("tag: %v", err)
	}
	inc := &Incident{EventID: ev.ID, Title: "Something happened here", Description: "x", State: "submitted"}
	files := []RelatedFile{{Filename: "a.txt", MimeType: "text/plain", Data: []byte("hello")}}
	s := NewIncidentsStore(db)
	if err := s.CreateIncident(ctx, inc, []string{tag.ID, tag.ID}, files); err != nil {
		t.Fatalf("create: %v", err)
	}
	tags, _ := s.ListIncidentTags(ctx, inc.ID)
	if len(tags) != 1 {
		t.Fatalf("expected deduped tag, got %d", len(tags))
	}
	fs := NewFilesStore(db)
	list, _ := fs.ListFiles(ctx, inc.ID)
	if len(list) != 1 || list[0].Size != 5 || list[0].Data != nil {
		t.Fatalf("unexpected files: %+v", list)
	}
	if _, err := s.ApplyBulk(ctx, BulkOp{EventID: ev.ID, IncidentIDs: []string{inc.ID}, Action: BulkDelete}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if f, _ := fs.GetFile(ctx, files[0].ID); f != nil {
		t.Fatalf("file survived incident delete")
	}
}

func TestDeadLetters(t *testing.T) {
	db := mustTestDB(t)
	ctx := context.Background()
	s := NewAuditStore(db)
	if err := s.AddDeadLetter(ctx, `{"action":"x"}`, 3, "boom"); err != nil {
		t.Fatalf("add: %v", err)
	}
	list, _ := s.ListDeadLetters(ctx, 10)
	if len(list) != 1 || list[0].Attempts != 3 {
		t.Fatalf("unexpected: %+v", list)
	}
	_ = s.BumpDeadLetter(ctx, list[0].ID, "again")
	list, _ = s.ListDeadLetters(ctx, 10)
	if list[0].Attempts != 4 || list[0].LastError != "again" {
		t.Fatalf("bump: %+v", list[0])
	}
	_ = s.DeleteDeadLetter(ctx, list[0].ID)
	if list, _ = s.ListDeadLetters(ctx, 10); len(list) != 0 {
		t.Fatalf("delete failed")
	}
}
