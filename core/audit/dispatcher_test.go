package audit

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reportdesk/config"
	"reportdesk/core/store"
	"reportdesk/core/utils"
)

func mustAuditStore(t *testing.T) store.AuditStore {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "audit.db")}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return store.NewAuditStore(db)
}

// flakyStore fails Log until failures reaches zero.
type flakyStore struct {
	store.AuditStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) Log(ctx context.Context, rec *store.AuditRecord) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("db down")
	}
	f.mu.Unlock()
	return f.AuditStore.Log(ctx, rec)
}

func TestDispatcherWritesAfterStop(t *testing.T) {
	st := mustAuditStore(t)
	d := NewDispatcher(st, Options{}, nil)
	d.Start()
	d.Record(context.Background(), Entry{Action: "incident.create", TargetType: "incident", TargetID: "i1", UserID: "u1"})
	d.Record(context.Background(), Entry{Action: "incident.file", TargetType: "related_file", TargetID: "f1"})
	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	list, err := st.List(context.Background(), store.AuditFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if s := d.StatsSnapshot(); s.Written != 2 || s.DeadLettered != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestDispatcherRetriesThenSucceeds(t *testing.T) {
	st := &flakyStore{AuditStore: mustAuditStore(t), failures: 2}
	d := NewDispatcher(st, Options{MaxAttempts: 3, RetryBackoff: time.Millisecond}, nil)
	d.Start()
	d.Record(context.Background(), Entry{Action: "role.grant", TargetType: "user", TargetID: "u1"})
	_ = d.Stop(context.Background())
	s := d.StatsSnapshot()
	if s.Written != 1 || s.Failed != 2 || s.DeadLettered != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestDispatcherDeadLettersAndReplays(t *testing.T) {
	st := &flakyStore{AuditStore: mustAuditStore(t), failures: 2}
	d := NewDispatcher(st, Options{MaxAttempts: 2, RetryBackoff: time.Millisecond}, nil)
	d.Start()
	d.Record(context.Background(), Entry{Action: "comment.create", TargetType: "comment", TargetID: "c1", EventID: "e1"})
	_ = d.Stop(context.Background())
	if s := d.StatsSnapshot(); s.DeadLettered != 1 || s.Written != 0 {
		t.Fatalf("expected dead letter, got %+v", s)
	}
	letters, _ := st.ListDeadLetters(context.Background(), 10)
	if len(letters) != 1 || letters[0].Attempts != 2 {
		t.Fatalf("unexpected dead letters: %+v", letters)
	}

	n, err := d.Replay(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("replay: %d %v", n, err)
	}
	list, _ := st.List(context.Background(), store.AuditFilter{TargetID: "c1"})
	if len(list) != 1 || list[0].EventID == nil || *list[0].EventID != "e1" {
		t.Fatalf("replayed row mismatch: %+v", list)
	}
	if letters, _ = st.ListDeadLetters(context.Background(), 10); len(letters) != 0 {
		t.Fatalf("dead letter not removed")
	}
}

func TestDispatcherDropsAfterStop(t *testing.T) {
	st := mustAuditStore(t)
	d := NewDispatcher(st, Options{}, nil)
	_ = d.Stop(context.Background())
	d.Record(context.Background(), Entry{Action: "late", TargetType: "x", TargetID: "y"})
	if s := d.StatsSnapshot(); s.Failed != 1 {
		t.Fatalf("expected dropped entry counted, got %+v", s)
	}
}

func TestReplaySchedulerRejectsBadSpec(t *testing.T) {
	if _, err := NewReplayScheduler(NewDispatcher(nil, Options{}, nil), "not a cron", nil); err == nil {
		t.Fatalf("expected parse error")
	}
	s, err := NewReplayScheduler(NewDispatcher(nil, Options{}, nil), "*/5 * * * *", nil)
	if err != nil {
		t.Fatalf("valid spec: %v", err)
	}
	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.StopWithContext(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
