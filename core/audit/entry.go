package audit

import (
	"context"

	"reportdesk/core/store"
)

// Entry is one fire-and-forget audit write.
type Entry struct {
	Action     string `json:"action"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	UserID     string `json:"user_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Sink accepts audit entries. Record never blocks on storage and never fails
// the caller.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

func (e Entry) record() *store.AuditRecord {
	return &store.AuditRecord{
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		UserID:     optional(e.UserID),
		EventID:    optional(e.EventID),
		Details:    e.Details,
	}
}

// Record converts the entry into a store row, for callers that write audit
// rows inside their own transaction.
func (e Entry) Record() store.AuditRecord {
	return *e.record()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
