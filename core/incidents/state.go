package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reportdesk/core/audit"
	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

// Transitions only move forward; closed is terminal.
var transitions = map[State][]State{
	StateSubmitted:     {StateAcknowledged, StateInvestigating, StateResolved, StateClosed},
	StateAcknowledged:  {StateInvestigating, StateResolved, StateClosed},
	StateInvestigating: {StateResolved, StateClosed},
	StateResolved:      {StateClosed},
	StateClosed:        {},
}

type transitionRule struct {
	requiresNotes      bool
	requiresAssignment bool
}

var transitionRules = map[State]transitionRule{
	StateInvestigating: {requiresNotes: true, requiresAssignment: true},
	StateResolved:      {requiresNotes: true},
}

var assigneeRoles = []rbac.RoleName{rbac.RoleResponder, rbac.RoleEventAdmin}

func AllowedTransitions(from State) []State {
	out := make([]State, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

func CanTransition(from, to State) bool {
	for _, st := range transitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

// UpdateIncidentState moves an incident to a new state. Every precondition is
// checked before any write; the state update, its audit rows and the optional
// internal notes comment commit in one transaction.
func (s *Service) UpdateIncidentState(ctx context.Context, in StateInput) (*Change, error) {
	target, ok := ParseState(in.State)
	if !ok {
		return nil, invalid(fmt.Sprintf("invalid state %q", in.State))
	}
	rec, err := s.loadIncident(ctx, in.EventID, in.IncidentID)
	if err != nil {
		return nil, err
	}
	roles := s.authz.EffectiveEventRoles(ctx, in.UserID, rec.EventID)
	if !isStaff(roles) {
		return nil, ErrForbidden
	}

	current := State(rec.State)
	if !CanTransition(current, target) {
		return nil, invalid(fmt.Sprintf("cannot transition from %s to %s", current, target))
	}
	notes := strings.TrimSpace(in.Notes)
	assignee := strings.TrimSpace(in.AssignedToUserID)
	rule := transitionRules[target]
	if rule.requiresNotes && notes == "" {
		return nil, invalid(fmt.Sprintf("notes are required when moving to %s", target))
	}
	if rule.requiresAssignment && assignee == "" {
		return nil, invalid(fmt.Sprintf("assignedToUserId is required when moving to %s", target))
	}
	if assignee != "" && !s.authz.HasEventRole(ctx, assignee, rec.EventID, assigneeRoles...) {
		return nil, invalid("assigned user must be a responder or event admin for this event")
	}

	oldAssignee := derefString(rec.AssignedResponderID)
	change := store.StateChange{
		IncidentID: rec.ID,
		FromState:  rec.State,
		ToState:    string(target),
		Audit: []store.AuditRecord{
			entry(AuditIncidentState, rec, in.UserID, fmt.Sprintf("State changed from %s to %s", current, target)).Record(),
		},
	}
	if assignee != "" && assignee != oldAssignee {
		change.SetAssignee = true
		change.AssigneeID = &assignee
		change.Audit = append(change.Audit,
			entry(AuditIncidentAssign, rec, in.UserID, fmt.Sprintf("Assigned to %s", assignee)).Record())
	}
	if target == StateResolved {
		change.Resolution = &notes
	}
	if notes != "" {
		body := fmt.Sprintf("**State changed from %s to %s**\n\n%s", current, target, notes)
		enc, err := s.codec.EncryptField(body)
		if err != nil {
			return nil, err
		}
		author := in.UserID
		change.Comment = &store.Comment{
			AuthorID:   &author,
			Body:       enc,
			Visibility: "internal",
			IsMarkdown: true,
		}
		change.CommentTokens = s.codec.SearchTokens(body)
	}

	if err := s.incidents.ApplyStateChange(ctx, change); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return nil, ErrConflict
		}
		s.logger.Errorf("incidents.state %s: %v", rec.ID, err)
		return nil, err
	}
	s.countTransition(current, target)

	inc, err := s.reload(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	newAssignee := oldAssignee
	if change.SetAssignee {
		newAssignee = assignee
	}
	return &Change{
		Incident:    inc,
		OldState:    current,
		NewState:    target,
		OldAssignee: oldAssignee,
		NewAssignee: newAssignee,
	}, nil
}

func entry(action string, rec *store.Incident, userID, details string) audit.Entry {
	return audit.Entry{
		Action:     action,
		TargetType: "incident",
		TargetID:   rec.ID,
		UserID:     userID,
		EventID:    rec.EventID,
		Details:    details,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
