package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reportdesk/core/rbac"
	"reportdesk/core/store"
)

// BulkUpdateIncidents validates every target and option first and collects
// all problems. If any problem exists nothing is applied and the problems
// are returned with Updated=0. Otherwise all targets are changed in one
// transaction that re-checks event membership and roles.
func (s *Service) BulkUpdateIncidents(ctx context.Context, in BulkInput) (*BulkResult, error) {
	if !s.authz.HasEventRole(ctx, in.UserID, in.EventID, rbac.RoleEventAdmin) {
		return nil, ErrForbidden
	}
	ids := uniqueNonEmpty(in.IncidentIDs)
	if len(ids) == 0 {
		return nil, invalid("incidentIds must not be empty")
	}

	var problems []string
	existing, err := s.incidents.ExistingIncidentIDs(ctx, in.EventID, ids)
	if err != nil {
		s.logger.Errorf("incidents.bulk lookup: %v", err)
		return nil, err
	}
	if missing := difference(ids, existing); len(missing) > 0 {
		problems = append(problems, "Incidents not found in this event: "+strings.Join(missing, ", "))
	}

	op := store.BulkOp{
		EventID:     in.EventID,
		IncidentIDs: ids,
		Action:      store.BulkAction(strings.ToLower(strings.TrimSpace(in.Action))),
		ActorID:     in.UserID,
		ActorRoles:  []string{string(rbac.RoleEventAdmin)},
	}
	details := ""
	switch op.Action {
	case store.BulkAssign:
		op.AssigneeID = strings.TrimSpace(in.AssignedTo)
		op.AssigneeRoles = []string{string(rbac.RoleResponder), string(rbac.RoleEventAdmin)}
		switch {
		case op.AssigneeID == "":
			problems = append(problems, "assignedTo is required for assign")
		case !s.authz.HasEventRole(ctx, op.AssigneeID, in.EventID, assigneeRoles...):
			problems = append(problems, "assigned user must be a responder or event admin for this event")
		}
		details = "assigned to " + op.AssigneeID
	case store.BulkStatus:
		st, ok := ParseState(in.Status)
		if !ok {
			problems = append(problems, fmt.Sprintf("invalid status %q", in.Status))
			break
		}
		blocked, err := s.blockedTransitions(ctx, existing, st)
		if err != nil {
			return nil, err
		}
		problems = append(problems, blocked...)
		op.State = string(st)
		details = "status=" + op.State
	case store.BulkDelete:
		details = "deleted"
	default:
		problems = append(problems, fmt.Sprintf("unsupported action %q", in.Action))
	}
	if len(problems) > 0 {
		return &BulkResult{Updated: 0, Errors: problems}, nil
	}

	for _, id := range ids {
		op.Audit = append(op.Audit, store.AuditRecord{
			Action:     AuditIncidentBulk + "." + string(op.Action),
			TargetType: "incident",
			TargetID:   id,
			UserID:     &in.UserID,
			EventID:    &in.EventID,
			Details:    details,
		})
	}
	n, err := s.incidents.ApplyBulk(ctx, op)
	switch {
	case errors.Is(err, store.ErrBulkMembership):
		return &BulkResult{Updated: 0, Errors: []string{"Incidents changed event during the update"}}, nil
	case errors.Is(err, store.ErrBulkActorRole):
		return nil, ErrForbidden
	case errors.Is(err, store.ErrBulkAssignee):
		return &BulkResult{Updated: 0, Errors: []string{"assigned user must be a responder or event admin for this event"}}, nil
	case err != nil:
		s.logger.Errorf("incidents.bulk apply: %v", err)
		return nil, err
	}
	return &BulkResult{Updated: int(n), Errors: []string{}}, nil
}

// blockedTransitions lists incidents whose current state cannot move to target.
// Notes and assignment preconditions apply only to single transitions.
func (s *Service) blockedTransitions(ctx context.Context, ids []string, target State) ([]string, error) {
	var out []string
	for _, id := range ids {
		rec, err := s.incidents.GetIncident(ctx, id)
		if err != nil {
			s.logger.Errorf("incidents.bulk state lookup %s: %v", id, err)
			return nil, err
		}
		if rec == nil {
			continue
		}
		if from := State(rec.State); !CanTransition(from, target) {
			out = append(out, fmt.Sprintf("Incident %s cannot move from %s to %s", id, from, target))
		}
	}
	return out, nil
}

func difference(all, present []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, id := range present {
		have[id] = struct{}{}
	}
	var out []string
	for _, id := range all {
		if _, ok := have[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
