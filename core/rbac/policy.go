package rbac

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Action is a field-level incident permission.
type Action string

const (
	ActEdit                 Action = "edit"
	ActUpdateDescription    Action = "update_description"
	ActUpdateLocation       Action = "update_location"
	ActUpdateIncidentAt     Action = "update_incident_at"
	ActUpdateParties        Action = "update_parties"
	ActUpdateSeverity       Action = "update_severity"
	ActUpdateTags           Action = "update_tags"
	ActViewFull             Action = "view_full"
	ActViewInternalComments Action = "view_internal_comments"
)

// Relationship subjects are granted per incident, next to the caller's roles.
const (
	SubjectReporter = "incident_reporter"
	SubjectAssignee = "incident_assignee"
)

const policyObject = "incident"

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

type Rule struct {
	Action   Action
	Subjects []string
}

var defaultRules = []Rule{
	{Action: ActEdit, Subjects: []string{SubjectReporter, string(RoleEventAdmin)}},
	{Action: ActUpdateDescription, Subjects: []string{SubjectReporter, string(RoleEventAdmin)}},
	{Action: ActUpdateLocation, Subjects: []string{SubjectReporter, string(RoleResponder)}},
	{Action: ActUpdateIncidentAt, Subjects: []string{SubjectReporter, string(RoleResponder)}},
	{Action: ActUpdateParties, Subjects: []string{SubjectReporter, string(RoleResponder)}},
	{Action: ActUpdateSeverity, Subjects: []string{string(RoleResponder)}},
	{Action: ActUpdateTags, Subjects: []string{string(RoleResponder)}},
	{Action: ActViewFull, Subjects: []string{SubjectReporter, string(RoleResponder)}},
	{Action: ActViewInternalComments, Subjects: []string{string(RoleResponder), SubjectAssignee}},
}

// roleLinks makes each role inherit every permission of the next one down.
var roleLinks = [][2]RoleName{
	{RoleSystemAdmin, RoleEventAdmin},
	{RoleEventAdmin, RoleResponder},
}

func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// Policy answers field-level permission questions with a casbin enforcer.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewPolicy(rules []Rule) (*Policy, error) {
	p := &Policy{}
	if err := p.Replace(rules); err != nil {
		return nil, err
	}
	return p, nil
}

func MustDefaultPolicy() *Policy {
	p, err := NewPolicy(defaultRules)
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed reports whether any of subjects may perform action.
func (p *Policy) Allowed(subjects []string, action Action) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sub := range subjects {
		ok, err := p.enforcer.Enforce(sub, policyObject, string(action))
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Subjects builds the casbin subject list for a caller: resolved roles plus
// relationship subjects.
func Subjects(roles []RoleName, isReporter, isAssignee bool) []string {
	out := make([]string, 0, len(roles)+2)
	for _, r := range roles {
		out = append(out, string(r))
	}
	if isReporter {
		out = append(out, SubjectReporter)
	}
	if isAssignee {
		out = append(out, SubjectAssignee)
	}
	return out
}

func (p *Policy) Replace(rules []Rule) error {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return fmt.Errorf("policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return fmt.Errorf("policy enforcer: %w", err)
	}
	for _, link := range roleLinks {
		if _, err := e.AddGroupingPolicy(string(link[0]), string(link[1])); err != nil {
			return err
		}
	}
	for _, r := range rules {
		for _, sub := range r.Subjects {
			if _, err := e.AddPolicy(sub, policyObject, string(r.Action)); err != nil {
				return err
			}
		}
	}
	p.mu.Lock()
	p.enforcer = e
	p.mu.Unlock()
	return nil
}
