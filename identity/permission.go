package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Action is an operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	// ActionManage is a superset of every other action.
	ActionManage Action = "manage"
	// ActionAdmin implies read, write and delete on the resource.
	ActionAdmin Action = "admin"
)

// ErrUnknownAction is returned by ParseAction for unknown verbs.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionRead, ActionWrite, ActionDelete, ActionManage, ActionAdmin:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Permission grants Actions on Resource. Resource may be "*" (everything),
// "ns:*" (the namespace and all of its children) or an exact name.
type Permission struct {
	Resource   string      `json:"resource" yaml:"resource"`
	Actions    []Action    `json:"actions" yaml:"actions"`
	Conditions *Conditions `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Conditions restrict when a permission applies. All present conditions
// must hold.
type Conditions struct {
	TimeWindow *TimeWindow `json:"timeWindow,omitempty" yaml:"timeWindow,omitempty"`
	// Predicate names a check registered on the permission service.
	Predicate string `json:"predicate,omitempty" yaml:"predicate,omitempty"`
}

// TimeWindow is a daily "HH:MM" interval. End before Start wraps midnight.
type TimeWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Clone returns a deep copy.
func (p Permission) Clone() Permission {
	out := Permission{Resource: p.Resource}
	if len(p.Actions) > 0 {
		out.Actions = append([]Action(nil), p.Actions...)
	}
	if p.Conditions != nil {
		c := *p.Conditions
		if c.TimeWindow != nil {
			tw := *c.TimeWindow
			c.TimeWindow = &tw
		}
		out.Conditions = &c
	}
	return out
}

// Strings renders permissions as denormalized "resource:action" values.
// These are what access tokens carry.
func Strings(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		for _, a := range p.Actions {
			s := p.Resource + ":" + string(a)
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
