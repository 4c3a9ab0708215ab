package permission

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/streamauth/identity"
)

// Config controls a Service.
type Config struct {
	// Roles replaces DefaultRoles when non-nil.
	Roles map[identity.Role][]identity.Permission
	// Location is the zone time windows are evaluated in. Defaults to UTC.
	Location *time.Location
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

// Service is safe for concurrent use once configured.
type Service struct {
	roles      map[identity.Role][]identity.Permission
	predicates *Registry
	loc        *time.Location
	now        func() time.Time
}

// NewService validates cfg and returns a Service with an empty predicate
// registry.
func NewService(cfg Config) (*Service, error) {
	roles := cfg.Roles
	if roles == nil {
		roles = DefaultRoles()
	}
	for role, perms := range roles {
		if !role.Valid() {
			return nil, fmt.Errorf("permission: invalid role %d", role)
		}
		for _, p := range perms {
			if err := validate(p); err != nil {
				return nil, fmt.Errorf("permission: role %s: %w", role, err)
			}
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{roles: roles, predicates: NewRegistry(), loc: cfg.Location, now: cfg.Now}, nil
}

func validate(p identity.Permission) error {
	if strings.TrimSpace(p.Resource) == "" {
		return fmt.Errorf("empty resource")
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("resource %q has no actions", p.Resource)
	}
	for _, a := range p.Actions {
		if _, err := identity.ParseAction(string(a)); err != nil {
			return err
		}
	}
	if p.Conditions != nil && p.Conditions.TimeWindow != nil {
		if _, _, err := parseWindow(*p.Conditions.TimeWindow); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPredicate makes fn available to Conditions.Predicate under name.
func (s *Service) RegisterPredicate(name string, fn Predicate) error {
	return s.predicates.Register(name, fn)
}

// Predicates exposes the registry, mainly so callers can Freeze it.
func (s *Service) Predicates() *Registry {
	return s.predicates
}

// UserPermissions returns the effective grants for user: role defaults
// merged with overrides. The result is a fresh copy.
func (s *Service) UserPermissions(user *identity.User) []identity.Permission {
	if user == nil || !user.Role.Valid() {
		return nil
	}
	overrides := user.Permissions
	if !user.Role.AtLeast(identity.RoleAdmin) {
		overrides = withoutAdminNamespace(overrides)
	}
	return Merge(s.roles[user.Role], overrides)
}

// HasPermission reports whether user may perform action on resource.
func (s *Service) HasPermission(user *identity.User, resource string, action identity.Action) bool {
	return s.HasPermissionContext(context.Background(), user, resource, action)
}

// HasPermissionContext is HasPermission with a context passed to predicates.
func (s *Service) HasPermissionContext(ctx context.Context, user *identity.User, resource string, action identity.Action) bool {
	if user == nil || !user.Role.Valid() || resource == "" || action == "" {
		return false
	}
	if !user.Role.AtLeast(identity.RoleAdmin) && inNamespace(resource, AdminNamespace) {
		return false
	}

	for _, p := range s.UserPermissions(user) {
		if !resourceMatches(p.Resource, resource) || !actionCovers(p.Actions, action) {
			continue
		}
		if s.conditionsHold(ctx, p.Conditions, user, resource, action) {
			return true
		}
	}
	return false
}

func (s *Service) conditionsHold(ctx context.Context, c *identity.Conditions, user *identity.User, resource string, action identity.Action) bool {
	if c == nil {
		return true
	}
	if c.TimeWindow != nil {
		start, end, err := parseWindow(*c.TimeWindow)
		if err != nil {
			return false
		}
		now := s.now().In(s.loc)
		m := now.Hour()*60 + now.Minute()
		if start <= end {
			if m < start || m >= end {
				return false
			}
		} else if m < start && m >= end {
			return false
		}
	}
	if c.Predicate != "" {
		fn, ok := s.predicates.Lookup(c.Predicate)
		if !ok || !fn(ctx, user.Clone(), resource, action) {
			return false
		}
	}
	return true
}

// Merge unions permission lists. Unconditional grants on one resource are
// collapsed with their actions merged; conditional grants are kept apart
// from unconditional ones.
func Merge(lists ...[]identity.Permission) []identity.Permission {
	var out []identity.Permission
	index := make(map[string]int)
	for _, list := range lists {
		for _, p := range list {
			key := mergeKey(p)
			pos, ok := index[key]
			if !ok {
				index[key] = len(out)
				c := p.Clone()
				c.Actions = nil
				out = append(out, c)
				pos = len(out) - 1
			}
			for _, a := range p.Actions {
				if !containsAction(out[pos].Actions, a) {
					out[pos].Actions = append(out[pos].Actions, a)
				}
			}
		}
	}
	return out
}

func mergeKey(p identity.Permission) string {
	if p.Conditions == nil {
		return p.Resource
	}
	key := p.Resource + "|" + p.Conditions.Predicate
	if tw := p.Conditions.TimeWindow; tw != nil {
		key += "|" + tw.Start + "-" + tw.End
	}
	return key
}

func containsAction(actions []identity.Action, a identity.Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func withoutAdminNamespace(perms []identity.Permission) []identity.Permission {
	out := make([]identity.Permission, 0, len(perms))
	for _, p := range perms {
		if p.Resource == "*" || inNamespace(strings.TrimSuffix(p.Resource, ":*"), AdminNamespace) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func inNamespace(resource, ns string) bool {
	return resource == ns || strings.HasPrefix(resource, ns+":")
}

func resourceMatches(pattern, resource string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ":*"):
		return inNamespace(resource, strings.TrimSuffix(pattern, ":*"))
	default:
		return pattern == resource
	}
}

func actionCovers(granted []identity.Action, want identity.Action) bool {
	for _, g := range granted {
		switch {
		case g == want, g == identity.ActionManage:
			return true
		case g == identity.ActionAdmin:
			if want == identity.ActionRead || want == identity.ActionWrite || want == identity.ActionDelete {
				return true
			}
		}
	}
	return false
}

// parseWindow returns minutes since midnight for both ends.
func parseWindow(tw identity.TimeWindow) (int, int, error) {
	start, err := parseClock(tw.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(tw.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}
