package tools

import (
	"context"
	"encoding/json"
	"strings"
)

// Capability is one externally invocable generation or query operation.
type Capability interface {
	Name() string
	Description() string
	// Parameters is a JSON-schema object describing the argument map.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}

type Registry struct {
	order []string
	caps  map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{caps: map[string]Capability{}}
}

func (r *Registry) Register(c Capability) {
	if _, ok := r.caps[c.Name()]; !ok {
		r.order = append(r.order, c.Name())
	}
	r.caps[c.Name()] = c
}

func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.caps[name]
	return c, ok
}

// List returns all registered capabilities in registration order.
func (r *Registry) List() []Capability {
	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name])
	}
	return out
}

// ForRole resolves the capabilities an executor role may use. The explicit
// catalog table is the primary mechanism; when a role has no configured
// entry, a keyword filter over capability names remains as the legacy
// compatibility path.
func (r *Registry) ForRole(role string, catalog *Catalog) []Capability {
	allowed := catalog.CapabilitiesFor(role)
	if len(allowed) == 0 {
		return r.keywordFilter(role)
	}
	var out []Capability
	for _, c := range r.List() {
		name := strings.ToLower(c.Name())
		for _, a := range allowed {
			al := strings.ToLower(a)
			if strings.Contains(name, al) || strings.Contains(al, name) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (r *Registry) keywordFilter(role string) []Capability {
	keyword := strings.ToLower(strings.TrimSuffix(role, "_executor"))
	if keyword == "" || keyword == role {
		return nil
	}
	var out []Capability
	for _, c := range r.List() {
		if strings.Contains(strings.ToLower(c.Name()), keyword) {
			out = append(out, c)
		}
	}
	return out
}

// Catalog binds executor roles to capability names. It is supplied
// per-session from configuration and read-only afterwards.
type Catalog struct {
	roles    []string
	bindings map[string][]string
}

func NewCatalog(bindings map[string][]string) *Catalog {
	c := &Catalog{bindings: map[string][]string{}}
	for role, names := range bindings {
		c.roles = append(c.roles, role)
		c.bindings[role] = append([]string(nil), names...)
	}
	return c
}

// Roles returns the executor roles the catalog knows about.
func (c *Catalog) Roles() []string {
	return append([]string(nil), c.roles...)
}

// ResolveRole maps a planner-emitted role name to its canonical catalog
// entry: exact match first, then containment either way. Resolving an
// already-canonical name is a no-op.
func (c *Catalog) ResolveRole(name string) (string, bool) {
	if _, ok := c.bindings[name]; ok {
		return name, true
	}
	lower := strings.ToLower(name)
	for role := range c.bindings {
		rl := strings.ToLower(role)
		if strings.Contains(rl, lower) || strings.Contains(lower, rl) {
			return role, true
		}
	}
	return "", false
}

// CapabilitiesFor returns the capability names bound to a role.
func (c *Catalog) CapabilitiesFor(role string) []string {
	return c.bindings[role]
}

// ExtractTaskID pulls a task identifier out of a capability result. It
// supports an object with a task_id or id field, a JSON-encoded string of
// such an object, and a bare identifier string.
func ExtractTaskID(result any) string {
	switch v := result.(type) {
	case map[string]any:
		return idFromMap(v)
	case string:
		candidate := strings.TrimSpace(v)
		if strings.HasPrefix(candidate, "{") && strings.HasSuffix(candidate, "}") {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
				return idFromMap(parsed)
			}
			return candidate
		}
		return candidate
	default:
		return ""
	}
}

func idFromMap(m map[string]any) string {
	if id, ok := m["task_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := m["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// IsImageEditTool reports whether a capability name denotes an image-edit
// operation; the carryover subsystem only fires for those.
func IsImageEditTool(name string) bool {
	return strings.Contains(strings.ToLower(name), "image_edit")
}

// IsProxyTool reports whether a task was created through the async proxy
// path, whose results live in the local task store rather than the jobs API.
func IsProxyTool(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "proxy") || strings.Contains(lower, "banana")
}
