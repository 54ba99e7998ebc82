// Package entrypoint implements the engine's EntrypointResolver contract
// over a process-local registry. Host applications and plug-ins register
// named functions under a group at startup; policies configured with that
// group resolve otherwise-unbound names against it.
package entrypoint

import (
	"sync"

	"github.com/aegis-authz/aegis/pkg/rules"
)

// Registry is a concurrency-safe (group, name) -> function table.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*rules.Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]map[string]*rules.Func)}
}

// Register installs fn under (group, name), replacing any previous
// registration. Note the engine memoizes resolutions per Policy, so
// re-registering after a Policy has resolved the name does not affect
// that Policy.
func (r *Registry) Register(group, name string, fn *rules.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[group]
	if !ok {
		g = make(map[string]*rules.Func)
		r.groups[group] = g
	}
	g[name] = fn
}

// RegisterFunc installs an ordinary function under (group, name).
func (r *Registry) RegisterFunc(group, name string, fn rules.NormalFunc) {
	r.Register(group, name, rules.NewFunc(name, fn))
}

// Resolve implements rules.EntrypointResolver.
func (r *Registry) Resolve(group, name string) (*rules.Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.groups[group][name]
	return fn, ok
}

// Groups returns the registered group names.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.groups))
	for g := range r.groups {
		out = append(out, g)
	}
	return out
}
