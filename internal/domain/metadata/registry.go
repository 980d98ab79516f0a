package metadata

import "sort"

// Registry resolves entity names to descriptors. It is immutable after
// Build and safe for concurrent use.
type Registry struct {
	entities map[string]*Entity
}

// Resolve returns the entity registered under name.
func (r *Registry) Resolve(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns the registered entity names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
