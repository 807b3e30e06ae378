package attack

import (
	"fmt"
)

// Factory constructs a fresh Attack for one run. It may fail, e.g. when
// required pulse hardware is missing.
type Factory func() (Attack, error)

// Registry maps stable attack names to factories. It is built once at
// startup; a duplicate name fails the whole build.
type Registry struct {
	factories map[string]Factory
	names     []string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("attack %q registered twice", name)
	}
	r.factories[name] = f
	r.names = append(r.names, name)
	return nil
}

// Names returns all registered attack names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// New constructs the named attack.
func (r *Registry) New(name string) (Attack, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown attack %q", name)
	}
	return f()
}
