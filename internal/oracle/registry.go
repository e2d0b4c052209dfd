package oracle

import (
	"errors"
	"fmt"
)

// Registry is the fixed set of oracles, in registration order.
type Registry struct {
	order  []string
	byName map[string]Oracle
}

// NewRegistry registers oracles in order. Names must be unique.
func NewRegistry(oracles ...Oracle) (*Registry, error) {
	r := &Registry{byName: make(map[string]Oracle, len(oracles))}
	for _, o := range oracles {
		if err := r.Register(o); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds o. A duplicate name is an error.
func (r *Registry) Register(o Oracle) error {
	if o == nil {
		return fmt.Errorf("nil oracle")
	}
	name := o.Name()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("oracle %q already registered", name)
	}
	r.byName[name] = o
	r.order = append(r.order, name)
	return nil
}

// Get returns the oracle registered under name.
func (r *Registry) Get(name string) (Oracle, bool) {
	o, ok := r.byName[name]
	return o, ok
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every oracle in registration order.
func (r *Registry) All() []Oracle {
	out := make([]Oracle, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered oracles.
func (r *Registry) Len() int { return len(r.order) }

// Close closes every oracle and joins their errors.
func (r *Registry) Close() error {
	var errs []error
	for _, o := range r.All() {
		if err := o.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}
