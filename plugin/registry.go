package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateType is returned when two plugins share a type key.
	ErrDuplicateType = errors.New("duplicate block type")

	// ErrInvalidPlugin is returned for plugins that fail the startup checks.
	ErrInvalidPlugin = errors.New("invalid block plugin")
)

// Registry maps block types to plugins. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry builds a registry from a fixed list of plugins.
// Every plugin must have a non-empty type, a positive version and default
// data that satisfies its own schema. Duplicate types are rejected.
func NewRegistry(plugins ...Plugin) (*Registry, error) {
	r := &Registry{
		plugins: make(map[string]Plugin, len(plugins)),
		order:   make([]string, 0, len(plugins)),
	}
	for i, p := range plugins {
		if p == nil {
			return nil, fmt.Errorf("%w: plugin %d is nil", ErrInvalidPlugin, i)
		}
		t := p.Type()
		if t == "" {
			return nil, fmt.Errorf("%w: plugin %d has an empty type", ErrInvalidPlugin, i)
		}
		if _, exists := r.plugins[t]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateType, t)
		}
		if p.Version() < 1 {
			return nil, fmt.Errorf("%w: %q has version %d", ErrInvalidPlugin, t, p.Version())
		}
		if err := checkDefault(p); err != nil {
			return nil, fmt.Errorf("%w: %q default data: %v", ErrInvalidPlugin, t, err)
		}
		r.plugins[t] = p
		r.order = append(r.order, t)
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(plugins ...Plugin) *Registry {
	r, err := NewRegistry(plugins...)
	if err != nil {
		panic(err)
	}
	return r
}

func checkDefault(p Plugin) error {
	raw, err := p.Encode(p.DefaultData())
	if err != nil {
		return err
	}
	if _, errs := p.Decode(raw); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Lookup returns the plugin registered for a block type.
func (r *Registry) Lookup(blockType string) (Plugin, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.plugins[blockType]
	return p, ok
}

// Types returns the registered block types in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Plugins returns the registered plugins in registration order.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.plugins[t])
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.order)
}
