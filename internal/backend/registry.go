package backend

import (
	"fmt"

	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/logger"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry maps backend names to backends in registration order.
type Registry struct {
	m *orderedmap.OrderedMap[string, Backend]
}

// NewRegistry registers the given backends in order.
func NewRegistry(backends ...Backend) (*Registry, error) {
	r := &Registry{m: orderedmap.New[string, Backend]()}
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds b. Names must be unique.
func (r *Registry) Register(b Backend) error {
	if b == nil || b.Name() == "" {
		return fmt.Errorf("backend: cannot register unnamed backend")
	}

	if _, dup := r.m.Get(b.Name()); dup {
		return fmt.Errorf("backend: %q already registered", b.Name())
	}

	r.m.Set(b.Name(), b)

	return nil
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	return r.m.Get(name)
}

// Names lists registered backends in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, r.m.Len())
	for p := r.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}

	return out
}

// Resolve maps a preference list to usable backends, keeping its order.
// Unknown and unavailable names are skipped with a warning.
func (r *Registry) Resolve(names []string) ([]Backend, error) {
	var out []Backend

	for _, name := range names {
		b, ok := r.m.Get(name)
		if !ok {
			logger.Log.Warn("skipping unknown backend", "backend", name)
			continue
		}

		if err := b.Available(); err != nil {
			logger.Log.Warn("skipping unavailable backend", "backend", name, "error", err)
			continue
		}

		out = append(out, b)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w among %v", ErrNoBackend, names)
	}

	return out, nil
}

// Assignment records which backend computes an operator.
type Assignment struct {
	Operator int
	Kind     graph.OpKind
	Backend  Backend
}

func (a Assignment) String() string {
	return fmt.Sprintf("#%d %s -> %s", a.Operator, a.Kind, a.Backend.Name())
}

// Partition assigns every operator of g to the first backend in preference
// order that supports it.
func Partition(g *graph.Graph, backends []Backend) ([]Assignment, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackend
	}

	out := make([]Assignment, len(g.Operators))

	for i := range g.Operators {
		op := &g.Operators[i]

		var chosen Backend
		for _, b := range backends {
			if b.Supports(g, op) {
				chosen = b
				break
			}
		}

		if chosen == nil {
			return nil, fmt.Errorf("%w: operator %d (%s) by any of %v", ErrNotSupported, i, op.Kind, names(backends))
		}

		out[i] = Assignment{Operator: i, Kind: op.Kind, Backend: chosen}
	}

	return out, nil
}

func names(bs []Backend) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name()
	}

	return out
}
