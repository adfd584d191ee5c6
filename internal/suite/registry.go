// Package suite holds the verification scenarios: single-operator graphs
// with fixed inputs and expected outputs, registered in an explicit order,
// and the runner that drives them through the dual execution harness.
package suite

import (
	"fmt"
	"regexp"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/example/go-opverify/internal/compare"
	"github.com/example/go-opverify/internal/graph"
)

// Case is a built scenario ready to run.
type Case struct {
	Graph *graph.Graph
	// Inputs holds one raw little-endian payload per graph input.
	Inputs [][]byte
	// Expected holds one view per graph output.
	Expected []compare.TensorView
	// Rule overrides the per-operator default when its kind is not KindDefault.
	Rule compare.Rule
}

// RuleFor returns the rule for output i.
func (c *Case) RuleFor(i int) compare.Rule {
	et := c.Expected[i].Type
	if c.Rule.Kind != compare.KindDefault {
		return c.Rule.Resolve(et)
	}

	return compare.RuleFor(c.Graph.Operators[0].Kind, et)
}

// Scenario is a named, tagged case factory.
type Scenario struct {
	Name  string
	Tags  []string
	Build func() (*Case, error)
}

// Registry maps scenario names to scenarios in registration order.
type Registry struct {
	m *orderedmap.OrderedMap[string, Scenario]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: orderedmap.New[string, Scenario]()}
}

// Register adds s. Names must be unique.
func (r *Registry) Register(s Scenario) error {
	if s.Name == "" || s.Build == nil {
		return fmt.Errorf("suite: scenario needs a name and a build func")
	}

	if _, dup := r.m.Get(s.Name); dup {
		return fmt.Errorf("suite: scenario %q already registered", s.Name)
	}

	r.m.Set(s.Name, s)

	return nil
}

// Lookup returns the scenario registered under name.
func (r *Registry) Lookup(name string) (Scenario, bool) {
	return r.m.Get(name)
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int { return r.m.Len() }

// All returns every scenario in registration order.
func (r *Registry) All() []Scenario {
	out := make([]Scenario, 0, r.m.Len())
	for p := r.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Value)
	}

	return out
}

// Filter returns the scenarios whose name or one of whose tags matches
// pattern. An empty pattern selects everything.
func (r *Registry) Filter(pattern string) ([]Scenario, error) {
	if pattern == "" {
		return r.All(), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("suite: filter: %w", err)
	}

	var out []Scenario

	for _, s := range r.All() {
		if re.MatchString(s.Name) || matchesTag(re, s.Tags) {
			out = append(out, s)
		}
	}

	return out, nil
}

func matchesTag(re *regexp.Regexp, tags []string) bool {
	for _, t := range tags {
		if re.MatchString(t) {
			return true
		}
	}

	return false
}
