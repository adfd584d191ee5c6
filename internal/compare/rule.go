// Package compare is the tolerance-aware comparator: element-wise checks of
// tensors under a per-element-type rule, shape assertions and the triangular
// expected/reference/accelerated check.
package compare

import (
	"fmt"
	"strings"

	"github.com/example/go-opverify/internal/dtype"
	"github.com/example/go-opverify/internal/graph"
)

// Kind selects how two elements are judged equal.
type Kind uint8

const (
	// KindDefault resolves by element type: bool truthiness, float32 absolute
	// epsilon, float16 packed bits ±1 and integers ±1 raw unit.
	KindDefault Kind = iota
	// KindAbsEpsilon accepts |a-b| <= Epsilon on element values.
	KindAbsEpsilon
	// KindPercent accepts |a-b| <= |a| * Percent/100 with a the expected side.
	KindPercent
	// KindUnits accepts a raw difference of at most Units. Floats compare
	// their bit patterns.
	KindUnits
	// KindExact requires identical raw bytes.
	KindExact
	// KindBool compares truthiness: any non-zero byte is true.
	KindBool
)

var kindNames = [...]string{
	KindDefault:    "default",
	KindAbsEpsilon: "abs",
	KindPercent:    "percent",
	KindUnits:      "units",
	KindExact:      "exact",
	KindBool:       "bool",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a rule kind name.
func ParseKind(raw string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}

	return KindDefault, fmt.Errorf("compare: unknown rule kind %q", raw)
}

// DefaultEpsilon is the absolute float tolerance of the default rule.
const DefaultEpsilon = 1e-5

// Rule is a tolerance rule. Zero parameters take their defaults when the
// rule is resolved against an element type.
type Rule struct {
	Kind    Kind    `json:"kind" mapstructure:"kind"`
	Epsilon float64 `json:"epsilon,omitempty" mapstructure:"epsilon"`
	Percent float64 `json:"percent,omitempty" mapstructure:"percent"`
	Units   int64   `json:"units,omitempty" mapstructure:"units"`
}

// Abs returns an absolute epsilon rule.
func Abs(eps float64) Rule { return Rule{Kind: KindAbsEpsilon, Epsilon: eps} }

// Percent returns a percentage-of-magnitude rule.
func Percent(pct float64) Rule { return Rule{Kind: KindPercent, Percent: pct} }

// Units returns a raw-unit rule.
func Units(n int64) Rule { return Rule{Kind: KindUnits, Units: n} }

// DefaultRule returns the rule used for et when nothing else is configured.
func DefaultRule(et dtype.ElementType) Rule {
	switch {
	case et == dtype.Bool:
		return Rule{Kind: KindBool}
	case et == dtype.Float32:
		return Abs(DefaultEpsilon)
	default:
		// Float16 and every integer type: ±1 raw unit.
		return Units(1)
	}
}

// Resolve fills defaults for et. Bool tensors always compare by truthiness
// unless an exact rule is requested.
func (r Rule) Resolve(et dtype.ElementType) Rule {
	if et == dtype.Bool && r.Kind != KindExact {
		return Rule{Kind: KindBool}
	}

	switch r.Kind {
	case KindDefault, KindBool:
		return DefaultRule(et)
	case KindAbsEpsilon:
		if r.Epsilon == 0 {
			r.Epsilon = DefaultEpsilon
		}
	case KindUnits:
		if r.Units == 0 {
			r.Units = 1
		}
	}

	return r
}

func (r Rule) String() string {
	switch r.Kind {
	case KindAbsEpsilon:
		return fmt.Sprintf("abs(%g)", r.Epsilon)
	case KindPercent:
		return fmt.Sprintf("percent(%g%%)", r.Percent)
	case KindUnits:
		return fmt.Sprintf("units(±%d)", r.Units)
	default:
		return r.Kind.String()
	}
}

// OperatorRules overrides the default rule for operators whose backends are
// known to drift proportionally. The override applies to float outputs only.
var OperatorRules = map[graph.OpKind]Rule{
	graph.OpUnidirectionalSequenceLSTM: Percent(1),
}

// RuleFor returns the rule for an output of type et produced by kind.
func RuleFor(kind graph.OpKind, et dtype.ElementType) Rule {
	if r, ok := OperatorRules[kind]; ok && et.IsFloat() {
		return r.Resolve(et)
	}

	return DefaultRule(et)
}
