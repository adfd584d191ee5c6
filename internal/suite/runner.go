package suite

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/compare"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/harness"
	"github.com/example/go-opverify/internal/logger"
	"github.com/example/go-opverify/internal/metrics"
)

// Scenario outcome statuses.
const (
	StatusPass  = "pass"
	StatusFail  = "fail"
	StatusSkip  = "skip"
	StatusError = "error"
)

// Result is the outcome of one scenario.
type Result struct {
	Name    string   `json:"name"`
	Tags    []string `json:"tags,omitempty"`
	Status  string   `json:"status"`
	Failure *Failure `json:"failure,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	// Operators counts the graph's operators; AcceleratedOps counts those
	// an accelerated backend computed rather than the reference fallback.
	Operators      int           `json:"operators"`
	AcceleratedOps int           `json:"accelerated_ops"`
	Assignments    []string      `json:"assignments,omitempty"`
	GraphSHA256    string        `json:"graph_sha256,omitempty"`
	GraphBytes     int           `json:"graph_bytes,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// ReferenceOnly reports whether the scenario ran but no operator reached an
// accelerated backend, so both contexts computed on the reference.
func (r Result) ReferenceOnly() bool {
	return r.Operators > 0 && r.AcceleratedOps == 0
}

// Failure locates the first failing comparison of a scenario. Index is -1
// when the pair failed on shape or type before any element was compared.
type Failure struct {
	Pair     string  `json:"pair"`
	Output   int     `json:"output"`
	Rule     string  `json:"rule"`
	Index    int     `json:"index"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// RunnerConfig selects backends and an optional float rule override.
type RunnerConfig struct {
	Reference   []string
	Accelerated []string
	// FloatRule replaces the default rule for float outputs of scenarios that
	// do not set their own. KindDefault leaves the defaults in place.
	FloatRule compare.Rule
}

// Runner drives scenarios through the dual execution harness one at a time.
type Runner struct {
	h       *harness.Harness
	cfg     RunnerConfig
	metrics *metrics.Metrics
}

// NewRunner returns a runner. m may be nil.
func NewRunner(h *harness.Harness, cfg RunnerConfig, m *metrics.Metrics) *Runner {
	return &Runner{h: h, cfg: cfg, metrics: m}
}

// Run executes scenarios sequentially. progress, when non-nil, is called
// after each scenario. A cancelled ctx stops before the next scenario.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario, progress func(Result)) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))

	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res := r.RunOne(ctx, s)
		results = append(results, res)

		if progress != nil {
			progress(res)
		}
	}

	return results, nil
}

// RunOne executes a single scenario.
func (r *Runner) RunOne(ctx context.Context, s Scenario) Result {
	start := time.Now()
	res := Result{Name: s.Name, Tags: s.Tags}

	r.run(ctx, s, &res)

	res.Duration = time.Since(start)
	r.metrics.RecordScenario(res.Status, res.Duration)

	switch res.Status {
	case StatusFail, StatusError:
		logger.Log.Warn("scenario did not pass", "scenario", s.Name, "status", res.Status, "reason", res.Reason)
	default:
		logger.Log.Debug("scenario finished", "scenario", s.Name, "status", res.Status, "duration", res.Duration)
	}

	return res
}

func (r *Runner) run(ctx context.Context, s Scenario, res *Result) {
	c, err := s.Build()
	if err != nil {
		res.Status, res.Reason = StatusError, fmt.Sprintf("build: %v", err)
		return
	}

	buf, err := serializeStable(c.Graph)
	if err != nil {
		res.Status, res.Reason = StatusError, err.Error()
		return
	}

	sum := sha256.Sum256(buf)
	res.GraphSHA256 = hex.EncodeToString(sum[:])
	res.GraphBytes = len(buf)

	dual, err := r.h.RunDual(ctx, buf, c.Inputs, r.cfg.Reference, r.cfg.Accelerated)
	if err != nil {
		res.Status, res.Reason = StatusError, err.Error()
		if errors.Is(err, harness.ErrAcceleratorAttach) && errors.Is(err, backend.ErrNoBackend) {
			res.Status = StatusSkip
		}

		return
	}

	res.Operators = len(dual.Assignments)

	for _, a := range dual.Assignments {
		res.Assignments = append(res.Assignments, a.String())

		if !slices.Contains(r.cfg.Reference, a.Backend.Name()) {
			res.AcceleratedOps++
		}
	}

	if len(dual.Reference) != len(c.Expected) {
		res.Status = StatusError
		res.Reason = fmt.Sprintf("graph has %d outputs, scenario expects %d", len(dual.Reference), len(c.Expected))

		return
	}

	res.Status = StatusPass

	for i := range c.Expected {
		rule := r.ruleFor(c, i)

		tr, err := compare.Triangular(c.Expected[i], dual.Reference[i], dual.Accelerated[i], rule)
		for _, rep := range tr.Reports {
			r.metrics.RecordComparison(s.Name, rep.Pair.String(), rep.Failed)
		}

		if err != nil && res.Status == StatusPass {
			res.Status, res.Reason = StatusFail, err.Error()
			res.Failure = locate(err, i, rule)
		}
	}
}

func (r *Runner) ruleFor(c *Case, i int) compare.Rule {
	if c.Rule.Kind == compare.KindDefault && r.cfg.FloatRule.Kind != compare.KindDefault && c.Expected[i].Type.IsFloat() {
		return r.cfg.FloatRule.Resolve(c.Expected[i].Type)
	}

	return c.RuleFor(i)
}

// locate describes the first failing pair and element of output.
func locate(err error, output int, rule compare.Rule) *Failure {
	f := &Failure{Output: output, Rule: rule.String(), Index: -1}

	var vt *compare.ValueToleranceExceededError
	if errors.As(err, &vt) {
		f.Pair, f.Index, f.Expected, f.Actual = vt.Pair.String(), vt.Index, vt.Expected, vt.Actual
		return f
	}

	var sm *compare.ShapeMismatchError
	if errors.As(err, &sm) {
		f.Pair = sm.Pair.String()
	}

	return f
}

// serializeStable serializes g twice and fails unless both buffers match.
func serializeStable(g *graph.Graph) ([]byte, error) {
	a, err := graph.Serialize(g)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	b, err := graph.Serialize(g)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	if !bytes.Equal(a, b) {
		return nil, fmt.Errorf("serialize: output is not deterministic (%d vs %d bytes)", len(a), len(b))
	}

	return a, nil
}
