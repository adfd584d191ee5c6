package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/bench"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/harness"
	"github.com/example/go-opverify/internal/metrics"
	"github.com/example/go-opverify/internal/suite"
)

func newBenchCmd() *cobra.Command {
	var (
		runs             int
		format           string
		speedupThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench <scenario>",
		Short: "Time reference and accelerated invokes of one scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}

			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			plan, err := planVerification(cfg)
			if err != nil {
				return err
			}

			reg, err := suite.Defaults()
			if err != nil {
				return err
			}

			s, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown scenario %q (see 'opverify list')", args[0])
			}

			c, err := s.Build()
			if err != nil {
				return fmt.Errorf("build %s: %w", s.Name, err)
			}

			set, err := newBackendSet(cfg.Runtime)
			if err != nil {
				return err
			}
			defer set.Close()

			results, err := runBench(cmd.Context(), newHarness(cfg, set, metrics.New()), c, benchOptions{
				Reference:   plan.reference,
				Accelerated: plan.accelerated,
				Runs:        runs,
			})
			if err != nil {
				return err
			}

			summary := bench.Summarize(results)

			switch format {
			case "json":
				if err := bench.FormatJSON(results, summary, cmd.OutOrStdout()); err != nil {
					return err
				}
			default:
				bench.FormatTable(results, summary, cmd.OutOrStdout())
			}

			return bench.CheckSpeedupThreshold(summary.MeanSpeedup, speedupThreshold)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of timed runs per side")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&speedupThreshold, "speedup-threshold", 0, "Exit non-zero if mean speedup is below this value (0 = disabled)")

	return cmd
}

type benchOptions struct {
	Reference   []string
	Accelerated []string
	Runs        int
}

func runBench(ctx context.Context, h *harness.Harness, c *suite.Case, opts benchOptions) ([]bench.RunResult, error) {
	buf, err := graph.Serialize(c.Graph)
	if err != nil {
		return nil, err
	}

	results := make([]bench.RunResult, 0, opts.Runs)

	for i := range opts.Runs {
		ref, err := timeInvoke(ctx, h, buf, c.Inputs, opts.Reference, nil)
		if err != nil {
			return nil, fmt.Errorf("run %d reference: %w", i+1, err)
		}

		acc, err := timeInvoke(ctx, h, buf, c.Inputs, opts.Reference, opts.Accelerated)
		if err != nil {
			return nil, fmt.Errorf("run %d accelerated: %w", i+1, err)
		}

		results = append(results, bench.RunResult{
			Index:       i,
			Cold:        i == 0,
			Reference:   ref,
			Accelerated: acc,
			Speedup:     bench.CalcSpeedup(ref, acc),
		})
	}

	return results, nil
}

// timeInvoke prepares a fresh context and measures its Invoke alone.
func timeInvoke(ctx context.Context, h *harness.Harness, buf []byte, inputs [][]byte, backends, accel []string) (d time.Duration, err error) {
	c, err := h.CreateExecutionContext(buf, backends)
	if err != nil {
		return 0, err
	}

	defer func() { err = errors.Join(err, c.Close()) }()

	if len(accel) > 0 {
		if err := h.AttachAccelerator(c, accel); err != nil {
			return 0, err
		}
	}

	for i, in := range inputs {
		if err := c.FillRaw(i, in); err != nil {
			return 0, err
		}
	}

	start := time.Now()
	err = c.Invoke(ctx)

	return time.Since(start), err
}
