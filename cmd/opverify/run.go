package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/harness"
	"github.com/example/go-opverify/internal/logger"
	"github.com/example/go-opverify/internal/metrics"
	"github.com/example/go-opverify/internal/suite"
)

var errVerificationFailed = errors.New("verification failed")

func newRunCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the verification scenarios against the configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var progress io.Writer
			if !quiet {
				progress = cmd.ErrOrStderr()
			}

			_, err = runVerification(cmd.Context(), cfg, cmd.OutOrStdout(), progress)

			return err
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Disable the progress bar")

	return cmd
}

// verifyPlan is the resolved input of a verification run.
type verifyPlan struct {
	reference   []string
	accelerated []string
	runner      suite.RunnerConfig
	scenarios   []suite.Scenario
}

func planVerification(cfg config.Config) (verifyPlan, error) {
	ref, err := config.NormalizeBackends(cfg.Verify.Reference)
	if err != nil {
		return verifyPlan{}, err
	}

	acc, err := config.NormalizeBackends(cfg.Verify.Accelerated)
	if err != nil {
		return verifyPlan{}, err
	}

	floatRule, err := cfg.Verify.FloatRule()
	if err != nil {
		return verifyPlan{}, err
	}

	reg, err := suite.Defaults()
	if err != nil {
		return verifyPlan{}, err
	}

	selected, err := reg.Filter(cfg.Verify.Filter)
	if err != nil {
		return verifyPlan{}, err
	}

	if len(selected) == 0 {
		return verifyPlan{}, fmt.Errorf("no scenario matches filter %q", cfg.Verify.Filter)
	}

	return verifyPlan{
		reference:   ref,
		accelerated: acc,
		runner:      suite.RunnerConfig{Reference: ref, Accelerated: acc, FloatRule: floatRule},
		scenarios:   selected,
	}, nil
}

func newHarness(cfg config.Config, set *backendSet, m *metrics.Metrics) *harness.Harness {
	return harness.New(set.reg,
		harness.WithLimits(harness.Limits{MaxTensorBytes: cfg.Verify.MaxTensorBytes}),
		harness.WithMetrics(m),
	)
}

// runVerification runs the selected scenarios, prints the result table to w
// and writes the optional report and metrics files. progress receives a
// progress bar when non-nil.
func runVerification(ctx context.Context, cfg config.Config, w, progress io.Writer) (suite.Report, error) {
	plan, err := planVerification(cfg)
	if err != nil {
		return suite.Report{}, err
	}

	set, err := newBackendSet(cfg.Runtime)
	if err != nil {
		return suite.Report{}, err
	}
	defer set.Close()

	m := metrics.New()
	runner := suite.NewRunner(newHarness(cfg, set, m), plan.runner, m)

	host, _ := os.Hostname()
	report := suite.Report{
		RunID:       uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		Host:        host,
		Reference:   plan.reference,
		Accelerated: plan.accelerated,
	}

	log := logger.Log.With("run_id", report.RunID)
	log.Info("verification started", "scenarios", len(plan.scenarios), "reference", plan.reference, "accelerated", plan.accelerated)

	var onResult func(suite.Result)

	if progress != nil {
		bar := progressbar.NewOptions(len(plan.scenarios),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("verifying"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		onResult = func(r suite.Result) {
			bar.Describe(r.Name)
			_ = bar.Add(1)
		}

		defer func() { _ = bar.Finish() }()
	}

	results, runErr := runner.Run(ctx, plan.scenarios, onResult)
	report.Results = results
	report.Summary = suite.Summarize(results)

	printResults(w, results, report.Summary)

	if err := writeArtifacts(cfg, report, m); err != nil {
		return report, err
	}

	log.Info("verification finished",
		"pass", report.Summary.Pass, "fail", report.Summary.Fail,
		"skip", report.Summary.Skip, "error", report.Summary.Error,
		"elapsed", time.Since(report.StartedAt).Round(time.Millisecond))

	if runErr != nil {
		return report, runErr
	}

	if !report.Summary.OK() {
		return report, fmt.Errorf("%w: %d failed, %d errored", errVerificationFailed, report.Summary.Fail, report.Summary.Error)
	}

	return report, nil
}

func writeArtifacts(cfg config.Config, report suite.Report, m *metrics.Metrics) error {
	if cfg.Verify.Report != "" {
		if err := suite.SaveReport(cfg.Verify.Report, report); err != nil {
			return err
		}

		logger.Log.Info("report written", "path", cfg.Verify.Report)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	return nil
}

func printResults(w io.Writer, results []suite.Result, s suite.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Scenario", "Status", "Detail", "Duration"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range results {
		table.Append([]string{r.Name, r.Status, detail(r), r.Duration.Round(time.Microsecond).String()})
	}

	table.SetFooter([]string{"", "", summaryLine(s), ""})
	table.Render()
}

func detail(r suite.Result) string {
	switch r.Status {
	case suite.StatusPass:
		if r.ReferenceOnly() {
			return "reference only: no operator ran on an accelerated backend"
		}

		return ""
	case suite.StatusFail:
		f := r.Failure
		if f == nil || f.Index < 0 {
			return r.Reason
		}

		return fmt.Sprintf("%s output %d [%s]: expected %g, got %g (%s)",
			f.Pair, f.Output, humanize.Comma(int64(f.Index)), f.Expected, f.Actual, f.Rule)
	default:
		return r.Reason
	}
}

func summaryLine(s suite.Summary) string {
	line := fmt.Sprintf("%d pass  %d fail  %d skip  %d error", s.Pass, s.Fail, s.Skip, s.Error)
	if s.ReferenceOnly > 0 {
		line += fmt.Sprintf("  (%d reference only)", s.ReferenceOnly)
	}

	return line
}
