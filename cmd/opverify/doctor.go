package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/doctor"
	"github.com/example/go-opverify/internal/graph"
	"github.com/example/go-opverify/internal/onnx"
	"github.com/example/go-opverify/internal/suite"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run local backend, runtime and scenario checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			set, err := newBackendSet(cfg.Runtime)
			if err != nil {
				return err
			}
			defer set.Close()

			dcfg, err := doctorConfig(cfg, set)
			if err != nil {
				return err
			}

			result := doctor.Run(dcfg, cmd.OutOrStdout())
			if result.Failed() {
				return fmt.Errorf("doctor found %d problem(s)", len(result.Failures()))
			}

			return nil
		},
	}
}

func doctorConfig(cfg config.Config, set *backendSet) (doctor.Config, error) {
	ref, err := config.NormalizeBackends(cfg.Verify.Reference)
	if err != nil {
		return doctor.Config{}, err
	}

	acc, err := config.NormalizeBackends(cfg.Verify.Accelerated)
	if err != nil {
		return doctor.Config{}, err
	}

	dcfg := doctor.Config{
		SkipORT:       !slices.Contains(ref, onnx.Name) && !slices.Contains(acc, onnx.Name),
		ORTOptional:   !slices.Contains(ref, onnx.Name),
		ORTAPIVersion: cfg.Runtime.ORTAPIVersion,
		ORTRuntime: func() (string, string, error) {
			info, err := onnx.DetectRuntime(cfg.Runtime)
			return info.LibraryPath, info.Version, err
		},
		Scenarios:  buildAllScenarios,
		ReportPath: cfg.Verify.Report,
	}

	for _, name := range slices.Concat(ref, acc) {
		b, ok := set.reg.Lookup(name)
		if !ok {
			continue
		}

		dcfg.Backends = append(dcfg.Backends, doctor.BackendProbe{
			Name:      name,
			Available: b.Available,
			Detail:    describe(name, cfg.Runtime),
			// An unavailable accelerator only skips scenarios.
			Optional: !slices.Contains(ref, name),
		})
	}

	return dcfg, nil
}

// buildAllScenarios builds and serializes every default scenario.
func buildAllScenarios() (int, error) {
	reg, err := suite.Defaults()
	if err != nil {
		return 0, err
	}

	var errs []error

	for _, s := range reg.All() {
		c, err := s.Build()
		if err == nil {
			_, err = graph.Serialize(c.Graph)
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	return reg.Len() - len(errs), errors.Join(errs...)
}
