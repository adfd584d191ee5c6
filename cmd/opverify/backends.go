package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/backend"
	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/cpuacc"
	"github.com/example/go-opverify/internal/onnx"
	"github.com/example/go-opverify/internal/reference"
)

// backendSet is the registry of every backend this binary knows, plus the
// ort backend whose runtime must be released.
type backendSet struct {
	reg *backend.Registry
	ort *onnx.Backend
}

func newBackendSet(rc config.RuntimeConfig) (*backendSet, error) {
	ort := onnx.NewBackend(rc)

	reg, err := backend.NewRegistry(reference.New(), cpuacc.New(), ort)
	if err != nil {
		return nil, err
	}

	return &backendSet{reg: reg, ort: ort}, nil
}

func (s *backendSet) Close() error {
	return s.ort.Close()
}

// describe returns a one-line detail for an available backend.
func describe(name string, rc config.RuntimeConfig) string {
	switch name {
	case cpuacc.Name:
		return cpuacc.Describe()
	case onnx.Name:
		info, err := onnx.DetectRuntime(rc)
		if err != nil {
			return ""
		}

		return fmt.Sprintf("%s (%s)", info.LibraryPath, info.Version)
	default:
		return "portable float kernels"
	}
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends and whether they can run on this host",
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

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Backend", "Role", "Status", "Detail"})
			table.SetAutoWrapText(false)
			table.SetAlignment(tablewriter.ALIGN_LEFT)

			for _, name := range set.reg.Names() {
				b, _ := set.reg.Lookup(name)

				status, detail := "available", describe(name, cfg.Runtime)
				if err := b.Available(); err != nil {
					status, detail = "unavailable", err.Error()
				}

				table.Append([]string{name, role(name, cfg.Verify), status, detail})
			}

			table.Render()

			return nil
		},
	}
}

func role(name string, vc config.VerifyConfig) string {
	var roles []string

	for _, list := range []struct {
		role  string
		names []string
	}{{"reference", vc.Reference}, {"accelerated", vc.Accelerated}} {
		normalized, err := config.NormalizeBackends(list.names)
		if err != nil {
			continue
		}

		for _, n := range normalized {
			if n == name {
				roles = append(roles, list.role)
			}
		}
	}

	return strings.Join(roles, ",")
}
