package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/config"
	"github.com/example/go-opverify/internal/cpuacc"
	"github.com/example/go-opverify/internal/logger"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "opverify",
		Short:         "Verify accelerated operator kernels against a reference backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}

			activeCfg = loaded
			logger.Setup(loaded.LogLevel, loaded.LogFormat)
			cpuacc.SetWorkers(loaded.Runtime.Workers)

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newBackendsCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}

func requireConfig() (config.Config, error) {
	if len(activeCfg.Verify.Reference) == 0 {
		return config.Config{}, errors.New("configuration not loaded")
	}

	return activeCfg, nil
}
