package main

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/suite"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered scenarios selected by --filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			reg, err := suite.Defaults()
			if err != nil {
				return err
			}

			selected, err := reg.Filter(cfg.Verify.Filter)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Scenario", "Tags"})
			table.SetBorder(false)
			table.SetAlignment(tablewriter.ALIGN_LEFT)

			for _, s := range selected {
				table.Append([]string{s.Name, strings.Join(s.Tags, ",")})
			}

			table.Render()

			return nil
		},
	}
}
