package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-opverify/internal/suite"
)

func newReportCmd() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Print the result table of a saved verification report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := suite.LoadReport(args[0])
			if err != nil {
				return err
			}

			results := report.Results
			if failedOnly {
				results = results[:0:0]

				for _, r := range report.Results {
					if r.Status == suite.StatusFail || r.Status == suite.StatusError {
						results = append(results, r)
					}
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s started %s\n", report.RunID, report.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "reference %v, accelerated %v\n", report.Reference, report.Accelerated)
			printResults(w, results, report.Summary)

			if !report.Summary.OK() {
				return errVerificationFailed
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only list failed and errored scenarios")

	return cmd
}
