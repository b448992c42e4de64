package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/utb-library/affiliation-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-stage record counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := st.StatusReport(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "records:        %d\n", report.Total)
		fmt.Fprintf(out, "with authors:   %d\n", report.WithAuthors)
		fmt.Fprintf(out, "needs llm:      %d\n", report.NeedsLLM)

		fmt.Fprintln(out, "\nheuristic stage:")
		hKeys := make([]string, 0, len(report.Heuristic))
		for k := range report.Heuristic {
			hKeys = append(hKeys, string(k))
		}
		sort.Strings(hKeys)
		for _, k := range hKeys {
			fmt.Fprintf(out, "  %-14s %d\n", k, report.Heuristic[model.HeuristicStatus(k)])
		}

		fmt.Fprintln(out, "\nllm stage:")
		lKeys := make([]string, 0, len(report.LLM))
		for k := range report.LLM {
			lKeys = append(lKeys, string(k))
		}
		sort.Strings(lKeys)
		for _, k := range lKeys {
			fmt.Fprintf(out, "  %-14s %d\n", k, report.LLM[model.LLMStatus(k)])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
