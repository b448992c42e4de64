package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/heuristics"
	"github.com/utb-library/affiliation-cli/internal/match"
)

var (
	heuristicsLimit     int
	heuristicsBatchSize int
	heuristicsReprocess bool
)

var heuristicsCmd = &cobra.Command{
	Use:   "heuristics",
	Short: "Run the heuristic matching stage over pending records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rules, err := loadRules()
		if err != nil {
			return err
		}
		roster, err := loadRoster(ctx, st)
		if err != nil {
			return err
		}

		matcher := match.NewMatcher(roster, rules, cfg.Match.SimilarityThreshold)

		batchSize := cfg.Heuristics.BatchSize
		if heuristicsBatchSize > 0 {
			batchSize = heuristicsBatchSize
		}

		runner := heuristics.NewRunner(st, matcher, batchSize)
		stats, err := runner.Run(ctx, heuristicsLimit, heuristicsReprocess)
		if err != nil {
			return err
		}

		zap.L().Info("heuristics complete",
			zap.Int("processed", stats.Processed),
			zap.Int("matched", stats.Matched),
			zap.Int("escalated", stats.Escalated),
			zap.Int("empty", stats.Empty),
		)
		return nil
	},
}

func init() {
	heuristicsCmd.Flags().IntVar(&heuristicsLimit, "limit", 0, "process at most N records (0 = all)")
	heuristicsCmd.Flags().IntVar(&heuristicsBatchSize, "batch-size", 0, "records per batch (0 = configured default)")
	heuristicsCmd.Flags().BoolVar(&heuristicsReprocess, "reprocess-errors", false, "also pick up records whose previous pass errored")
	rootCmd.AddCommand(heuristicsCmd)
}
