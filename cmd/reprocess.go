package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess-errors",
	Short: "Flip errored LLM records back to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ReprocessErrors(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("errored records requeued", zap.Int("records", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
}
