package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/bootstrap"
)

var bootstrapLimit int

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Copy publication records from the remote catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		remote := cfg.Remote
		if bootstrapLimit > 0 {
			remote.Limit = bootstrapLimit
		}

		stats, err := bootstrap.Copy(ctx, st, remote)
		if err != nil {
			return err
		}

		zap.L().Info("bootstrap complete",
			zap.Int("fetched", stats.Fetched),
			zap.Int("inserted", stats.Inserted),
		)
		return nil
	},
}

func init() {
	bootstrapCmd.Flags().IntVar(&bootstrapLimit, "limit", 0, "copy at most N records (0 = all)")
	rootCmd.AddCommand(bootstrapCmd)
}
