package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/llm"
)

var (
	llmLimit     int
	llmBatchSize int
	llmProvider  string
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Resolve escalated records with the configured LLM provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		llmCfg := cfg.LLM
		if llmProvider != "" {
			llmCfg.Provider = llmProvider
		}
		if llmBatchSize > 0 {
			llmCfg.BatchSize = llmBatchSize
		}

		provider, err := llm.NewProvider(llmCfg)
		if err != nil {
			return err
		}

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

		runner := llm.NewRunner(st, provider, roster, rules, llmCfg)
		stats, err := runner.Run(ctx, llmLimit)
		if err != nil {
			return err
		}

		zap.L().Info("llm stage complete",
			zap.Int("claimed", stats.Claimed),
			zap.Int64("succeeded", stats.Succeeded),
			zap.Int64("failed", stats.Failed),
		)
		return nil
	},
}

func init() {
	llmCmd.Flags().IntVar(&llmLimit, "limit", 0, "resolve at most N records (0 = all pending)")
	llmCmd.Flags().IntVar(&llmBatchSize, "batch-size", 0, "records claimed per batch (0 = configured default)")
	llmCmd.Flags().StringVar(&llmProvider, "provider", "", "override the configured provider (anthropic, ollama, openai)")
	rootCmd.AddCommand(llmCmd)
}
