package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utb-library/affiliation-cli/internal/model"
	"github.com/utb-library/affiliation-cli/internal/roster"
)

var (
	importCSVPath  string
	importXLSXPath string
)

var importAuthorsCmd = &cobra.Command{
	Use:   "import-authors",
	Short: "Replace the internal author roster from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var authors []model.InternalAuthor
		var err error
		switch {
		case importCSVPath != "" && importXLSXPath != "":
			return eris.New("use either --csv or --xlsx, not both")
		case importCSVPath != "":
			authors, err = roster.ReadCSVFile(importCSVPath)
		case importXLSXPath != "":
			authors, err = roster.ReadXLSXFile(importXLSXPath)
		default:
			return eris.New("either --csv or --xlsx is required")
		}
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.ReplaceRoster(ctx, authors)
		if err != nil {
			return err
		}

		zap.L().Info("roster replaced", zap.Int("authors", n))
		return nil
	},
}

func init() {
	importAuthorsCmd.Flags().StringVar(&importCSVPath, "csv", "", "roster CSV file (full_name;faculty;ou)")
	importAuthorsCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "roster XLSX file, same columns")
	rootCmd.AddCommand(importAuthorsCmd)
}
