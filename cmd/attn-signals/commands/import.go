package commands

import (
	"fmt"

	"attn-signals/internal/ingest"
	"attn-signals/internal/punch"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	importInput string
	importTerm  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Append punches from an export file to a stored term",
	RunE: func(cmd *cobra.Command, args []string) error {
		punches, err := ingest.ReadFile(importInput)
		if err != nil {
			return err
		}

		clean, report := punch.Sanitize(punches)
		store := punch.NewStore()
		if err := store.Load(punchDir(), importTerm); err != nil {
			return err
		}
		added := store.Append(importTerm, clean)
		if err := store.Save(punchDir(), importTerm); err != nil {
			return err
		}

		log.Info().Str("term", importTerm).Int("added", added).Int("dropped", report.Dropped).Msg("Punches imported")
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new punches (%d total, latest %s)\n",
			importTerm, added, store.Count(importTerm), store.LatestDate(importTerm).Format("2006-01-02"))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importInput, "input", "i", "", "CSV, XLSX or JSONL punch file")
	importCmd.Flags().StringVar(&importTerm, "term", "", "term name, e.g. fall-2024")
	_ = importCmd.MarkFlagRequired("input")
	_ = importCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(importCmd)
}
