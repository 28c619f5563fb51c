package commands

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"attn-signals/internal/export"
	"attn-signals/internal/ingest"
	"attn-signals/internal/pipeline"
	"attn-signals/internal/punch"
	"attn-signals/internal/tiering"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	analyzeInput       string
	analyzeTerm        string
	analyzeOut         string
	analyzeThroughWeek int
	analyzeSince       string
	analyzeUntil       string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the signal pipeline over a punch file or stored term and export the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (analyzeInput == "") == (analyzeTerm == "") {
			return fmt.Errorf("exactly one of --input or --term is required")
		}

		source := analyzeInput
		var punches []punch.Punch
		if analyzeInput != "" {
			var err error
			punches, err = ingest.ReadFile(analyzeInput)
			if err != nil {
				return err
			}
		} else {
			since, until, err := parseRange(analyzeSince, analyzeUntil)
			if err != nil {
				return err
			}
			store := punch.NewStore()
			if err := store.Load(punchDir(), analyzeTerm); err != nil {
				return err
			}
			punches = store.InRange(analyzeTerm, since, until)
			source = filepath.Join(punchDir(), analyzeTerm+".jsonl")
		}

		runID := uuid.NewString()
		opts := []pipeline.Option{pipeline.WithRunID(runID)}
		if analyzeThroughWeek >= 0 {
			opts = append(opts, pipeline.WithThroughWeek(analyzeThroughWeek))
		}

		res, err := pipeline.Run(cmd.Context(), punches, *policy, opts...)
		if err != nil {
			return err
		}

		out := analyzeOut
		if out == "" {
			out = filepath.Join(cfg.OutputDir, runID)
		}
		files, err := export.Write(out, res, export.Manifest{
			Input:       source,
			GeneratedAt: time.Now().UTC(),
			Policy:      *policy,
		})
		if err != nil {
			return err
		}

		printSummary(cmd, res, out, len(files))
		log.Debug().Str("run", runID).Str("out", out).Msg("Analyze finished")
		return nil
	},
}

func printSummary(cmd *cobra.Command, res *pipeline.Result, out string, files int) {
	w := cmd.OutOrStdout()
	s := res.Stats
	fmt.Fprintf(w, "Run %s\n", res.RunID)
	fmt.Fprintf(w, "  punches: %d analysed, %d dropped, %d duplicates\n", s.Analysed, s.Sanitize.Dropped, s.Sanitize.Duplicates)
	fmt.Fprintf(w, "  period:  %s\n", s.ScoringPeriod)
	fmt.Fprintf(w, "  students: %d, sections: %d\n", s.Students, s.Sections)

	dist := tiering.Distribution(res.Tiers)
	cohorts := make([]string, 0, len(dist))
	for c := range dist {
		cohorts = append(cohorts, c)
	}
	sort.Strings(cohorts)
	for _, c := range cohorts {
		fmt.Fprintf(w, "  cohort %-6s tier1=%d tier2=%d tier3=%d\n", c, dist[c][tiering.Tier1], dist[c][tiering.Tier2], dist[c][tiering.Tier3])
	}

	fmt.Fprintf(w, "  awards: %d (%d fallback)\n", s.Awards, s.Fallbacks)
	fmt.Fprintf(w, "  wrote %d files to %s\n", files, out)
}

// parseRange parses optional YYYY-MM-DD bounds. Empty bounds are open.
func parseRange(since, until string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if since != "" {
		if from, err = time.Parse(time.DateOnly, since); err != nil {
			return from, to, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if to, err = time.Parse(time.DateOnly, until); err != nil {
			return from, to, fmt.Errorf("invalid --until: %w", err)
		}
	}
	return from, to, nil
}

func punchDir() string {
	return filepath.Join(cfg.DataPath, "punches")
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "CSV, XLSX or JSONL punch file")
	analyzeCmd.Flags().StringVar(&analyzeTerm, "term", "", "analyse a term previously stored with import")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "output directory (defaults to OUTPUT_PATH/<run id>)")
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "", "with --term, first date to include (YYYY-MM-DD)")
	analyzeCmd.Flags().StringVar(&analyzeUntil, "until", "", "with --term, last date to include (YYYY-MM-DD)")
	analyzeCmd.Flags().IntVar(&analyzeThroughWeek, "through-week", -1, "only analyse weeks up to this zero-based index")
	rootCmd.AddCommand(analyzeCmd)
}
