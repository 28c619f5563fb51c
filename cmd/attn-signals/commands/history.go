package commands

import (
	"fmt"

	"attn-signals/internal/classify"
	"attn-signals/internal/punch"

	"github.com/spf13/cobra"
)

var (
	historyTerm    string
	historyStudent string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the classified punch history of one student in a stored term",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := punch.NewStore()
		if err := store.Load(punchDir(), historyTerm); err != nil {
			return err
		}

		punches := store.ForStudent(historyTerm, historyStudent)
		if len(punches) == 0 {
			return fmt.Errorf("no punches for student %s in term %s", historyStudent, historyTerm)
		}

		w := cmd.OutOrStdout()
		for _, c := range classify.Classify(punches) {
			flags := ""
			if c.Cutting {
				flags += " cut"
			}
			if c.LateToSchool {
				flags += " late-to-school"
			}
			if c.AttendanceError {
				flags += " attendance-error"
			}
			fmt.Fprintf(w, "%s  p%d  %-10s %-4s %-10s%s\n",
				c.Date.Format("2006-01-02"), c.Period, c.Course, c.Section, c.Mark, flags)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyTerm, "term", "", "stored term name")
	historyCmd.Flags().StringVar(&historyStudent, "student", "", "student id")
	_ = historyCmd.MarkFlagRequired("term")
	_ = historyCmd.MarkFlagRequired("student")
	rootCmd.AddCommand(historyCmd)
}
