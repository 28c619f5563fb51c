package pipeline

import (
	"context"
	"testing"
	"time"

	"attn-signals/internal/awards"
	"attn-signals/internal/config"
	"attn-signals/internal/punch"
	"attn-signals/internal/tiering"
	"attn-signals/internal/trend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var termStart = time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)

var courses = []string{"HOMEROOM", "MATH", "ART"}

// mathMark decides the MATH mark of a student for a given week and weekday.
type mathMark func(week, weekday int) punch.Mark

func student(id string, weeks int, math mathMark) []punch.Punch {
	var out []punch.Punch
	for w := 0; w < weeks; w++ {
		for d := 0; d < 5; d++ {
			date := termStart.AddDate(0, 0, 7*w+d)
			for i, course := range courses {
				mark := punch.Present
				if course == "MATH" {
					mark = math(w, d)
				}
				out = append(out, punch.Punch{
					StudentID: id,
					Cohort:    "9",
					Date:      date,
					Period:    i + 1,
					Course:    course,
					Section:   "01",
					TeacherID: "T-" + course,
					Mark:      mark,
				})
			}
		}
	}
	return out
}

func fixture() []punch.Punch {
	var punches []punch.Punch
	punches = append(punches, student("IMPROVER", 6, func(w, d int) punch.Mark {
		if w < 3 && d < 3 {
			return punch.Unexcused
		}
		return punch.Present
	})...)
	punches = append(punches, student("DECLINER", 6, func(w, d int) punch.Mark {
		if w >= 3 {
			return punch.Unexcused
		}
		return punch.Present
	})...)
	punches = append(punches, student("STEADY", 6, func(int, int) punch.Mark { return punch.Present })...)
	return punches
}

func tierOf(t *testing.T, res *Result, id string) tiering.Assignment {
	t.Helper()
	for _, a := range res.Tiers {
		if a.StudentID == id {
			return a
		}
	}
	t.Fatalf("no tier for %s", id)
	return tiering.Assignment{}
}

func TestRun(t *testing.T) {
	punches := fixture()
	res, err := Run(context.Background(), punches, config.DefaultPolicy(), WithRunID("run-1"))
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Len(t, res.Classified, len(punches))
	assert.Equal(t, 3*6*5, len(res.Daily))
	assert.Equal(t, 3, res.Stats.Students)
	assert.Equal(t, 3, res.Stats.Sections)
	assert.Equal(t, 0, res.Stats.FirstWeek.Index)
	assert.Equal(t, 5, res.Stats.LastWeek.Index)
	assert.Equal(t, "2024-W37..2024-W42", res.Stats.ScoringPeriod)

	steady := tierOf(t, res, "STEADY")
	assert.Equal(t, tiering.Tier1, steady.Tier)
	assert.Equal(t, 0.0, steady.CompositeScore)

	decliner := tierOf(t, res, "DECLINER")
	assert.Equal(t, 15, decliner.Cuts)
	assert.Equal(t, trend.Worsening, decliner.TrendDirection)
	assert.Equal(t, tiering.Tier3, decliner.Tier)

	improver := tierOf(t, res, "IMPROVER")
	assert.Equal(t, 9, improver.Cuts)
	assert.Equal(t, trend.Improving, improver.TrendDirection)
	assert.Equal(t, tiering.Tier1, improver.Tier)

	require.Len(t, res.Awards, 1)
	assert.Equal(t, "MATH", res.Awards[0].Course)
	assert.Equal(t, "IMPROVER", res.Awards[0].StudentID)
	assert.False(t, res.Awards[0].Fallback)
	assert.Equal(t, 1, res.Stats.Awards)

	for _, c := range res.Candidates {
		if c.StudentID == "DECLINER" || c.StudentID == "STEADY" {
			assert.Equal(t, awards.Ineligible, c.State, "%s %s", c.StudentID, c.Course)
		}
	}
}

func TestRun_ThroughWeek(t *testing.T) {
	res, err := Run(context.Background(), fixture(), config.DefaultPolicy(), WithThroughWeek(2))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.LastWeek.Index)
	assert.Equal(t, 3*3*5*3, res.Stats.AfterWeek)
	assert.Equal(t, "2024-W37..2024-W39", res.Stats.ScoringPeriod)

	decliner := tierOf(t, res, "DECLINER")
	assert.Equal(t, 0, decliner.Cuts, "later cuts are outside the slice")
	assert.Equal(t, tiering.Tier1, decliner.Tier)
	assert.Empty(t, res.Awards, "a flat slice has no improvement")
}

func TestRun_DropsMalformed(t *testing.T) {
	punches := fixture()
	bad := punches[0]
	bad.Period = 12
	dup := punches[1]
	punches = append(punches, bad, dup)

	res, err := Run(context.Background(), punches, config.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Sanitize.Dropped)
	assert.Equal(t, 1, res.Stats.Sanitize.Duplicates)
	assert.Len(t, res.Classified, len(punches)-2)
}

func TestRun_Idempotent(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.Workers = 3

	first, err := Run(context.Background(), fixture(), policy)
	require.NoError(t, err)
	second, err := Run(context.Background(), fixture(), policy)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, nil, config.DefaultPolicy())
	assert.ErrorIs(t, err, tiering.ErrEmptyCohort)

	noCohort := fixture()
	noCohort[0].Cohort = ""
	for i := range noCohort {
		if noCohort[i].StudentID == "IMPROVER" {
			noCohort[i].Cohort = ""
		}
	}
	_, err = Run(ctx, noCohort, config.DefaultPolicy())
	assert.ErrorIs(t, err, tiering.ErrMissingCohort)

	bad := config.DefaultPolicy()
	bad.Decay = 0
	_, err = Run(ctx, fixture(), bad)
	assert.ErrorIs(t, err, config.ErrInvalidPolicy)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Run(cancelled, fixture(), config.DefaultPolicy())
	assert.ErrorIs(t, err, context.Canceled)
}
