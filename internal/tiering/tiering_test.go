package tiering

import (
	"fmt"
	"testing"

	"attn-signals/internal/classify"
	"attn-signals/internal/punch"
	"attn-signals/internal/trend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func events(student, cohort string, cuts, absences, tardies, present int) []classify.ClassifiedPunch {
	var out []classify.ClassifiedPunch
	add := func(n int, mark punch.Mark, cutting bool) {
		for i := 0; i < n; i++ {
			out = append(out, classify.ClassifiedPunch{
				Punch:   punch.Punch{StudentID: student, Cohort: cohort, Mark: mark},
				Cutting: cutting,
			})
		}
	}
	add(cuts, punch.Unexcused, true)
	add(absences, punch.Unexcused, false)
	add(tardies, punch.Tardy, false)
	add(present, punch.Present, false)
	return out
}

func byStudent(assignments []Assignment) map[string]Assignment {
	out := make(map[string]Assignment, len(assignments))
	for _, a := range assignments {
		out[a.StudentID] = a
	}
	return out
}

func TestCountEvents(t *testing.T) {
	classified := events("S", "9", 2, 3, 4, 5)
	classified = append(classified, classify.ClassifiedPunch{Punch: punch.Punch{StudentID: "S", Mark: punch.Cut}, Cutting: true})
	classified = append(classified, classify.ClassifiedPunch{Punch: punch.Punch{StudentID: "S", Mark: punch.Excused}})

	counts, cohorts := CountEvents(classified)
	assert.Equal(t, Counts{Cuts: 3, Absences: 3, Tardies: 4}, counts["S"])
	assert.Equal(t, "9", cohorts["S"])
	assert.Equal(t, 15.0+6+4, DefaultParams().Score(counts["S"]))
}

func TestAssign_ZeroScoreIsTier1(t *testing.T) {
	var classified []classify.ClassifiedPunch
	classified = append(classified, events("CLEAN", "9", 0, 0, 0, 10)...)
	classified = append(classified, events("RISK", "9", 3, 0, 0, 10)...)

	trends := []trend.StudentTrend{{StudentID: "CLEAN", Direction: trend.Worsening, Slope: -0.2}}

	got, err := Assign(classified, trends, "2024-W40", DefaultParams())
	require.NoError(t, err)

	clean := byStudent(got)["CLEAN"]
	assert.Equal(t, Tier1, clean.Tier)
	assert.Equal(t, 0.0, clean.CompositeScore)
	assert.False(t, clean.TrendForced)
	assert.Equal(t, "2024-W40", clean.ScoringPeriod)
}

// A 100-student cohort: 5 with no events, 95 with distinct positive scores.
func TestAssign_PercentileTiers(t *testing.T) {
	var classified []classify.ClassifiedPunch
	for i := 0; i < 5; i++ {
		classified = append(classified, events(fmt.Sprintf("Z%02d", i), "9", 0, 0, 0, 5)...)
	}
	for i := 1; i <= 95; i++ {
		// Skewed distribution: tardy counts grow quadratically.
		classified = append(classified, events(fmt.Sprintf("S%02d", i), "9", 0, 0, i*i, 0)...)
	}

	got, err := Assign(classified, nil, "term", DefaultParams())
	require.NoError(t, err)
	require.Len(t, got, 100)

	tiers := map[Tier][]string{}
	for _, a := range got {
		tiers[a.Tier] = append(tiers[a.Tier], a.StudentID)
	}

	assert.ElementsMatch(t, []string{"S91", "S92", "S93", "S94", "S95"}, tiers[Tier3])
	assert.Len(t, tiers[Tier2], 14)
	assert.Len(t, tiers[Tier1], 81)

	m := byStudent(got)
	assert.Equal(t, Tier1, m["Z00"].Tier)
	assert.Equal(t, 1.0, m["S95"].PercentileRank)
}

func TestAssign_TiesAtThresholdAreInclusive(t *testing.T) {
	var classified []classify.ClassifiedPunch
	for i := 0; i < 14; i++ {
		classified = append(classified, events(fmt.Sprintf("LOW%02d", i), "9", 0, 0, 1, 0)...)
	}
	for i := 0; i < 6; i++ {
		classified = append(classified, events(fmt.Sprintf("TOP%02d", i), "9", 2, 0, 0, 0)...)
	}

	got, err := Assign(classified, nil, "term", DefaultParams())
	require.NoError(t, err)

	for _, a := range got {
		if a.CompositeScore == 10 {
			assert.Equal(t, 10.0, a.Tier3Threshold)
			assert.Equal(t, Tier3, a.Tier, "%s ties at the P95 threshold", a.StudentID)
		} else {
			assert.Equal(t, Tier1, a.Tier)
		}
	}
}

func TestAssign_TrendOverride(t *testing.T) {
	var classified []classify.ClassifiedPunch
	for i := 0; i < 10; i++ {
		classified = append(classified, events(fmt.Sprintf("S%02d", i), "9", 0, i+1, 0, 5)...)
	}
	trends := []trend.StudentTrend{
		{StudentID: "S00", Direction: trend.Worsening, Slope: -0.1, BaselineRate: 0.9, RecentRate: 0.6},
		{StudentID: "S01", Direction: trend.Improving, Slope: 0.1},
	}

	got, err := Assign(classified, trends, "term", DefaultParams())
	require.NoError(t, err)
	m := byStudent(got)

	assert.Equal(t, Tier1, m["S00"].PercentileTier)
	assert.Equal(t, Tier3, m["S00"].Tier)
	assert.True(t, m["S00"].TrendForced)
	assert.Equal(t, 0.6, m["S00"].RecentRate)
	assert.Equal(t, Tier1, m["S01"].Tier)

	p := DefaultParams()
	p.TrendOverride = false
	got, err = Assign(classified, trends, "term", p)
	require.NoError(t, err)
	assert.Equal(t, Tier1, byStudent(got)["S00"].Tier)
}

func TestAssign_Monotonic(t *testing.T) {
	var classified []classify.ClassifiedPunch
	for i := 0; i < 40; i++ {
		classified = append(classified, events(fmt.Sprintf("S%02d", i), "10", i%7, i%5, i%3, 2)...)
	}

	got, err := Assign(classified, nil, "term", DefaultParams())
	require.NoError(t, err)

	for _, a := range got {
		for _, b := range got {
			if a.CompositeScore > b.CompositeScore {
				assert.GreaterOrEqual(t, a.Tier, b.Tier, "%s (%.0f) vs %s (%.0f)", a.StudentID, a.CompositeScore, b.StudentID, b.CompositeScore)
			}
		}
	}
}

func TestAssign_CohortsAreIndependent(t *testing.T) {
	var classified []classify.ClassifiedPunch
	classified = append(classified, events("A1", "9", 1, 0, 0, 0)...)
	classified = append(classified, events("A2", "9", 10, 0, 0, 0)...)
	classified = append(classified, events("B1", "12", 1, 0, 0, 0)...)

	got, err := Assign(classified, nil, "term", DefaultParams())
	require.NoError(t, err)
	m := byStudent(got)

	assert.Equal(t, Tier3, m["B1"].Tier, "alone in its cohort, B1 sits at its own P95")
	assert.Equal(t, Tier1, m["A1"].Tier)
	assert.Equal(t, Tier3, m["A2"].Tier)

	assert.Equal(t, "12", got[0].Cohort, "ordered by cohort label")

	dist := Distribution(got)
	assert.Equal(t, 1, dist["9"][Tier1])
	assert.Equal(t, 1, dist["9"][Tier3])
	assert.Equal(t, 1, dist["12"][Tier3])
}

func TestAssign_Errors(t *testing.T) {
	_, err := Assign(nil, nil, "term", DefaultParams())
	assert.ErrorIs(t, err, ErrEmptyCohort)

	classified := events("S", "", 1, 0, 0, 0)
	_, err = Assign(classified, nil, "term", DefaultParams())
	assert.ErrorIs(t, err, ErrMissingCohort)

	p := DefaultParams()
	p.DefaultCohort = "unassigned"
	got, err := Assign(classified, nil, "term", p)
	require.NoError(t, err)
	assert.Equal(t, "unassigned", got[0].Cohort)
}
