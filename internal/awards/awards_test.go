package awards

import (
	"context"
	"testing"

	"attn-signals/internal/stats"
	"attn-signals/internal/trend"
	"attn-signals/internal/weekly"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(student, course string, rates ...float64) trend.Series {
	key := weekly.SeriesKey{StudentID: student, Course: course, Section: "01"}
	s := trend.Series{Key: key}
	for i, r := range rates {
		s.Points = append(s.Points, trend.SmoothedMetric{
			Metric: weekly.Metric{
				Key:    weekly.Key{StudentID: student, Course: course, Section: "01", TeacherID: "T1"},
				Week:   stats.Week{Index: i},
				Cohort: "9",
			},
			AttendanceRateSmooth: r,
		})
	}
	return s
}

func eligible(student, course string, score float64) Candidate {
	return Candidate{StudentID: student, Course: course, Section: "01", ImprovementScore: score, State: Eligible}
}

func TestEvaluate(t *testing.T) {
	p := DefaultParams()

	c := Evaluate(series("S", "MATH", 0.5, 0.5, 0.5, 0.5, 0.8, 0.9, 1.0), 0.1, 7, p)
	assert.InDelta(t, 0.5, c.BaselineRate, 1e-9)
	assert.InDelta(t, 0.9, c.RecentRate, 1e-9)
	assert.InDelta(t, 0.45, c.ImprovementScore, 1e-9)
	assert.Equal(t, "9", c.Cohort)
	assert.Equal(t, Eligible, c.State)

	tests := []struct {
		name  string
		rates []float64
		weeks int
	}{
		{"already excellent", []float64{0.96, 0.96, 0.96, 0.96, 0.98, 0.99, 1.0}, 7},
		{"declining", []float64{0.9, 0.9, 0.9, 0.9, 0.6, 0.5, 0.4}, 7},
		{"too few weeks", []float64{0.2, 0.9}, 2},
		{"flat", []float64{0.5, 0.5, 0.5, 0.5, 0.5}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Evaluate(series("S", "MATH", tt.rates...), 0, tt.weeks, p)
			assert.Equal(t, Ineligible, c.State)
		})
	}
}

func TestRank(t *testing.T) {
	candidates := []Candidate{
		eligible("B", "MATH", 0.3),
		eligible("A", "MATH", 0.3),
		eligible("C", "MATH", 0.5),
		{StudentID: "D", Course: "MATH", Section: "01", ImprovementScore: 0.9, State: Ineligible},
		eligible("E", "ART", 0.1),
	}

	sections, bySection := Rank(candidates)
	require.Len(t, sections, 2)
	assert.Equal(t, "ART", sections[0].Course)

	math := bySection[sections[1]]
	require.Len(t, math, 3)
	assert.Equal(t, "C", math[0].StudentID)
	assert.Equal(t, "A", math[1].StudentID, "ties broken by student id")
	assert.Equal(t, "B", math[2].StudentID)
	assert.Equal(t, 3, math[2].Rank)
	assert.Equal(t, 0, candidates[3].Rank, "ineligible candidates are not ranked")
}

func TestAssign_NoDoubleAward(t *testing.T) {
	// A tops both sections; ART is resolved first.
	candidates := []Candidate{
		eligible("A", "ART", 0.6),
		eligible("B", "ART", 0.2),
		eligible("A", "MATH", 0.8),
		eligible("C", "MATH", 0.4),
		eligible("B", "MATH", 0.1),
	}

	awards := Assign(candidates)
	require.Len(t, awards, 2)

	assert.Equal(t, "ART", awards[0].Course)
	assert.Equal(t, "A", awards[0].StudentID)
	assert.Equal(t, "MATH", awards[1].Course)
	assert.Equal(t, "C", awards[1].StudentID, "second-ranked candidate wins")
	assert.Equal(t, 2, awards[1].Rank)
	assert.False(t, awards[1].Fallback)

	states := map[string]State{}
	for _, c := range candidates {
		states[c.Course+"/"+c.StudentID] = c.State
	}
	assert.Equal(t, Awarded, states["ART/A"])
	assert.Equal(t, NotAwarded, states["ART/B"])
	assert.Equal(t, NotAwarded, states["MATH/A"])
	assert.Equal(t, Awarded, states["MATH/C"])
	assert.Equal(t, NotAwarded, states["MATH/B"])
}

func TestAssign_FallbackWhenExhausted(t *testing.T) {
	candidates := []Candidate{
		eligible("A", "ART", 0.6),
		eligible("A", "MATH", 0.5),
		{StudentID: "Z", Course: "SCI", Section: "01", State: Ineligible},
	}

	awards := Assign(candidates)
	require.Len(t, awards, 2, "sections without eligible candidates produce no award")
	assert.Equal(t, "A", awards[1].StudentID)
	assert.True(t, awards[1].Fallback)
	assert.Equal(t, Awarded, candidates[1].State)
	assert.Equal(t, Ineligible, candidates[2].State)
}

func TestAssign_UniqueUnlessFallback(t *testing.T) {
	var candidates []Candidate
	courses := []string{"ART", "BIO", "CHEM", "ENG", "MATH"}
	students := []string{"A", "B", "C"}
	for i, course := range courses {
		for j, s := range students {
			candidates = append(candidates, eligible(s, course, float64((i+j)%3)+0.1))
		}
	}

	awarded := map[string]int{}
	for _, a := range Assign(candidates) {
		awarded[a.StudentID]++
		if awarded[a.StudentID] > 1 {
			assert.True(t, a.Fallback, "%s awarded twice in %s without fallback", a.StudentID, a.Course)
		}
	}
	assert.Len(t, awarded, 3)
}

func TestCandidates_FromAnalyze(t *testing.T) {
	var metrics []weekly.Metric
	rates := []float64{0.4, 0.4, 0.5, 0.6, 0.8, 0.9, 1.0}
	for i, r := range rates {
		metrics = append(metrics, weekly.Metric{
			Key:            weekly.Key{StudentID: "S1", Course: "MATH", Section: "01", TeacherID: "T1"},
			Week:           stats.Week{Index: i},
			Cohort:         "9",
			AttendanceRate: r,
		})
	}
	metrics = append(metrics, weekly.Metric{
		Key:            weekly.Key{StudentID: "S2", Course: "MATH", Section: "01", TeacherID: "T1"},
		Week:           stats.Week{Index: 6},
		Cohort:         "9",
		AttendanceRate: 1,
	})

	out, err := trend.Analyze(context.Background(), metrics, trend.DefaultParams())
	require.NoError(t, err)

	candidates := Candidates(out.Series, out.Trends, DefaultParams())
	require.Len(t, candidates, 2)
	assert.Equal(t, Eligible, candidates[0].State)
	assert.Greater(t, candidates[0].TrendSlope, 0.0)
	assert.Equal(t, 7, candidates[0].Weeks)
	assert.Equal(t, Ineligible, candidates[1].State)

	awards := Assign(candidates)
	require.Len(t, awards, 1)
	assert.Equal(t, "S1", awards[0].StudentID)
}
