// Package tiering ranks students into MTSS intervention tiers from a
// composite risk score, cohort percentiles and their attendance trend.
package tiering

import (
	"fmt"
	"sort"

	"attn-signals/internal/classify"
	"attn-signals/internal/punch"
	"attn-signals/internal/stats"
	"attn-signals/internal/trend"
)

// Tier is the MTSS intervention level, 1 (universal) to 3 (intensive).
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// Params holds the tiering policy.
type Params struct {
	CutWeight     float64
	AbsenceWeight float64
	TardyWeight   float64

	// Tier2Percentile and Tier3Percentile are inclusive cohort thresholds (0..100).
	Tier2Percentile float64
	Tier3Percentile float64

	// TrendOverride forces Tier 3 for scored students whose trend is worsening.
	TrendOverride bool

	// DefaultCohort is used for students without a cohort label. Empty means
	// a missing label aborts the run.
	DefaultCohort string
}

// DefaultParams returns weights 5/2/1 with P80/P95 thresholds and the trend override on.
func DefaultParams() Params {
	return Params{
		CutWeight:       5,
		AbsenceWeight:   2,
		TardyWeight:     1,
		Tier2Percentile: 80,
		Tier3Percentile: 95,
		TrendOverride:   true,
	}
}

// Score weighs a student's counts into a composite risk score.
func (p Params) Score(c Counts) float64 {
	return p.CutWeight*float64(c.Cuts) + p.AbsenceWeight*float64(c.Absences) + p.TardyWeight*float64(c.Tardies)
}

// Counts are the risk events of one student over a scoring period.
type Counts struct {
	Cuts     int `json:"cuts"`
	Absences int `json:"absences"`
	Tardies  int `json:"tardies"`
}

// Assignment is the tier of one student for one scoring period.
type Assignment struct {
	StudentID     string `json:"studentId"`
	Cohort        string `json:"cohort"`
	ScoringPeriod string `json:"scoringPeriod"`
	Counts

	CompositeScore float64 `json:"compositeScore"`
	PercentileRank float64 `json:"percentileRank"`
	Tier2Threshold float64 `json:"tier2Threshold"`
	Tier3Threshold float64 `json:"tier3Threshold"`
	PercentileTier Tier    `json:"percentileTier"`

	TrendSlope     float64         `json:"trendSlope"`
	TrendDirection trend.Direction `json:"trendDirection"`
	TrendForced    bool            `json:"trendForced"`
	BaselineRate   float64         `json:"baselineRate"`
	RecentRate     float64         `json:"recentRate"`

	Tier Tier `json:"tier"`
}

// CountEvents tallies cuts, non-cut unexcused absences and tardies per student,
// and remembers each student's cohort label.
func CountEvents(classified []classify.ClassifiedPunch) (map[string]Counts, map[string]string) {
	counts := make(map[string]Counts)
	cohorts := make(map[string]string)

	for _, c := range classified {
		cnt := counts[c.StudentID]
		switch {
		case c.Cutting:
			cnt.Cuts++
		case c.Mark == punch.Unexcused:
			cnt.Absences++
		case c.Mark == punch.Tardy:
			cnt.Tardies++
		}
		counts[c.StudentID] = cnt

		if cohorts[c.StudentID] == "" && c.Cohort != "" {
			cohorts[c.StudentID] = c.Cohort
		}
	}
	return counts, cohorts
}

// Assign tiers every student in classified. Scores for a whole cohort are
// materialised before any threshold is computed. The returned assignments are
// ordered by cohort then student.
func Assign(classified []classify.ClassifiedPunch, trends []trend.StudentTrend, period string, p Params) ([]Assignment, error) {
	counts, cohorts := CountEvents(classified)
	if len(counts) == 0 {
		return nil, ErrEmptyCohort
	}

	trendByStudent := make(map[string]trend.StudentTrend, len(trends))
	for _, t := range trends {
		trendByStudent[t.StudentID] = t
	}

	// 1. Per-student scoring
	byCohort := make(map[string][]Assignment)
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		cohort := cohorts[id]
		if cohort == "" {
			cohort = p.DefaultCohort
		}
		if cohort == "" {
			return nil, fmt.Errorf("%w: student %s", ErrMissingCohort, id)
		}

		c := counts[id]
		a := Assignment{
			StudentID:      id,
			Cohort:         cohort,
			ScoringPeriod:  period,
			Counts:         c,
			CompositeScore: p.Score(c),
			TrendDirection: trend.Stable,
		}
		if t, ok := trendByStudent[id]; ok {
			a.TrendSlope = t.Slope
			a.TrendDirection = t.Direction
			a.BaselineRate = t.BaselineRate
			a.RecentRate = t.RecentRate
		}
		byCohort[cohort] = append(byCohort[cohort], a)
	}

	// 2. Cohort thresholds, once every member is scored
	cohortNames := make([]string, 0, len(byCohort))
	for name := range byCohort {
		cohortNames = append(cohortNames, name)
	}
	sort.Strings(cohortNames)

	var out []Assignment
	for _, name := range cohortNames {
		members := byCohort[name]
		out = append(out, tierCohort(members, p)...)
	}
	return out, nil
}

// tierCohort applies percentile thresholds computed over the positive scores
// of one cohort, then the trend override.
func tierCohort(members []Assignment, p Params) []Assignment {
	var positive []float64
	for _, m := range members {
		if m.CompositeScore > 0 {
			positive = append(positive, m.CompositeScore)
		}
	}

	t2 := stats.Percentile(positive, p.Tier2Percentile)
	t3 := stats.Percentile(positive, p.Tier3Percentile)

	out := make([]Assignment, 0, len(members))
	for _, a := range members {
		a.Tier2Threshold = t2
		a.Tier3Threshold = t3
		a.PercentileTier = Tier1

		if a.CompositeScore > 0 {
			a.PercentileRank = stats.PercentileRank(positive, a.CompositeScore)
			switch {
			case a.CompositeScore >= t3:
				a.PercentileTier = Tier3
			case a.CompositeScore >= t2:
				a.PercentileTier = Tier2
			}
		}

		// A zero score stays in Tier 1 whatever the trend.
		a.Tier = a.PercentileTier
		if p.TrendOverride && a.CompositeScore > 0 && a.TrendDirection == trend.Worsening {
			a.TrendForced = a.PercentileTier < Tier3
			a.Tier = Tier3
		}
		out = append(out, a)
	}
	return out
}

// Distribution counts assignments per cohort and tier.
func Distribution(assignments []Assignment) map[string]map[Tier]int {
	out := make(map[string]map[Tier]int)
	for _, a := range assignments {
		if out[a.Cohort] == nil {
			out[a.Cohort] = make(map[Tier]int)
		}
		out[a.Cohort][a.Tier]++
	}
	return out
}
