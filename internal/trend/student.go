package trend

import (
	"sort"

	"attn-signals/internal/stats"
	"attn-signals/internal/weekly"
)

// StudentTrend is the trajectory of a student's attendance across all courses.
type StudentTrend struct {
	StudentID    string    `json:"studentId"`
	Cohort       string    `json:"cohort,omitempty"`
	Weeks        int       `json:"weeks"`
	Slope        float64   `json:"slope"`
	Direction    Direction `json:"direction"`
	BaselineRate float64   `json:"baselineRate"`
	RecentRate   float64   `json:"recentRate"`
}

// Windows selects the early and late portions of a smoothed series.
type Windows struct {
	// BaselineWeeks is the number of leading entries forming the baseline.
	BaselineWeeks int
	// RecentWeeks is the number of trailing entries forming the recent window.
	RecentWeeks int
}

// DefaultWindows returns a four-week baseline and a three-week recent window.
func DefaultWindows() Windows {
	return Windows{BaselineWeeks: 4, RecentWeeks: 3}
}

// Rates returns the mean of the first BaselineWeeks and the last RecentWeeks
// values. Short series use what they have, so the windows may overlap.
func (w Windows) Rates(values []float64) (baseline, recent float64) {
	if len(values) == 0 {
		return 0, 0
	}
	b := min(max(w.BaselineWeeks, 1), len(values))
	r := min(max(w.RecentWeeks, 1), len(values))
	return stats.Mean(values[:b]), stats.Mean(values[len(values)-r:])
}

// AnalyzeStudents fits one trend per student from the cross-course weekly
// totals. maxWeek anchors the recency weights and should be the latest week of
// the analysed slice.
func AnalyzeStudents(weeks []weekly.StudentWeek, maxWeek int, p Params, w Windows) []StudentTrend {
	byStudent := make(map[string][]weekly.StudentWeek)
	for _, sw := range weeks {
		byStudent[sw.StudentID] = append(byStudent[sw.StudentID], sw)
	}

	ids := make([]string, 0, len(byStudent))
	for id := range byStudent {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]StudentTrend, 0, len(ids))
	for _, id := range ids {
		rows := byStudent[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })

		rates := make([]float64, len(rows))
		for i, r := range rows {
			rates[i] = r.AttendanceRate
		}
		smooth := stats.TrailingMean(rates, p.Window)

		x := make([]float64, len(rows))
		wts := make([]float64, len(rows))
		cohort := ""
		for i, r := range rows {
			x[i] = float64(i)
			wts[i] = p.Weight(maxWeek, r.Index)
			if cohort == "" {
				cohort = r.Cohort
			}
		}

		slope := stats.WeightedSlope(x, smooth, wts)
		baseline, recent := w.Rates(smooth)

		out = append(out, StudentTrend{
			StudentID:    id,
			Cohort:       cohort,
			Weeks:        len(rows),
			Slope:        slope,
			Direction:    p.Classify(slope),
			BaselineRate: baseline,
			RecentRate:   recent,
		})
	}
	return out
}
