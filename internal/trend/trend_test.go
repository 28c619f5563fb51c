package trend

import (
	"context"
	"testing"

	"attn-signals/internal/stats"
	"attn-signals/internal/weekly"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metric(student, course string, week int, rate float64) weekly.Metric {
	return weekly.Metric{
		Key:            weekly.Key{StudentID: student, Course: course, Section: "01", TeacherID: "T1"},
		Week:           stats.Week{Index: week},
		Cohort:         "9",
		AttendanceRate: rate,
	}
}

func TestParams_Classify(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, Improving, p.Classify(0.05))
	assert.Equal(t, Worsening, p.Classify(-0.05))
	assert.Equal(t, Stable, p.Classify(0.01))
	assert.Equal(t, Stable, p.Classify(-0.005))
}

func TestParams_Weight(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 1.0, p.Weight(4, 4))
	assert.InDelta(t, 0.7, p.Weight(4, 3), 1e-12)
	assert.InDelta(t, 0.2401, p.Weight(4, 0), 1e-12)
}

func TestSlope_WorseningSeries(t *testing.T) {
	p := DefaultParams()
	rates := []float64{1.0, 1.0, 0.5, 0.4, 0.3}

	points := make([]SmoothedMetric, len(rates))
	for i, r := range rates {
		points[i] = SmoothedMetric{
			Metric:               metric("S", "MATH", i, r),
			AttendanceRateSmooth: r,
			WeekWeight:           p.Weight(4, i),
		}
	}

	slope := Slope(points)
	assert.Less(t, slope, 0.0)
	assert.Equal(t, Worsening, p.Classify(slope))
}

func TestSmoothSeries(t *testing.T) {
	p := DefaultParams()
	points := []weekly.Metric{
		metric("S", "MATH", 0, 1.0),
		metric("S", "MATH", 1, 0.5),
		metric("S", "MATH", 2, 0.0),
		metric("S", "MATH", 3, 1.0),
	}

	got := SmoothSeries(points, 5, p)
	require.Len(t, got, 4)
	assert.Equal(t, 1.0, got[0].AttendanceRateSmooth, "first week equals its raw value")
	assert.InDelta(t, 0.75, got[1].AttendanceRateSmooth, 1e-9)
	assert.InDelta(t, 0.5, got[2].AttendanceRateSmooth, 1e-9)
	assert.InDelta(t, 0.5, got[3].AttendanceRateSmooth, 1e-9)
	assert.InDelta(t, 0.49, got[3].WeekWeight, 1e-12, "weights are relative to the slice maximum, not the series")
}

func TestAnalyze(t *testing.T) {
	p := DefaultParams()
	p.Workers = 2

	metrics := []weekly.Metric{
		metric("S2", "MATH", 2, 0.2),
		metric("S2", "MATH", 0, 1.0),
		metric("S2", "MATH", 1, 0.6),
		metric("S1", "ART", 0, 0.2),
		metric("S1", "ART", 1, 0.6),
		metric("S1", "ART", 2, 1.0),
		metric("S1", "ART", 3, 1.0),
		metric("S3", "MATH", 3, 1.0),
	}

	out, err := Analyze(context.Background(), metrics, p)
	require.NoError(t, err)

	assert.Equal(t, 3, out.MaxWeek)
	require.Len(t, out.Trends, 3)
	assert.Equal(t, "S1", out.Trends[0].StudentID)
	assert.Equal(t, Improving, out.Trends[0].Direction)
	assert.Equal(t, 4, out.Trends[0].Weeks)

	assert.Equal(t, "S2", out.Trends[1].StudentID)
	assert.Equal(t, Worsening, out.Trends[1].Direction)
	assert.Equal(t, 0, out.Trends[1].FirstWeek)
	assert.Equal(t, 2, out.Trends[1].LastWeek)

	assert.Equal(t, "S3", out.Trends[2].StudentID)
	assert.Equal(t, 0.0, out.Trends[2].Slope, "a single week has no slope")
	assert.Equal(t, Stable, out.Trends[2].Direction)

	require.Len(t, out.Smoothed, len(metrics))
	assert.Equal(t, 0, out.Smoothed[4].Index, "series are re-sorted by week before smoothing")
	assert.Equal(t, 1.0, out.Smoothed[4].AttendanceRateSmooth)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Analyze(ctx, []weekly.Metric{metric("S", "MATH", 0, 1)}, DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_Deterministic(t *testing.T) {
	var metrics []weekly.Metric
	for s := 0; s < 20; s++ {
		for w := 0; w < 6; w++ {
			metrics = append(metrics, metric(string(rune('A'+s)), "MATH", w, float64((s+w)%5)/4))
		}
	}

	p := DefaultParams()
	p.Workers = 4
	first, err := Analyze(context.Background(), metrics, p)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), metrics, p)
	require.NoError(t, err)
	assert.Equal(t, first.Trends, second.Trends)
	assert.Equal(t, first.Smoothed, second.Smoothed)
}

func TestWindows_Rates(t *testing.T) {
	w := DefaultWindows()
	baseline, recent := w.Rates([]float64{0.5, 0.5, 0.5, 0.5, 0.9, 1.0, 0.8})
	assert.InDelta(t, 0.5, baseline, 1e-9)
	assert.InDelta(t, 0.9, recent, 1e-9)

	baseline, recent = w.Rates([]float64{0.4, 0.6})
	assert.InDelta(t, 0.5, baseline, 1e-9)
	assert.InDelta(t, 0.5, recent, 1e-9)

	baseline, recent = w.Rates(nil)
	assert.Equal(t, 0.0, baseline)
	assert.Equal(t, 0.0, recent)
}

func TestAnalyzeStudents(t *testing.T) {
	weeks := []weekly.StudentWeek{
		{StudentID: "S1", Cohort: "9", Week: stats.Week{Index: 2}, AttendanceRate: 0.3},
		{StudentID: "S1", Cohort: "9", Week: stats.Week{Index: 0}, AttendanceRate: 1.0},
		{StudentID: "S1", Cohort: "9", Week: stats.Week{Index: 1}, AttendanceRate: 0.6},
		{StudentID: "S0", Cohort: "10", Week: stats.Week{Index: 2}, AttendanceRate: 1.0},
	}

	got := AnalyzeStudents(weeks, 2, DefaultParams(), DefaultWindows())
	require.Len(t, got, 2)

	assert.Equal(t, "S0", got[0].StudentID)
	assert.Equal(t, Stable, got[0].Direction)
	assert.Equal(t, 1.0, got[0].RecentRate)

	assert.Equal(t, "S1", got[1].StudentID)
	assert.Equal(t, "9", got[1].Cohort)
	assert.Equal(t, 3, got[1].Weeks)
	assert.Equal(t, Worsening, got[1].Direction)
}
