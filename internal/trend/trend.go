// Package trend smooths weekly attendance series and estimates
// recency-weighted trajectories for each student.
package trend

import (
	"context"
	"math"
	"sort"

	"attn-signals/internal/stats"
	"attn-signals/internal/weekly"

	"golang.org/x/sync/errgroup"
)

// Direction classifies a trend slope.
type Direction string

const (
	Improving Direction = "improving"
	Stable    Direction = "stable"
	Worsening Direction = "worsening"
)

// Params controls smoothing and trend estimation.
type Params struct {
	// Window is the trailing-mean window in weeks (minimum one available week).
	Window int
	// Decay is the per-week recency factor: weight = Decay^(maxWeek - week).
	Decay float64
	// Threshold is the absolute slope beyond which a trend is not stable.
	Threshold float64
	// Workers bounds the number of series processed concurrently. Zero means unbounded.
	Workers int
}

// DefaultParams returns the smoothing policy the engine ships with.
func DefaultParams() Params {
	return Params{
		Window:    3,
		Decay:     0.7,
		Threshold: 0.01,
	}
}

// Classify maps a slope onto a Direction using the threshold in p.
func (p Params) Classify(slope float64) Direction {
	switch {
	case slope > p.Threshold:
		return Improving
	case slope < -p.Threshold:
		return Worsening
	default:
		return Stable
	}
}

// Weight returns the recency weight of a week relative to maxWeek.
func (p Params) Weight(maxWeek, week int) float64 {
	return math.Pow(p.Decay, float64(maxWeek-week))
}

// SmoothedMetric is a weekly metric with its rolling means and recency weight.
type SmoothedMetric struct {
	weekly.Metric

	AttendanceRateSmooth  float64 `json:"attendanceRateSmooth"`
	PunctualityRateSmooth float64 `json:"punctualityRateSmooth"`
	WeekWeight            float64 `json:"weekWeight"`
}

// Result is the fitted trend of one (student, course, section) series.
type Result struct {
	weekly.SeriesKey

	Cohort    string    `json:"cohort,omitempty"`
	Weeks     int       `json:"weeks"`
	FirstWeek int       `json:"firstWeek"`
	LastWeek  int       `json:"lastWeek"`
	Slope     float64   `json:"slope"`
	Direction Direction `json:"direction"`
}

// Series is one smoothed time series, ordered by week index.
type Series struct {
	Key    weekly.SeriesKey
	Points []SmoothedMetric
}

// Rates returns the smoothed attendance rates of the series in week order.
func (s Series) Rates() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.AttendanceRateSmooth
	}
	return out
}

// MaxWeek returns the latest week index among metrics, or 0 when empty.
func MaxWeek(metrics []weekly.Metric) int {
	maxWeek := 0
	for i, m := range metrics {
		if i == 0 || m.Index > maxWeek {
			maxWeek = m.Index
		}
	}
	return maxWeek
}

// GroupSeries splits metrics into (student, course, section) series, each
// explicitly sorted by week index, with the series in key order. Rows of the
// same series and week taught by different teachers stay separate points.
func GroupSeries(metrics []weekly.Metric) map[weekly.SeriesKey][]weekly.Metric {
	groups := make(map[weekly.SeriesKey][]weekly.Metric)
	for _, m := range metrics {
		k := m.Series()
		groups[k] = append(groups[k], m)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			if g[i].Index != g[j].Index {
				return g[i].Index < g[j].Index
			}
			return g[i].TeacherID < g[j].TeacherID
		})
	}
	return groups
}

// SortedKeys returns the keys of a series map in (student, course, section) order.
func SortedKeys[V any](groups map[weekly.SeriesKey]V) []weekly.SeriesKey {
	keys := make([]weekly.SeriesKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// SmoothSeries computes the rolling means and recency weights of one series.
// The input must already be sorted by week index.
func SmoothSeries(points []weekly.Metric, maxWeek int, p Params) []SmoothedMetric {
	att := make([]float64, len(points))
	punc := make([]float64, len(points))
	for i, m := range points {
		att[i] = m.AttendanceRate
		punc[i] = m.PunctualityRate
	}

	attSmooth := stats.TrailingMean(att, p.Window)
	puncSmooth := stats.TrailingMean(punc, p.Window)

	out := make([]SmoothedMetric, len(points))
	for i, m := range points {
		out[i] = SmoothedMetric{
			Metric:                m,
			AttendanceRateSmooth:  attSmooth[i],
			PunctualityRateSmooth: puncSmooth[i],
			WeekWeight:            p.Weight(maxWeek, m.Index),
		}
	}
	return out
}

// Slope fits the smoothed attendance rate of a series against its position
// (0, 1, 2, ...) weighted by the recency weight of each point.
func Slope(points []SmoothedMetric) float64 {
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	w := make([]float64, len(points))
	for i, pt := range points {
		x[i] = float64(i)
		y[i] = pt.AttendanceRateSmooth
		w[i] = pt.WeekWeight
	}
	return stats.WeightedSlope(x, y, w)
}

// Output bundles the smoothed metrics and fitted trends of a slice of weeks.
type Output struct {
	MaxWeek  int              `json:"maxWeek"`
	Smoothed []SmoothedMetric `json:"smoothed"`
	Series   []Series         `json:"-"`
	Trends   []Result         `json:"trends"`
}

// Analyze smooths every series and fits its trend. Recency weights are
// relative to the latest week present in metrics, so callers slicing the term
// ("through week N") get weights anchored at N's slice. Series are processed
// concurrently; output order is by series key regardless of scheduling.
func Analyze(ctx context.Context, metrics []weekly.Metric, p Params) (*Output, error) {
	maxWeek := MaxWeek(metrics)
	groups := GroupSeries(metrics)
	keys := SortedKeys(groups)

	series := make([]Series, len(keys))
	trends := make([]Result, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	if p.Workers > 0 {
		g.SetLimit(p.Workers)
	}

	for i, k := range keys {
		points := groups[k]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			smoothed := SmoothSeries(points, maxWeek, p)
			slope := Slope(smoothed)

			series[i] = Series{Key: k, Points: smoothed}
			trends[i] = Result{
				SeriesKey: k,
				Cohort:    points[0].Cohort,
				Weeks:     distinctWeeks(points),
				FirstWeek: points[0].Index,
				LastWeek:  points[len(points)-1].Index,
				Slope:     slope,
				Direction: p.Classify(slope),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Output{MaxWeek: maxWeek, Series: series, Trends: trends}
	for _, s := range series {
		out.Smoothed = append(out.Smoothed, s.Points...)
	}
	return out, nil
}

func distinctWeeks(points []weekly.Metric) int {
	n := 0
	for i, m := range points {
		if i == 0 || m.Index != points[i-1].Index {
			n++
		}
	}
	return n
}
