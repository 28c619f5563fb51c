// Package pipeline runs the attendance signal stages end to end over one
// term of punches: sanitize, classify, aggregate, smooth, tier and award.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"attn-signals/internal/awards"
	"attn-signals/internal/classify"
	"attn-signals/internal/config"
	"attn-signals/internal/punch"
	"attn-signals/internal/stats"
	"attn-signals/internal/tiering"
	"attn-signals/internal/trend"
	"attn-signals/internal/weekly"

	"github.com/rs/zerolog/log"
)

// Stats describes the shape of a run.
type Stats struct {
	Sanitize      punch.SanitizeReport `json:"sanitize"`
	AfterWeek     int                  `json:"afterWeek"` // punches excluded by the through-week slice
	Analysed      int                  `json:"analysed"`
	Students      int                  `json:"students"`
	Sections      int                  `json:"sections"`
	FirstWeek     stats.Week           `json:"firstWeek"`
	LastWeek      stats.Week           `json:"lastWeek"`
	ScoringPeriod string               `json:"scoringPeriod"`
	Awards        int                  `json:"awards"`
	Fallbacks     int                  `json:"fallbacks"`
}

// Result holds every collection a run derives.
type Result struct {
	RunID    string             `json:"runId,omitempty"`
	Calendar stats.TermCalendar `json:"calendar"`
	Stats    Stats              `json:"stats"`

	Classified    []classify.ClassifiedPunch `json:"-"`
	Daily         []classify.DailyState      `json:"-"`
	Weekly        []weekly.Metric            `json:"-"`
	Smoothed      []trend.SmoothedMetric     `json:"-"`
	Trends        []trend.Result             `json:"-"`
	StudentTrends []trend.StudentTrend       `json:"-"`
	Tiers         []tiering.Assignment       `json:"-"`
	Candidates    []awards.Candidate         `json:"-"`
	Awards        []awards.Award             `json:"-"`
	CutSummaries  []classify.CutSummary      `json:"-"`
}

type options struct {
	runID       string
	throughWeek *int
}

// Option customises a run.
type Option func(*options)

// WithRunID tags log lines and the result with id.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithThroughWeek limits the run to punches whose week index is at most week.
// Week indexes come from the full term, and recency weights are anchored at
// the last week of the slice.
func WithThroughWeek(week int) Option {
	return func(o *options) { o.throughWeek = &week }
}

// Run derives every signal from punches. Any stage failure aborts the whole
// run; no partial result is returned.
func Run(ctx context.Context, punches []punch.Punch, policy config.Policy, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	logger := log.With().Str("run", o.runID).Logger()
	start := time.Now()

	// 1. Sanitize
	clean, report := punch.Sanitize(punches)
	logger.Info().
		Int("received", report.Received).
		Int("kept", report.Kept).
		Int("dropped", report.Dropped).
		Int("duplicates", report.Duplicates).
		Msg("Sanitized punches")

	dates := make([]time.Time, len(clean))
	for i, p := range clean {
		dates[i] = p.Date
	}
	cal := stats.NewTermCalendar(dates)

	// 2. Optional slice
	sliced := clean
	if o.throughWeek != nil {
		sliced = make([]punch.Punch, 0, len(clean))
		for _, p := range clean {
			if cal.WeekOf(p.Date).Index <= *o.throughWeek {
				sliced = append(sliced, p)
			}
		}
	}

	res := &Result{
		RunID:    o.runID,
		Calendar: cal,
		Stats: Stats{
			Sanitize:  report,
			AfterWeek: len(clean) - len(sliced),
			Analysed:  len(sliced),
		},
	}
	if len(sliced) == 0 {
		return nil, fmt.Errorf("pipeline: %w", tiering.ErrEmptyCohort)
	}

	// 3. Classify
	res.Classified = classify.Classify(sliced)
	res.Daily = classify.DailyStates(sliced)
	res.CutSummaries = classify.Summarize(res.Classified)

	// 4. Weekly
	res.Weekly = weekly.Aggregate(res.Classified, cal)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Smooth and trend
	tp := policy.Trend()
	out, err := trend.Analyze(ctx, res.Weekly, tp)
	if err != nil {
		return nil, fmt.Errorf("trend analysis: %w", err)
	}
	res.Smoothed = out.Smoothed
	res.Trends = out.Trends
	res.StudentTrends = trend.AnalyzeStudents(weekly.ByStudent(res.Weekly), out.MaxWeek, tp, policy.Windows())

	res.Stats.FirstWeek, res.Stats.LastWeek = weekRange(res.Weekly)
	res.Stats.ScoringPeriod = scoringPeriod(res.Stats.FirstWeek, res.Stats.LastWeek)

	// 6. Tier, once every student is scored
	res.Tiers, err = tiering.Assign(res.Classified, res.StudentTrends, res.Stats.ScoringPeriod, policy.Tiering())
	if err != nil {
		return nil, fmt.Errorf("tiering: %w", err)
	}

	// 7. Awards
	res.Candidates = awards.Candidates(out.Series, out.Trends, policy.Awards())
	res.Awards = awards.Assign(res.Candidates)

	res.Stats.Students = len(res.Tiers)
	res.Stats.Sections = countSections(res.Classified)
	res.Stats.Awards = len(res.Awards)
	for _, a := range res.Awards {
		if a.Fallback {
			res.Stats.Fallbacks++
		}
	}

	logger.Info().
		Int("students", res.Stats.Students).
		Int("sections", res.Stats.Sections).
		Int("weeks", res.Stats.LastWeek.Index-res.Stats.FirstWeek.Index+1).
		Int("awards", res.Stats.Awards).
		Int("fallbacks", res.Stats.Fallbacks).
		Dur("elapsed", time.Since(start)).
		Msg("Pipeline complete")

	return res, nil
}

func weekRange(metrics []weekly.Metric) (first, last stats.Week) {
	for i, m := range metrics {
		if i == 0 || m.Index < first.Index {
			first = m.Week
		}
		if i == 0 || m.Index > last.Index {
			last = m.Week
		}
	}
	return first, last
}

func scoringPeriod(first, last stats.Week) string {
	if first == last {
		return first.Label()
	}
	return first.Label() + ".." + last.Label()
}

func countSections(classified []classify.ClassifiedPunch) int {
	seen := make(map[punch.SectionKey]struct{})
	for _, c := range classified {
		seen[c.SectionKey()] = struct{}{}
	}
	return len(seen)
}
