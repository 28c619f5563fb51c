// Package awards picks one "most improved" student per course section,
// never awarding a student twice unless a section has no other choice.
package awards

import (
	"sort"

	"attn-signals/internal/punch"
	"attn-signals/internal/trend"
)

// State is the position of a candidate in the award lifecycle.
type State string

const (
	// Pending is a candidate that has not been evaluated yet.
	Pending State = "candidate"
	// Ineligible candidates did not meet the improvement criteria. Terminal.
	Ineligible State = "ineligible"
	// Eligible candidates are ranked but not yet resolved.
	Eligible State = "eligible"
	// Awarded candidates won their section. Terminal.
	Awarded State = "awarded"
	// NotAwarded candidates were eligible but lost their section. Terminal.
	NotAwarded State = "not_awarded"
)

// Params holds the eligibility and scoring policy.
type Params struct {
	trend.Windows

	// MaxBaseline excludes students who were already near-perfect.
	MaxBaseline float64
	// MinWeeks is the minimum number of distinct weeks in the series.
	MinWeeks int
	// SlopeWeight scales the trend slope's contribution to the score.
	SlopeWeight float64
}

// DefaultParams returns the award policy the engine ships with.
func DefaultParams() Params {
	return Params{
		Windows:     trend.DefaultWindows(),
		MaxBaseline: 0.95,
		MinWeeks:    3,
		SlopeWeight: 0.5,
	}
}

// Candidate is one student's improvement record in one course section.
type Candidate struct {
	StudentID string `json:"studentId"`
	Cohort    string `json:"cohort,omitempty"`
	Course    string `json:"course"`
	Section   string `json:"section"`

	BaselineRate     float64 `json:"baselineRate"`
	RecentRate       float64 `json:"recentRate"`
	TrendSlope       float64 `json:"trendSlope"`
	Weeks            int     `json:"weeks"`
	ImprovementScore float64 `json:"improvementScore"`
	Rank             int     `json:"rank,omitempty"` // 1-based within the section when eligible
	State            State   `json:"state"`
}

// SectionKey returns the course section of the candidate.
func (c Candidate) SectionKey() punch.SectionKey {
	return punch.SectionKey{Course: c.Course, Section: c.Section}
}

// Award is the single winner of a course section.
type Award struct {
	Course           string  `json:"course"`
	Section          string  `json:"section"`
	StudentID        string  `json:"studentId"`
	Cohort           string  `json:"cohort,omitempty"`
	BaselineRate     float64 `json:"baselineRate"`
	RecentRate       float64 `json:"recentRate"`
	ImprovementScore float64 `json:"improvementScore"`
	Rank             int     `json:"rank"`
	// Fallback is set when every ranked candidate had already won elsewhere
	// and the section's top candidate was awarded again.
	Fallback bool `json:"fallback"`
}

// Evaluate builds a candidate from a smoothed series and its fitted trend.
func Evaluate(s trend.Series, slope float64, weeks int, p Params) Candidate {
	baseline, recent := p.Rates(s.Rates())

	c := Candidate{
		StudentID:        s.Key.StudentID,
		Course:           s.Key.Course,
		Section:          s.Key.Section,
		BaselineRate:     baseline,
		RecentRate:       recent,
		TrendSlope:       slope,
		Weeks:            weeks,
		ImprovementScore: (recent - baseline) + p.SlopeWeight*slope,
		State:            Pending,
	}
	if len(s.Points) > 0 {
		c.Cohort = s.Points[0].Cohort
	}

	if recent > baseline && baseline < p.MaxBaseline && weeks >= p.MinWeeks {
		c.State = Eligible
	} else {
		c.State = Ineligible
	}
	return c
}

// Candidates evaluates every series. series and trends must be index-aligned
// as produced by trend.Analyze.
func Candidates(series []trend.Series, trends []trend.Result, p Params) []Candidate {
	out := make([]Candidate, 0, len(series))
	for i, s := range series {
		out = append(out, Evaluate(s, trends[i].Slope, trends[i].Weeks, p))
	}
	return out
}

// Rank groups eligible candidates by section, ordered by descending score with
// ties broken by student id, and assigns 1-based ranks. Sections are returned
// in (course, section) order.
func Rank(candidates []Candidate) ([]punch.SectionKey, map[punch.SectionKey][]*Candidate) {
	bySection := make(map[punch.SectionKey][]*Candidate)
	for i := range candidates {
		c := &candidates[i]
		if c.State != Eligible {
			continue
		}
		k := c.SectionKey()
		bySection[k] = append(bySection[k], c)
	}

	sections := make([]punch.SectionKey, 0, len(bySection))
	for k, list := range bySection {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].ImprovementScore != list[j].ImprovementScore {
				return list[i].ImprovementScore > list[j].ImprovementScore
			}
			return list[i].StudentID < list[j].StudentID
		})
		for i, c := range list {
			c.Rank = i + 1
		}
		sections = append(sections, k)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Less(sections[j]) })

	return sections, bySection
}

// awardLedger accumulates the students already awarded during one run.
type awardLedger struct {
	awarded map[string]bool
}

func newAwardLedger() *awardLedger {
	return &awardLedger{awarded: make(map[string]bool)}
}

func (l *awardLedger) has(studentID string) bool { return l.awarded[studentID] }

func (l *awardLedger) record(studentID string) { l.awarded[studentID] = true }

// Assign resolves one award per section that has eligible candidates.
// Candidates are updated in place to their terminal state.
func Assign(candidates []Candidate) []Award {
	sections, bySection := Rank(candidates)
	ledger := newAwardLedger()

	awards := make([]Award, 0, len(sections))
	for _, k := range sections {
		list := bySection[k]

		winner := -1
		for i, c := range list {
			if !ledger.has(c.StudentID) {
				winner = i
				break
			}
		}

		fallback := false
		if winner == -1 {
			winner = 0
			fallback = true
		}

		for i, c := range list {
			if i == winner {
				c.State = Awarded
			} else if c.State != Awarded {
				c.State = NotAwarded
			}
		}

		w := list[winner]
		ledger.record(w.StudentID)
		awards = append(awards, Award{
			Course:           w.Course,
			Section:          w.Section,
			StudentID:        w.StudentID,
			Cohort:           w.Cohort,
			BaselineRate:     w.BaselineRate,
			RecentRate:       w.RecentRate,
			ImprovementScore: w.ImprovementScore,
			Rank:             w.Rank,
			Fallback:         fallback,
		})
	}
	return awards
}
