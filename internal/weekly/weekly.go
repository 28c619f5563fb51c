// Package weekly rolls classified punches up into per-week attendance and
// punctuality rates for every student, course section and teacher pairing.
package weekly

import (
	"sort"

	"attn-signals/internal/classify"
	"attn-signals/internal/punch"
	"attn-signals/internal/stats"
)

// Key identifies the pairing a weekly metric belongs to, without the week.
type Key struct {
	StudentID string `json:"studentId"`
	Course    string `json:"course"`
	Section   string `json:"section"`
	TeacherID string `json:"teacherId"`
}

// SeriesKey identifies a (student, course, section) time series.
type SeriesKey struct {
	StudentID string `json:"studentId"`
	Course    string `json:"course"`
	Section   string `json:"section"`
}

// SectionKey returns the course section of the series.
func (k SeriesKey) SectionKey() punch.SectionKey {
	return punch.SectionKey{Course: k.Course, Section: k.Section}
}

// Less orders series keys by student, course then section.
func (k SeriesKey) Less(o SeriesKey) bool {
	if k.StudentID != o.StudentID {
		return k.StudentID < o.StudentID
	}
	if k.Course != o.Course {
		return k.Course < o.Course
	}
	return k.Section < o.Section
}

// Metric holds one week of marks for one pairing.
type Metric struct {
	Key
	stats.Week

	Cohort string `json:"cohort,omitempty"`

	Present   int `json:"present"`
	Tardy     int `json:"tardy"`
	Excused   int `json:"excused"`
	Unexcused int `json:"unexcused"` // includes explicit cuts
	Cuts      int `json:"cuts"`      // cutting punches, a subset of Unexcused

	AttendanceRate  float64 `json:"attendanceRate"`
	PunctualityRate float64 `json:"punctualityRate"`
}

// Series returns the (student, course, section) key of the metric.
func (m Metric) Series() SeriesKey {
	return SeriesKey{StudentID: m.StudentID, Course: m.Course, Section: m.Section}
}

// Total returns the number of punches aggregated into the metric.
func (m Metric) Total() int {
	return m.Present + m.Tardy + m.Excused + m.Unexcused
}

type groupKey struct {
	Key
	week int
}

// Aggregate groups classified punches by pairing and week. Weeks without
// punches produce no row. Rows are ordered by pairing then week index.
func Aggregate(classified []classify.ClassifiedPunch, cal stats.TermCalendar) []Metric {
	groups := make(map[groupKey]*Metric)

	for _, c := range classified {
		week := cal.WeekOf(c.Date)
		k := groupKey{
			Key:  Key{StudentID: c.StudentID, Course: c.Course, Section: c.Section, TeacherID: c.TeacherID},
			week: week.Index,
		}

		m, ok := groups[k]
		if !ok {
			m = &Metric{Key: k.Key, Week: week, Cohort: c.Cohort}
			groups[k] = m
		}

		switch c.Mark {
		case punch.Present:
			m.Present++
		case punch.Tardy:
			m.Tardy++
		case punch.Excused:
			m.Excused++
		case punch.Unexcused, punch.Cut:
			m.Unexcused++
		}
		if c.Cutting {
			m.Cuts++
		}
	}

	out := make([]Metric, 0, len(groups))
	for _, m := range groups {
		attended := float64(m.Present + m.Tardy)
		m.AttendanceRate = stats.Ratio(attended, float64(m.Total()))
		m.PunctualityRate = stats.Ratio(float64(m.Present), attended)
		out = append(out, *m)
	}

	Sort(out)
	return out
}

// Sort orders metrics by pairing then week index.
func Sort(metrics []Metric) {
	sort.Slice(metrics, func(i, j int) bool {
		a, b := metrics[i], metrics[j]
		if a.Key != b.Key {
			return lessKey(a.Key, b.Key)
		}
		return a.Index < b.Index
	})
}

func lessKey(a, b Key) bool {
	if a.StudentID != b.StudentID {
		return a.StudentID < b.StudentID
	}
	if a.Course != b.Course {
		return a.Course < b.Course
	}
	if a.Section != b.Section {
		return a.Section < b.Section
	}
	return a.TeacherID < b.TeacherID
}

// StudentWeek totals one student's marks across all courses for one week.
type StudentWeek struct {
	StudentID string `json:"studentId"`
	Cohort    string `json:"cohort,omitempty"`
	stats.Week

	Present   int `json:"present"`
	Tardy     int `json:"tardy"`
	Excused   int `json:"excused"`
	Unexcused int `json:"unexcused"`

	AttendanceRate  float64 `json:"attendanceRate"`
	PunctualityRate float64 `json:"punctualityRate"`
}

// ByStudent sums pairing metrics into one row per student and week,
// ordered by student then week index.
func ByStudent(metrics []Metric) []StudentWeek {
	type key struct {
		student string
		week    int
	}
	groups := make(map[key]*StudentWeek)

	for _, m := range metrics {
		k := key{m.StudentID, m.Index}
		sw, ok := groups[k]
		if !ok {
			sw = &StudentWeek{StudentID: m.StudentID, Cohort: m.Cohort, Week: m.Week}
			groups[k] = sw
		}
		if sw.Cohort == "" {
			sw.Cohort = m.Cohort
		}
		sw.Present += m.Present
		sw.Tardy += m.Tardy
		sw.Excused += m.Excused
		sw.Unexcused += m.Unexcused
	}

	out := make([]StudentWeek, 0, len(groups))
	for _, sw := range groups {
		attended := float64(sw.Present + sw.Tardy)
		total := attended + float64(sw.Excused+sw.Unexcused)
		sw.AttendanceRate = stats.Ratio(attended, total)
		sw.PunctualityRate = stats.Ratio(float64(sw.Present), attended)
		out = append(out, *sw)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].Index < out[j].Index
	})
	return out
}
