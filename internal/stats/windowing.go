package stats

import (
	"fmt"
	"math"
	"time"
)

// Week identifies an ISO week and its position within the analysed term.
type Week struct {
	Year  int `json:"isoYear"`
	Week  int `json:"isoWeek"`
	Index int `json:"weekIndex"` // 0-based, contiguous from the first week of the term
}

// Label returns the ISO label of the week (e.g., "2024-W37").
func (w Week) Label() string {
	return fmt.Sprintf("%d-W%02d", w.Year, w.Week)
}

// SnapToWeekStart normalises a timestamp to the Monday of its week (0:00:00).
func SnapToWeekStart(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday -> 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-(weekday-1), 0, 0, 0, 0, t.Location())
}

// TermCalendar maps dates onto contiguous week indexes anchored at the
// Monday of the earliest date in the term. Weeks crossing a year boundary
// keep counting up, unlike raw ISO week numbers.
type TermCalendar struct {
	Anchor time.Time `json:"anchor"`
}

// NewTermCalendar anchors a calendar at the week containing the earliest date.
func NewTermCalendar(dates []time.Time) TermCalendar {
	var earliest time.Time
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return TermCalendar{Anchor: SnapToWeekStart(earliest)}
}

// WeekOf returns the week a date falls in. Dates before the anchor get negative indexes.
func (c TermCalendar) WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()
	start := SnapToWeekStart(t)
	// Both ends are Mondays, so the day difference is a multiple of 7
	days := int(math.Round(start.Sub(c.Anchor).Hours() / 24))
	return Week{Year: year, Week: week, Index: days / 7}
}

// WeekStart returns the Monday of the week with the given index.
func (c TermCalendar) WeekStart(index int) time.Time {
	return c.Anchor.AddDate(0, 0, 7*index)
}
