// Package classify reconstructs each student's school day from disjoint
// period marks and flags cutting, lateness to school and likely data errors.
package classify

import (
	"sort"
	"time"

	"attn-signals/internal/punch"
)

// NoPeriod marks a day on which the student was never seen in class.
const NoPeriod = -1

// minPeriodsInSchool is the attended-period count that places a student in the building.
const minPeriodsInSchool = 2

// DailyState is the aggregate attendance picture of one student on one date.
type DailyState struct {
	StudentID string    `json:"studentId"`
	Date      time.Time `json:"date"`

	Present   int `json:"present"`
	Tardy     int `json:"tardy"`
	Excused   int `json:"excused"`
	Unexcused int `json:"unexcused"`
	Cut       int `json:"cut"`

	InSchool             bool `json:"inSchool"`
	FirstPresentPeriod   int  `json:"firstPresentPeriod"`
	NumPeriodsInClass    int  `json:"numPeriodsInClass"`
	OnlyPresentOnePeriod bool `json:"onlyPresentOnePeriod"`
}

// HasPresence reports whether the student attended any period that day.
func (d DailyState) HasPresence() bool {
	return d.FirstPresentPeriod != NoPeriod
}

// DeriveDailyState folds one student's punches for one date into a DailyState.
// The punches are expected to share student and date; the first punch supplies both.
func DeriveDailyState(punches []punch.Punch) DailyState {
	state := DailyState{FirstPresentPeriod: NoPeriod}
	if len(punches) == 0 {
		return state
	}

	state.StudentID = punches[0].StudentID
	state.Date = punches[0].Day()

	for _, p := range punches {
		switch p.Mark {
		case punch.Present:
			state.Present++
		case punch.Tardy:
			state.Tardy++
		case punch.Excused:
			state.Excused++
		case punch.Unexcused:
			state.Unexcused++
		case punch.Cut:
			state.Cut++
		}

		if p.Mark.IsAttended() {
			if state.FirstPresentPeriod == NoPeriod || p.Period < state.FirstPresentPeriod {
				state.FirstPresentPeriod = p.Period
			}
		}
	}

	state.NumPeriodsInClass = state.Present + state.Tardy
	state.InSchool = state.NumPeriodsInClass >= minPeriodsInSchool
	state.OnlyPresentOnePeriod = state.NumPeriodsInClass == 1

	return state
}

type dayKey struct {
	student string
	date    time.Time
}

// groupByDay buckets punch indexes by (student, date) and returns the keys in
// a deterministic order.
func groupByDay(punches []punch.Punch) (map[dayKey][]int, []dayKey) {
	groups := make(map[dayKey][]int)
	var keys []dayKey
	for i, p := range punches {
		k := dayKey{student: p.StudentID, date: p.Day()}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], i)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].student != keys[j].student {
			return keys[i].student < keys[j].student
		}
		return keys[i].date.Before(keys[j].date)
	})
	return groups, keys
}

// DailyStates derives one DailyState per (student, date) present in punches,
// ordered by student then date.
func DailyStates(punches []punch.Punch) []DailyState {
	groups, keys := groupByDay(punches)

	out := make([]DailyState, 0, len(keys))
	for _, k := range keys {
		out = append(out, DeriveDailyState(collect(punches, groups[k])))
	}
	return out
}

func collect(punches []punch.Punch, idx []int) []punch.Punch {
	day := make([]punch.Punch, len(idx))
	for i, j := range idx {
		day[i] = punches[j]
	}
	return day
}
