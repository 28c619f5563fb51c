package classify

import (
	"attn-signals/internal/punch"
)

// tardyOffset sequences a tardy arrival half a period after its nominal period.
const tardyOffset = 0.5

// ClassifiedPunch is a punch enriched with flags derived from its day.
type ClassifiedPunch struct {
	punch.Punch

	// NumPeriodsLate is nil when the student was never present that day.
	NumPeriodsLate  *float64 `json:"numPeriodsLate"`
	LateToSchool    bool     `json:"lateToSchool"`
	Cutting         bool     `json:"cutting"`
	AttendanceError bool     `json:"attendanceError"`
}

// ClassifyPunch derives the flags of a single punch from its DailyState.
// It is total: every (punch, state) pair yields a result.
func ClassifyPunch(p punch.Punch, day DailyState) ClassifiedPunch {
	out := ClassifiedPunch{Punch: p}

	if day.HasPresence() {
		late := float64(day.FirstPresentPeriod - p.Period)
		if p.Mark == punch.Tardy {
			late += tardyOffset
		}
		out.NumPeriodsLate = &late
		out.LateToSchool = day.InSchool && late > 0
	}

	skipped := p.Mark == punch.Unexcused &&
		day.InSchool &&
		day.HasPresence() &&
		p.Period >= day.FirstPresentPeriod
	out.Cutting = p.Mark == punch.Cut || skipped

	out.AttendanceError = day.OnlyPresentOnePeriod && p.Mark.IsAttended()

	return out
}

// Classify derives each day's state once and classifies every punch against it.
// The result has one record per input punch, in input order.
func Classify(punches []punch.Punch) []ClassifiedPunch {
	groups, keys := groupByDay(punches)

	out := make([]ClassifiedPunch, len(punches))
	for _, k := range keys {
		idx := groups[k]
		state := DeriveDailyState(collect(punches, idx))
		for _, i := range idx {
			out[i] = ClassifyPunch(punches[i], state)
		}
	}
	return out
}
