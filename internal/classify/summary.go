package classify

import (
	"sort"

	"attn-signals/internal/stats"
)

// CutSummary tallies the derived flags for one student in one course section.
type CutSummary struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName,omitempty"`
	Cohort      string `json:"cohort,omitempty"`
	CounselorID string `json:"counselorId,omitempty"`
	Course      string `json:"course"`
	Section     string `json:"section"`
	TeacherID   string `json:"teacherId"`

	Punches          int     `json:"punches"`
	Cuts             int     `json:"cuts"`
	LateToSchool     int     `json:"lateToSchool"`
	AttendanceErrors int     `json:"attendanceErrors"`
	CutRate          float64 `json:"cutRate"`
}

type summaryKey struct {
	student, course, section, teacher string
}

// Summarize produces one CutSummary per (student, course, section, teacher),
// ordered by those fields.
func Summarize(classified []ClassifiedPunch) []CutSummary {
	groups := make(map[summaryKey]*CutSummary)
	for _, c := range classified {
		k := summaryKey{c.StudentID, c.Course, c.Section, c.TeacherID}
		s, ok := groups[k]
		if !ok {
			s = &CutSummary{
				StudentID:   c.StudentID,
				StudentName: c.StudentName,
				Cohort:      c.Cohort,
				CounselorID: c.CounselorID,
				Course:      c.Course,
				Section:     c.Section,
				TeacherID:   c.TeacherID,
			}
			groups[k] = s
		}

		s.Punches++
		if c.Cutting {
			s.Cuts++
		}
		if c.LateToSchool {
			s.LateToSchool++
		}
		if c.AttendanceError {
			s.AttendanceErrors++
		}
	}

	out := make([]CutSummary, 0, len(groups))
	for _, s := range groups {
		s.CutRate = stats.Ratio(float64(s.Cuts), float64(s.Punches))
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
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
	})
	return out
}
