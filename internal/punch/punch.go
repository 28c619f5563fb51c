package punch

import (
	"fmt"
	"strings"
	"time"
)

// Mark is the attendance code a teacher recorded for one period.
type Mark string

const (
	// Present indicates the student was in class on time.
	Present Mark = "present"
	// Tardy indicates the student arrived after the bell.
	Tardy Mark = "tardy"
	// Excused indicates an absence with a valid reason on file.
	Excused Mark = "excused"
	// Unexcused indicates an absence with no reason on file.
	Unexcused Mark = "unexcused"
	// Cut indicates the teacher explicitly recorded the period as skipped.
	Cut Mark = "cut"
)

// Marks lists every supported mark in reporting order.
var Marks = []Mark{Present, Tardy, Excused, Unexcused, Cut}

const (
	// MinPeriod and MaxPeriod bound the periods of a school day.
	MinPeriod = 1
	MaxPeriod = 9
)

// IsAttended reports whether the mark places the student in the room.
func (m Mark) IsAttended() bool {
	return m == Present || m == Tardy
}

// Valid reports whether m is one of the supported marks.
func (m Mark) Valid() bool {
	switch m {
	case Present, Tardy, Excused, Unexcused, Cut:
		return true
	}
	return false
}

// ParseMark resolves a raw attendance code into a Mark.
// Both the long names and the single-letter scan codes are accepted.
func ParseMark(raw string) (Mark, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "present", "p":
		return Present, nil
	case "tardy", "late", "l", "t":
		return Tardy, nil
	case "excused", "e":
		return Excused, nil
	case "unexcused", "absent", "a", "u":
		return Unexcused, nil
	case "cut", "c", "explicit-cut":
		return Cut, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMark, raw)
}

// Punch is one raw attendance mark for one student, one class period, one day.
type Punch struct {
	StudentID string    `json:"studentId"`
	Date      time.Time `json:"date"`
	Period    int       `json:"period"`
	Course    string    `json:"course"`
	Section   string    `json:"section"`
	TeacherID string    `json:"teacherId"`
	Mark      Mark      `json:"mark"`

	// Pass-through attributes used by report projections only.
	StudentName string `json:"studentName,omitempty"`
	Cohort      string `json:"cohort,omitempty"`
	CounselorID string `json:"counselorId,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
}

// Day returns the punch date normalised to midnight UTC.
func (p Punch) Day() time.Time {
	return DayOf(p.Date)
}

// DayOf normalises t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Identity returns the unique key of a punch: student, date, course, section and period.
func (p Punch) Identity() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d",
		p.StudentID,
		p.Day().Format(time.DateOnly),
		p.Course,
		p.Section,
		p.Period,
	)
}

// SectionKey identifies a course section.
type SectionKey struct {
	Course  string `json:"course"`
	Section string `json:"section"`
}

func (k SectionKey) String() string {
	return k.Course + "-" + k.Section
}

// Less orders section keys by course then section.
func (k SectionKey) Less(o SectionKey) bool {
	if k.Course != o.Course {
		return k.Course < o.Course
	}
	return k.Section < o.Section
}

// SectionKey returns the course section the punch belongs to.
func (p Punch) SectionKey() SectionKey {
	return SectionKey{Course: p.Course, Section: p.Section}
}
