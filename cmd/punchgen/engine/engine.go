package engine

import (
	"fmt"
	"math/rand"
	"time"

	"attn-signals/internal/punch"
)

type GeneratorConfig struct {
	Scenario string // "mild", "cutting" or "drift"
	Students int
	Weeks    int
	Seed     int64
	Start    time.Time // snapped to its Monday
}

var courses = []string{"ENG", "MATH", "SCI", "HIST", "ART", "PE"}

var cohorts = []string{"9", "10", "11", "12"}

// profile holds one student's per-period probabilities at week 0.
type profile struct {
	absentDay float64
	cut       float64
	tardy     float64
	// drift is added to cut for every week of the term. Negative improves.
	drift float64
}

func newProfile(rng *rand.Rand, scenario string, i int) profile {
	p := profile{
		absentDay: 0.02 + rng.Float64()*0.04,
		cut:       rng.Float64() * 0.02,
		tardy:     0.03 + rng.Float64()*0.05,
	}

	switch scenario {
	case "cutting":
		if i%5 == 0 {
			p.cut = 0.15 + rng.Float64()*0.2
		}
	case "drift":
		switch i % 4 {
		case 0: // worsening
			p.drift = 0.02 + rng.Float64()*0.02
		case 1: // improving from a poor start
			p.cut = 0.3 + rng.Float64()*0.1
			p.drift = -0.03
		}
	}
	return p
}

func (p profile) cutAt(week int) float64 {
	c := p.cut + p.drift*float64(week)
	return min(max(c, 0), 0.9)
}

// Generate produces a full term of weekday punches: one per student, period
// and school day, with a deterministic sequence for a given seed.
func Generate(cfg GeneratorConfig) []punch.Punch {
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)
	}
	start := punch.DayOf(cfg.Start)
	for start.Weekday() != time.Monday {
		start = start.AddDate(0, 0, -1)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	profiles := make([]profile, cfg.Students)
	for i := range profiles {
		profiles[i] = newProfile(rng, cfg.Scenario, i)
	}

	punches := make([]punch.Punch, 0, cfg.Students*cfg.Weeks*5*len(courses))
	for w := 0; w < cfg.Weeks; w++ {
		for d := 0; d < 5; d++ {
			date := start.AddDate(0, 0, 7*w+d)
			for i, prof := range profiles {
				punches = append(punches, studentDay(rng, i, date, w, prof)...)
			}
		}
	}
	return punches
}

func studentDay(rng *rand.Rand, i int, date time.Time, week int, prof profile) []punch.Punch {
	id := fmt.Sprintf("S%04d", i+1)
	section := fmt.Sprintf("%02d", i%3+1)

	absent := rng.Float64() < prof.absentDay
	excused := absent && rng.Float64() < 0.5
	cut := prof.cutAt(week)

	out := make([]punch.Punch, 0, len(courses))
	for period, course := range courses {
		mark := punch.Present
		r := rng.Float64()
		switch {
		case excused:
			mark = punch.Excused
		case absent:
			mark = punch.Unexcused
		case period > 0 && r < cut:
			mark = punch.Unexcused
		case r < cut+prof.tardy:
			mark = punch.Tardy
		}

		out = append(out, punch.Punch{
			StudentID:   id,
			StudentName: "Student " + id[1:],
			Cohort:      cohorts[i%len(cohorts)],
			CounselorID: fmt.Sprintf("C%d", i%6+1),
			Date:        date,
			Period:      period + 1,
			Course:      course,
			Section:     section,
			TeacherID:   fmt.Sprintf("T-%s-%s", course, section),
			Mark:        mark,
		})
	}
	return out
}

// Save writes the punches as a JSONL punch log named after the term.
func Save(outDir, term string, punches []punch.Punch) error {
	store := punch.NewStore()
	store.Append(term, punches)
	return store.Save(outDir, term)
}
