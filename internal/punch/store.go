package punch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store provides thread-safe, chronological storage of punches partitioned by term.
type Store struct {
	mu    sync.RWMutex
	terms map[string][]Punch
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{
		terms: make(map[string][]Punch),
	}
}

// Append adds punches to a term, skipping identities already stored and keeping
// the log ordered by date, student, period, course and section.
func (s *Store) Append(term string, punches []Punch) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.terms[term]

	existing := make(map[string]bool, len(current))
	for _, p := range current {
		existing[p.Identity()] = true
	}

	added := 0
	for _, p := range punches {
		id := p.Identity()
		if existing[id] {
			continue
		}
		existing[id] = true
		current = append(current, p)
		added++
	}

	if added == 0 {
		return 0
	}

	sort.SliceStable(current, func(i, j int) bool {
		a, b := current[i], current[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Course != b.Course {
			return a.Course < b.Course
		}
		return a.Section < b.Section
	})

	s.terms[term] = current
	return added
}

// Load reads punches from a JSONL file named after the term inside dir.
func (s *Store) Load(dir, term string) error {
	return s.LoadFile(filepath.Join(dir, term+".jsonl"), term)
}

// LoadFile reads punches from an explicit JSONL path into term.
func (s *Store) LoadFile(path, term string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open punch log: %w", err)
	}
	defer file.Close()

	var punches []Punch
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p Punch
		if err := json.Unmarshal(line, &p); err != nil {
			log.Warn().Err(err).Str("term", term).Msg("Skipping invalid JSON line in punch log")
			continue
		}
		punches = append(punches, p)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading punch log: %w", err)
	}

	added := s.Append(term, punches)
	log.Info().Str("term", term).Int("count", len(punches)).Int("added", added).Msg("Loaded punches from log")
	return nil
}

// Save persists a term's punches to a JSONL file inside dir via an atomic rename.
func (s *Store) Save(dir, term string) error {
	s.mu.RLock()
	data, ok := s.terms[term]
	s.mu.RUnlock()

	if !ok || len(data) == 0 {
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create punch log directory: %w", err)
	}

	path := filepath.Join(dir, term+".jsonl")
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp punch log: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, p := range data {
		if err := encoder.Encode(p); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode punch: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename punch log: %w", err)
	}

	log.Info().Str("term", term).Int("count", len(data)).Msg("Punch log saved")
	return nil
}

// All returns a copy of every punch stored for a term.
func (s *Store) All(term string) []Punch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.terms[term]
	out := make([]Punch, len(data))
	copy(out, data)
	return out
}

// Count returns the number of punches stored for a term.
func (s *Store) Count(term string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.terms[term])
}

// LatestDate returns the date of the most recent punch for a term.
func (s *Store) LatestDate(term string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.terms[term]
	if len(data) == 0 {
		return time.Time{}
	}
	return data[len(data)-1].Date
}

// InRange returns punches dated within [start, end]. A zero end is open-ended.
func (s *Store) InRange(term string, start, end time.Time) []Punch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Punch
	for _, p := range s.terms[term] {
		if p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// ForStudent returns the full punch history of one student.
func (s *Store) ForStudent(term, studentID string) []Punch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Punch
	for _, p := range s.terms[term] {
		if p.StudentID == studentID {
			result = append(result, p)
		}
	}
	return result
}
