package calibration

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/utils"
)

const (
	// ExactTolerance is the relative geometry difference below which a
	// record counts as the same configuration.
	ExactTolerance = 0.10

	// DefaultSimilarityThreshold bounds FindSimilar when no threshold is given.
	DefaultSimilarityThreshold = 0.15
)

// Scored pairs a record with its similarity to a requested geometry.
type Scored struct {
	Record     Record  `json:"record"`
	Similarity float64 `json:"similarity"`
}

// Store is an in-memory, append-only collection of calibration records.
// Add is serialized against FindExactMatch and FindSimilar, so every read
// sees a consistent set of fully built records.
type Store struct {
	mu      sync.RWMutex
	byNote  map[notes.Note][]Record
	ordered []Record
	newID   func() string
	now     func() time.Time
}

// NewStore returns a store holding seed in the given order.
func NewStore(seed ...Record) *Store {
	s := &Store{
		byNote: make(map[notes.Note][]Record),
		newID:  utils.GenerateUUID,
		now:    time.Now,
	}
	for _, r := range seed {
		s.Add(r)
	}
	return s
}

// Add appends r and returns its identifier. An identifier and creation time
// are assigned when r has none.
func (s *Store) Add(r Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	s.byNote[r.Note] = append(s.byNote[r.Note], r)
	s.ordered = append(s.ordered, r)
	return r.ID
}

// FindExactMatch returns the first verified record, in insertion order, for
// note and kind whose diameter and length are both within ExactTolerance of
// the requested ones.
func (s *Store) FindExactMatch(note notes.Note, diameter, length float64, kind material.Kind) (Record, bool) {
	if !positive(diameter) || !positive(length) {
		return Record{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.byNote[note] {
		if !r.IsVerified || r.Material != kind {
			continue
		}
		dd, dl := relativeDiffs(r, diameter, length)
		if dd < ExactTolerance && dl < ExactTolerance {
			return r, true
		}
	}
	return Record{}, false
}

// FindSimilar scores every verified record for note whose diameter and
// length differ by less than threshold, and returns them best first.
// Material is not considered. Records at exactly the threshold are excluded.
func (s *Store) FindSimilar(note notes.Note, diameter, length, threshold float64) []Scored {
	if !positive(diameter) || !positive(length) || !positive(threshold) {
		return nil
	}

	s.mu.RLock()
	var out []Scored
	for _, r := range s.byNote[note] {
		if !r.IsVerified {
			continue
		}
		dd, dl := relativeDiffs(r, diameter, length)
		if dd < threshold && dl < threshold {
			out = append(out, Scored{
				Record:     r,
				Similarity: 1 - math.Max(dd, dl)/threshold,
			})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out
}

// All returns every record in insertion order, verified or not.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the total and verified record counts.
func (s *Store) Len() (total, verified int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.ordered {
		if r.IsVerified {
			verified++
		}
	}
	return len(s.ordered), verified
}

func relativeDiffs(r Record, diameter, length float64) (float64, float64) {
	return math.Abs(r.TubeDiameter-diameter) / diameter,
		math.Abs(r.TubeLength-length) / length
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
