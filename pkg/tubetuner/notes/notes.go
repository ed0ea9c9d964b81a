package notes

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// ReferenceFrequency is the pitch of A4 in Hz.
	ReferenceFrequency = 440.0

	referenceIndex  = 9 // A
	referenceOctave = 4

	DefaultMinOctave = 1
	DefaultMaxOctave = 5
)

// PitchClasses lists the chromatic names in index order (C=0 .. B=11).
// Only sharps are used; "Db4" is not a valid identifier.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	ErrUnknownNote  = errors.New("unknown note")
	ErrInvalidRange = errors.New("invalid octave range")
)

// Note identifies a pitch as pitch class followed by octave, e.g. "D4".
// Two notes are equal only when their strings are equal.
type Note string

func (n Note) String() string { return string(n) }

// Name builds a Note from a chromatic index and an octave.
func Name(pitchIndex, octave int) Note {
	return Note(PitchClasses[pitchIndex] + strconv.Itoa(octave))
}

// Frequency returns the equal-tempered frequency for a chromatic index and
// octave, rounded to 2 decimals.
func Frequency(pitchIndex, octave int) float64 {
	n := (pitchIndex + 12*(octave-referenceOctave)) - referenceIndex
	f := ReferenceFrequency * math.Pow(2, float64(n)/12)
	return math.Round(f*100) / 100
}

// Table maps notes to frequencies. It is built once and never modified,
// so it can be shared between goroutines.
type Table struct {
	freqs     map[Note]float64
	ordered   []Note
	minOctave int
	maxOctave int
}

// NewTable builds the frequency table for octaves minOctave..maxOctave inclusive.
func NewTable(minOctave, maxOctave int) (*Table, error) {
	if minOctave < 0 || maxOctave < minOctave {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidRange, minOctave, maxOctave)
	}

	t := &Table{
		freqs:     make(map[Note]float64, 12*(maxOctave-minOctave+1)),
		ordered:   make([]Note, 0, 12*(maxOctave-minOctave+1)),
		minOctave: minOctave,
		maxOctave: maxOctave,
	}
	for octave := minOctave; octave <= maxOctave; octave++ {
		for i := range PitchClasses {
			n := Name(i, octave)
			t.freqs[n] = Frequency(i, octave)
			t.ordered = append(t.ordered, n)
		}
	}
	return t, nil
}

// DefaultTable returns a table covering octaves 1 through 5.
func DefaultTable() *Table {
	t, _ := NewTable(DefaultMinOctave, DefaultMaxOctave)
	return t
}

// FrequencyOf returns the frequency of n in Hz.
func (t *Table) FrequencyOf(n Note) (float64, error) {
	f, ok := t.freqs[n]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNote, string(n))
	}
	return f, nil
}

func (t *Table) Contains(n Note) bool {
	_, ok := t.freqs[n]
	return ok
}

// Notes returns every note in the table from lowest to highest.
func (t *Table) Notes() []Note {
	out := make([]Note, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func (t *Table) OctaveRange() (int, int) {
	return t.minOctave, t.maxOctave
}

// Info describes a note identifier. Frequency is zero and Known false when
// the note is outside the table.
type Info struct {
	Note      Note    `json:"note"`
	Name      string  `json:"note_name"`
	Octave    int     `json:"octave"`
	HasOctave bool    `json:"-"`
	Frequency float64 `json:"frequency,omitempty"`
	Known     bool    `json:"known"`
}

// Info splits n into its pitch-class and octave parts and attaches the
// table frequency when available.
func (t *Table) Info(n Note) Info {
	name, octave, ok := split(string(n))
	info := Info{Note: n, Name: name, Octave: octave, HasOctave: ok}
	if f, found := t.freqs[n]; found {
		info.Frequency = f
		info.Known = true
	}
	return info
}

// ParseList converts raw strings into notes without validating them, so
// the caller can decide how to treat identifiers outside the table.
func ParseList(raw []string) []Note {
	out := make([]Note, 0, len(raw))
	for _, s := range raw {
		out = append(out, Note(strings.TrimSpace(s)))
	}
	return out
}

// split separates the leading pitch-class letters from the trailing octave digits.
func split(s string) (string, int, bool) {
	idx := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if idx <= 0 {
		return s, 0, false
	}
	octave, err := strconv.Atoi(s[idx:])
	if err != nil {
		return s[:idx], 0, false
	}
	return s[:idx], octave, true
}
