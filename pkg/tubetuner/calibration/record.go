package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

// DefaultHoleDiameter is the drilled hole size, in mm, assumed for every hole.
const DefaultHoleDiameter = 8.0

// Source values for records.
const (
	SourceUser      = "user"
	SourceRecording = "recording"
	SourceSeed      = "seed"
)

var ErrInvalidCalibration = errors.New("invalid calibration")

// Record is a measured hole position for one note on one tube configuration.
// Records are never modified after they enter a Store.
type Record struct {
	ID           string        `json:"id,omitempty"`
	Note         notes.Note    `json:"note"`
	Position     float64       `json:"position"`
	TubeDiameter float64       `json:"tube_diameter"`
	TubeLength   float64       `json:"tube_length"`
	Material     material.Kind `json:"material"`
	IsVerified   bool          `json:"is_verified"`
	CreatedAt    time.Time     `json:"created_at"`

	Frequency    float64 `json:"frequency,omitempty"`
	HoleDiameter float64 `json:"hole_diameter,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	Source       string  `json:"source,omitempty"`
	Comment      string  `json:"comment,omitempty"`
}

// Validate checks the measured values are usable for matching.
func (r Record) Validate() error {
	if r.Note == "" {
		return fmt.Errorf("%w: note is required", ErrInvalidCalibration)
	}
	for name, v := range map[string]float64{
		"position":      r.Position,
		"tube_diameter": r.TubeDiameter,
		"tube_length":   r.TubeLength,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidCalibration, name, v)
		}
	}
	if r.Position >= r.TubeLength {
		return fmt.Errorf("%w: position %.1f is beyond tube length %.1f", ErrInvalidCalibration, r.Position, r.TubeLength)
	}
	return nil
}

// DefaultSeed returns the two reference measurements shipped with a fresh database.
func DefaultSeed() []Record {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Record{
		{
			Note:         "D4",
			Position:     225.0,
			TubeDiameter: 20.0,
			TubeLength:   450.0,
			Material:     material.PVC,
			IsVerified:   true,
			CreatedAt:    created,
			Frequency:    293.66,
			HoleDiameter: DefaultHoleDiameter,
			Temperature:  20.0,
			Source:       SourceSeed,
		},
		{
			Note:         "E4",
			Position:     202.5,
			TubeDiameter: 20.0,
			TubeLength:   450.0,
			Material:     material.PVC,
			IsVerified:   true,
			CreatedAt:    created,
			Frequency:    329.63,
			HoleDiameter: DefaultHoleDiameter,
			Temperature:  20.0,
			Source:       SourceSeed,
		},
	}
}
