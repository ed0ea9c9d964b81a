package tubetuner

import (
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

// Request is one resolution call: the notes, the tube and the environment.
type Request struct {
	Notes       []notes.Note
	Geometry    resolver.Geometry
	Environment resolver.Environment
}

// NewRequest builds a request with the default end correction and temperature.
func NewRequest(length, diameter float64, materialName string, list ...notes.Note) Request {
	return Request{
		Notes: list,
		Geometry: resolver.Geometry{
			Length:   length,
			Diameter: diameter,
			Material: material.Normalize(materialName),
		},
		Environment: resolver.DefaultEnvironment(),
	}
}

// CalibrationInput is a user measurement of where a hole for Note sits.
type CalibrationInput struct {
	Note         notes.Note `json:"note"`
	Position     float64    `json:"position"`
	TubeDiameter float64    `json:"tube_diameter"`
	TubeLength   float64    `json:"tube_length"`
	Material     string     `json:"tube_material"`
	Temperature  float64    `json:"temperature"`
	Comment      string     `json:"notes,omitempty"`
}

// Stats summarises the calibration data behind a service.
type Stats struct {
	StoredTotal    int                       `json:"stored_total"`
	StoredVerified int                       `json:"stored_verified"`
	Loaded         int                       `json:"loaded"`
	LoadedVerified int                       `json:"loaded_verified"`
	NoteCount      int                       `json:"note_count"`
	MinOctave      int                       `json:"min_octave"`
	MaxOctave      int                       `json:"max_octave"`
	Materials      map[material.Kind]float64 `json:"materials"`
	ApplyMaterial  bool                      `json:"apply_material_coefficient"`
}
