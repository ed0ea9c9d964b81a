//go:build !js && !wasm

package main

import (
	"fmt"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

const (
	// MaxNotesPerRequest bounds a batch calculation.
	MaxNotesPerRequest = 256

	// MaxRecordingSize is the largest accepted WAV upload (32MB).
	MaxRecordingSize = 32 << 20

	DefaultSimilarDiameter = 20.0
	DefaultSimilarLength   = 450.0
)

// TubeRequest carries the tube and environment shared by the calculation
// endpoints. Omitted environment fields fall back to the server defaults.
type TubeRequest struct {
	TubeLength    float64  `json:"tube_length"`
	TubeDiameter  float64  `json:"tube_diameter"`
	TubeMaterial  string   `json:"tube_material"`
	EndCorrection *float64 `json:"mouthpiece_end_correction,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
}

func (r TubeRequest) validate() error {
	if r.TubeLength == 0 {
		return fmt.Errorf("tube_length is required")
	}
	if r.TubeDiameter == 0 {
		return fmt.Errorf("tube_diameter is required")
	}
	return nil
}

// toRequest merges the tube with env for the given notes.
func (r TubeRequest) toRequest(env resolver.Environment, list []notes.Note) tubetuner.Request {
	if r.EndCorrection != nil {
		env.EndCorrection = *r.EndCorrection
	}
	if r.Temperature != nil {
		env.Temperature = *r.Temperature
	}
	req := tubetuner.NewRequest(r.TubeLength, r.TubeDiameter, r.TubeMaterial, list...)
	req.Environment = env
	return req
}

// CalculateRequest is the request body for POST /api/calculate
type CalculateRequest struct {
	Notes []string `json:"notes"`
	TubeRequest
}

func (r *CalculateRequest) Validate() error {
	if len(r.Notes) == 0 {
		return fmt.Errorf("notes cannot be empty")
	}
	if len(r.Notes) > MaxNotesPerRequest {
		return fmt.Errorf("too many notes: %d (maximum: %d)", len(r.Notes), MaxNotesPerRequest)
	}
	return r.validate()
}

// CalculateResponse is the response for POST /api/calculate
type CalculateResponse struct {
	Success         bool                  `json:"success"`
	Holes           []resolver.HoleResult `json:"holes"`
	CalculatedCount int                   `json:"calculated_count"`
	CalibratedCount int                   `json:"calibrated_count"`
	Skipped         []notes.Note          `json:"skipped"`
	Message         string                `json:"message"`
}

// CalculateSingleRequest is the request body for POST /api/calculate/single
type CalculateSingleRequest struct {
	Note string `json:"note"`
	TubeRequest
}

func (r *CalculateSingleRequest) Validate() error {
	if r.Note == "" {
		return fmt.Errorf("note is required")
	}
	return r.validate()
}

// CalculateSingleResponse pairs the resolved hole with the calibrations
// measured on similar tubes.
type CalculateSingleResponse struct {
	Success             bool                `json:"success"`
	Calculation         resolver.HoleResult `json:"calculation"`
	SimilarCalibrations []SimilarDTO        `json:"similar_calibrations"`
}

// SimilarDTO is one ranked calibration in API responses
type SimilarDTO struct {
	ID           string  `json:"id"`
	Position     float64 `json:"position"`
	TubeDiameter float64 `json:"tube_diameter"`
	TubeLength   float64 `json:"tube_length"`
	TubeMaterial string  `json:"tube_material"`
	Similarity   float64 `json:"similarity"`
}

func toSimilarDTOs(scored []calibration.Scored) []SimilarDTO {
	out := make([]SimilarDTO, len(scored))
	for i, sc := range scored {
		out[i] = SimilarDTO{
			ID:           sc.Record.ID,
			Position:     sc.Record.Position,
			TubeDiameter: sc.Record.TubeDiameter,
			TubeLength:   sc.Record.TubeLength,
			TubeMaterial: string(sc.Record.Material),
			Similarity:   sc.Similarity,
		}
	}
	return out
}

// SimilarResponse is the response for GET /api/similar/{note}
type SimilarResponse struct {
	Note                string       `json:"note"`
	SimilarCalibrations []SimilarDTO `json:"similar_calibrations"`
	Count               int          `json:"count"`
}

// CalibrationDTO represents a stored calibration in API responses
type CalibrationDTO struct {
	ID           string  `json:"id"`
	Note         string  `json:"note"`
	Frequency    float64 `json:"frequency"`
	Position     float64 `json:"position"`
	Diameter     float64 `json:"diameter"`
	TubeDiameter float64 `json:"tube_diameter"`
	TubeLength   float64 `json:"tube_length"`
	TubeMaterial string  `json:"tube_material"`
	Temperature  float64 `json:"temperature"`
	Source       string  `json:"source"`
	IsVerified   bool    `json:"is_verified"`
	Notes        string  `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// ListCalibrationsResponse is the response for GET /api/calibrations
type ListCalibrationsResponse struct {
	Calibrations  []CalibrationDTO `json:"calibrations"`
	Count         int              `json:"count"`
	VerifiedCount int              `json:"verified_count"`
}

// RecordCalibrationResponse is the response for successful calibration writes
type RecordCalibrationResponse struct {
	Message      string              `json:"message"`
	ID           string              `json:"id"`
	Verification *pitch.Verification `json:"verification,omitempty"`
}

// ListNotesResponse is the response for GET /api/notes
type ListNotesResponse struct {
	Notes []notes.Info `json:"notes"`
	Count int          `json:"count"`
}

// MetricsResponse provides server health and calibration metrics
type MetricsResponse struct {
	Status       string          `json:"status"`
	DatabasePath string          `json:"database_path"`
	Stats        tubetuner.Stats `json:"stats"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
