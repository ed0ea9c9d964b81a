//go:build !js && !wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/himanishpuri/TubeTuner/pkg/logger"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/audio"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service tubetuner.Service
	config  *ServerConfig
	log     tubetuner.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                int
	DBPath              string
	AllowedOrigins      []string
	Environment         resolver.Environment
	SimilarityThreshold float64
	ToneDuration        time.Duration
	ShutdownTimeout     time.Duration
}

// NewServer creates a new server instance
func NewServer(service tubetuner.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps engine errors to client errors and everything
// else to 500.
func (s *Server) respondServiceError(w http.ResponseWriter, action string, err error) {
	if status := errorStatus(err); status != http.StatusInternalServerError {
		s.respondError(w, status, err.Error())
		return
	}
	s.log.Errorf("Failed to %s: %v", action, err)
	s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", action))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, notes.ErrUnknownNote),
		errors.Is(err, resolver.ErrInvalidGeometry),
		errors.Is(err, resolver.ErrInvalidEnvironment),
		errors.Is(err, calibration.ErrInvalidCalibration),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, pitch.ErrNoPitch):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.log.Warnf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "TubeTuner API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"calculate":       "POST /api/calculate",
			"calculateSingle": "POST /api/calculate/single",
			"similar":         "GET /api/similar/{note}",
			"calibrations":    "GET /api/calibrations",
			"addCalibration":  "POST /api/calibrations",
			"addRecording":    "POST /api/calibrations/recording",
			"notes":           "GET /api/notes",
			"note":            "GET /api/notes/{note}",
			"noteTone":        "GET /api/notes/{note}/tone",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.log.Errorf("Failed to get stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		Stats:        stats,
	})
}

// handleCalculate handles POST /api/calculate
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req CalculateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	layout, err := s.service.ResolvePositions(ctx, req.toRequest(s.config.Environment, notes.ParseList(req.Notes)))
	if err != nil {
		s.respondServiceError(w, "calculate positions", err)
		return
	}

	calibrated, calculated := layout.Counts()
	skipped := layout.Skipped
	if skipped == nil {
		skipped = []notes.Note{}
	}
	s.respondJSON(w, http.StatusOK, CalculateResponse{
		Success:         true,
		Holes:           layout.Holes,
		CalculatedCount: calculated,
		CalibratedCount: calibrated,
		Skipped:         skipped,
		Message:         fmt.Sprintf("Resolved %d holes", len(layout.Holes)),
	})
}

// handleCalculateSingle handles POST /api/calculate/single
func (s *Server) handleCalculateSingle(w http.ResponseWriter, r *http.Request) {
	var req CalculateSingleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	note := notes.Note(req.Note)
	hole, err := s.service.ResolveSingle(r.Context(), note, req.toRequest(s.config.Environment, nil))
	if err != nil {
		s.respondServiceError(w, "calculate position", err)
		return
	}

	similar, err := s.service.FindSimilarCalibrations(r.Context(), note, req.TubeDiameter, req.TubeLength, s.config.SimilarityThreshold)
	if err != nil {
		s.respondServiceError(w, "find similar calibrations", err)
		return
	}

	s.respondJSON(w, http.StatusOK, CalculateSingleResponse{
		Success:             true,
		Calculation:         hole,
		SimilarCalibrations: toSimilarDTOs(similar),
	})
}

// handleSimilar handles GET /api/similar/{note}
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	note := r.PathValue("note")
	q := r.URL.Query()

	diameter, err := floatParam(q.Get("diameter"), DefaultSimilarDiameter)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid diameter")
		return
	}
	length, err := floatParam(q.Get("length"), DefaultSimilarLength)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid length")
		return
	}
	threshold, err := floatParam(q.Get("threshold"), s.config.SimilarityThreshold)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid threshold")
		return
	}

	similar, err := s.service.FindSimilarCalibrations(r.Context(), notes.Note(note), diameter, length, threshold)
	if err != nil {
		s.respondServiceError(w, "find similar calibrations", err)
		return
	}

	s.respondJSON(w, http.StatusOK, SimilarResponse{
		Note:                note,
		SimilarCalibrations: toSimilarDTOs(similar),
		Count:               len(similar),
	})
}

// handleListCalibrations handles GET /api/calibrations
func (s *Server) handleListCalibrations(w http.ResponseWriter, r *http.Request) {
	verifiedOnly, _ := strconv.ParseBool(r.URL.Query().Get("verified"))

	records, err := s.service.ListCalibrations(r.Context(), verifiedOnly)
	if err != nil {
		s.log.Errorf("Failed to list calibrations: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve calibrations")
		return
	}

	dtos := make([]CalibrationDTO, len(records))
	verified := 0
	for i, rec := range records {
		if rec.IsVerified {
			verified++
		}
		dtos[i] = CalibrationDTO{
			ID:           rec.ID,
			Note:         string(rec.Note),
			Frequency:    rec.Frequency,
			Position:     rec.Position,
			Diameter:     rec.HoleDiameter,
			TubeDiameter: rec.TubeDiameter,
			TubeLength:   rec.TubeLength,
			TubeMaterial: string(rec.Material),
			Temperature:  rec.Temperature,
			Source:       rec.Source,
			IsVerified:   rec.IsVerified,
			Notes:        rec.Comment,
			CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
		}
	}

	s.respondJSON(w, http.StatusOK, ListCalibrationsResponse{
		Calibrations:  dtos,
		Count:         len(dtos),
		VerifiedCount: verified,
	})
}

// handleAddCalibration handles POST /api/calibrations
func (s *Server) handleAddCalibration(w http.ResponseWriter, r *http.Request) {
	var in tubetuner.CalibrationInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	if in.Temperature == 0 {
		in.Temperature = s.config.Environment.Temperature
	}

	id, err := s.service.RecordCalibration(r.Context(), in)
	if err != nil {
		s.respondServiceError(w, "record calibration", err)
		return
	}

	s.respondJSON(w, http.StatusCreated, RecordCalibrationResponse{
		Message: "Calibration recorded",
		ID:      id,
	})
}

// handleAddRecording handles POST /api/calibrations/recording (multipart
// form with the measurement fields and an "audio" WAV file)
func (s *Server) handleAddRecording(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(MaxRecordingSize); err != nil {
		s.log.Warnf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	in, err := s.calibrationFromForm(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	s.log.Infof("Verifying recording %s for %s", header.Filename, in.Note)
	id, verification, err := s.service.RecordMeasuredCalibration(ctx, in, file)
	if err != nil {
		s.respondServiceError(w, "record calibration", err)
		return
	}

	message := "Calibration recorded and verified"
	if !verification.InTune {
		message = fmt.Sprintf("Calibration recorded unverified: %+.1f cents off", verification.Cents)
	}
	s.respondJSON(w, http.StatusCreated, RecordCalibrationResponse{
		Message:      message,
		ID:           id,
		Verification: &verification,
	})
}

func (s *Server) calibrationFromForm(r *http.Request) (tubetuner.CalibrationInput, error) {
	in := tubetuner.CalibrationInput{
		Note:     notes.Note(r.FormValue("note")),
		Material: r.FormValue("tube_material"),
		Comment:  r.FormValue("notes"),
	}
	if in.Note == "" {
		return in, fmt.Errorf("note is required")
	}
	fields := []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"position", &in.Position, 0},
		{"tube_diameter", &in.TubeDiameter, 0},
		{"tube_length", &in.TubeLength, 0},
		{"temperature", &in.Temperature, s.config.Environment.Temperature},
	}
	for _, f := range fields {
		v, err := floatParam(r.FormValue(f.name), f.def)
		if err != nil {
			return in, fmt.Errorf("invalid %s", f.name)
		}
		*f.dst = v
	}
	return in, nil
}

// handleListNotes handles GET /api/notes
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	list := s.service.Notes()
	s.respondJSON(w, http.StatusOK, ListNotesResponse{Notes: list, Count: len(list)})
}

// handleNoteInfo handles GET /api/notes/{note}
func (s *Server) handleNoteInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.service.NoteInfo(notes.Note(r.PathValue("note"))))
}

// handleNoteTone handles GET /api/notes/{note}/tone
func (s *Server) handleNoteTone(w http.ResponseWriter, r *http.Request) {
	note := notes.Note(r.PathValue("note"))
	if !s.service.NoteInfo(note).Known {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Note %s is not in the frequency table", note))
		return
	}

	duration := s.config.ToneDuration
	if ms := r.URL.Query().Get("duration_ms"); ms != "" {
		v, err := strconv.Atoi(ms)
		if err != nil || v <= 0 || v > 10000 {
			s.respondError(w, http.StatusBadRequest, "duration_ms must be in 1..10000")
			return
		}
		duration = time.Duration(v) * time.Millisecond
	}

	// The WAV encoder seeks back to patch the header, so render to a temp file.
	tmp, err := os.CreateTemp("", "tone-*.wav")
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to render tone")
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := s.service.RenderTone(note, tmp, duration); err != nil {
		s.respondServiceError(w, "render tone", err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to render tone")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", string(note)+".wav"))
	http.ServeContent(w, r, string(note)+".wav", time.Time{}, tmp)
}

// handleCalibrations routes requests to /api/calibrations
func (s *Server) handleCalibrations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListCalibrations(w, r)
	case http.MethodPost:
		s.handleAddCalibration(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// postOnly rejects anything but POST
func (s *Server) postOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}
