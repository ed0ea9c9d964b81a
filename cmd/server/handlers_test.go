//go:build !js && !wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/audio"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

type quietLogger struct{}

func (quietLogger) Infof(string, ...any)  {}
func (quietLogger) Warnf(string, ...any)  {}
func (quietLogger) Errorf(string, ...any) {}
func (quietLogger) Debugf(string, ...any) {}

func setupTestServer(t *testing.T) http.Handler {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "server.sqlite3")
	svc, err := tubetuner.NewService(
		tubetuner.WithDBPath(dbPath),
		tubetuner.WithLogger(quietLogger{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(svc, &ServerConfig{
		Port:                8080,
		DBPath:              dbPath,
		AllowedOrigins:      []string{"http://localhost:5173"},
		Environment:         resolver.DefaultEnvironment(),
		SimilarityThreshold: 0.15,
		ToneDuration:        200 * time.Millisecond,
	})
	srv.log = quietLogger{}
	return srv.setupRoutes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRootAndHealth(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TubeTuner API")

	rec = doJSON(t, h, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestMetrics(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/health/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MetricsResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Stats.StoredTotal)
	assert.Equal(t, 2, resp.Stats.LoadedVerified)
	assert.Equal(t, 60, resp.Stats.NoteCount)
}

func TestCalculate(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/calculate", map[string]any{
		"notes":         []string{"D4", "E4", "G4", "C9"},
		"tube_length":   450,
		"tube_diameter": 20,
		"tube_material": "PVC",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CalculateResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.CalibratedCount)
	assert.Equal(t, 1, resp.CalculatedCount)
	assert.Equal(t, []notes.Note{"C9"}, resp.Skipped)
	require.Len(t, resp.Holes, 3)

	assert.Equal(t, notes.Note("E4"), resp.Holes[0].Note)
	assert.Equal(t, 202.5, resp.Holes[0].Position)
	assert.Equal(t, notes.Note("D4"), resp.Holes[1].Note)
	assert.Equal(t, 225.0, resp.Holes[1].Position)
	assert.Equal(t, notes.Note("G4"), resp.Holes[2].Note)
	assert.Equal(t, resolver.SourceCalculated, resp.Holes[2].Source)
	assert.Equal(t, 405.0, resp.Holes[2].Position)
}

func TestCalculateEnvironmentOverride(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/calculate", map[string]any{
		"notes":                     []string{"A4"},
		"tube_length":               1000,
		"tube_diameter":             20,
		"mouthpiece_end_correction": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CalculateResponse](t, rec)
	require.Len(t, resp.Holes, 1)
	// 343000/440/2 with no end correction
	assert.Equal(t, 389.8, resp.Holes[0].Position)
}

func TestCalculateRejectsBadInput(t *testing.T) {
	h := setupTestServer(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed", "{"},
		{"no notes", map[string]any{"tube_length": 450, "tube_diameter": 20}},
		{"no length", map[string]any{"notes": []string{"A4"}, "tube_diameter": 20}},
		{"negative length", map[string]any{"notes": []string{"A4"}, "tube_length": -1, "tube_diameter": 20}},
		{"frozen air", map[string]any{"notes": []string{"A4"}, "tube_length": 450, "tube_diameter": 20, "temperature": -300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/calculate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, http.StatusBadRequest, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := doJSON(t, h, http.MethodGet, "/api/calculate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCalculateSingle(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/calculate/single", map[string]any{
		"note":          "D4",
		"tube_length":   450,
		"tube_diameter": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[CalculateSingleResponse](t, rec)
	assert.Equal(t, resolver.SourceCalibrated, resp.Calculation.Source)
	assert.Equal(t, 225.0, resp.Calculation.Position)
	require.Len(t, resp.SimilarCalibrations, 1)
	assert.Equal(t, 1.0, resp.SimilarCalibrations[0].Similarity)

	rec = doJSON(t, h, http.MethodPost, "/api/calculate/single", map[string]any{
		"note":          "H2",
		"tube_length":   450,
		"tube_diameter": 20,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimilar(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/similar/E4?diameter=21&length=460", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SimilarResponse](t, rec)
	assert.Equal(t, "E4", resp.Note)
	require.Equal(t, 1, resp.Count)
	assert.InDelta(t, 1-(1.0/21)/0.15, resp.SimilarCalibrations[0].Similarity, 1e-9)

	rec = doJSON(t, h, http.MethodGet, "/api/similar/E4?diameter=40", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[SimilarResponse](t, rec).Count)

	rec = doJSON(t, h, http.MethodGet, "/api/similar/E4?diameter=wide", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalibrationsRoundTrip(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/calibrations", tubetuner.CalibrationInput{
		Note:         "G4",
		Position:     180.5,
		TubeDiameter: 20,
		TubeLength:   450,
		Material:     "pvc",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RecordCalibrationResponse](t, rec)
	assert.NotEmpty(t, created.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/calibrations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListCalibrationsResponse](t, rec)
	assert.Equal(t, 3, list.Count)
	assert.Equal(t, 3, list.VerifiedCount)
	last := list.Calibrations[2]
	assert.Equal(t, created.ID, last.ID)
	assert.Equal(t, "G4", last.Note)
	assert.Equal(t, 20.0, last.Temperature)

	// The new record is used by later calculations.
	rec = doJSON(t, h, http.MethodPost, "/api/calculate", map[string]any{
		"notes": []string{"G4"}, "tube_length": 450, "tube_diameter": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	calc := decode[CalculateResponse](t, rec)
	require.Len(t, calc.Holes, 1)
	assert.Equal(t, 180.5, calc.Holes[0].Position)
	assert.Equal(t, created.ID, calc.Holes[0].CalibrationID)
}

func TestAddCalibrationRejectsInvalid(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/calibrations", tubetuner.CalibrationInput{
		Note: "G4", Position: 500, TubeDiameter: 20, TubeLength: 450,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/api/calibrations", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func recordingRequest(t *testing.T, fields map[string]string, freq float64) *http.Request {
	t.Helper()
	tone, err := os.Create(filepath.Join(t.TempDir(), "take.wav"))
	require.NoError(t, err)
	defer tone.Close()
	require.NoError(t, audio.WriteTone(tone, freq, audio.DefaultSampleRate, 500*time.Millisecond))
	_, err = tone.Seek(0, io.SeekStart)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("audio", "take.wav")
	require.NoError(t, err)
	_, err = io.Copy(part, tone)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/calibrations/recording", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAddRecording(t *testing.T) {
	h := setupTestServer(t)
	fields := map[string]string{
		"note":          "A4",
		"position":      "150",
		"tube_diameter": "20",
		"tube_length":   "450",
		"tube_material": "bamboo",
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, recordingRequest(t, fields, 440))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[RecordCalibrationResponse](t, rec)
	require.NotNil(t, resp.Verification)
	assert.True(t, resp.Verification.InTune)
	assert.InDelta(t, 440, resp.Verification.Detected, 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, recordingRequest(t, fields, 466.16))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp = decode[RecordCalibrationResponse](t, rec)
	assert.False(t, resp.Verification.InTune)
	assert.Contains(t, resp.Message, "unverified")

	rec = doJSON(t, h, http.MethodGet, "/api/calibrations?verified=true", nil)
	assert.Equal(t, 3, decode[ListCalibrationsResponse](t, rec).Count)
	rec = doJSON(t, h, http.MethodGet, "/api/calibrations", nil)
	assert.Equal(t, 4, decode[ListCalibrationsResponse](t, rec).Count)
}

func TestAddRecordingRejectsBadForm(t *testing.T) {
	h := setupTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, recordingRequest(t, map[string]string{"position": "150"}, 440))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, recordingRequest(t, map[string]string{"note": "A4", "position": "far"}, 440))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/calibrations/recording", "{}")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotes(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListNotesResponse](t, rec)
	assert.Equal(t, 60, list.Count)
	assert.Equal(t, notes.Note("C1"), list.Notes[0].Note)

	rec = doJSON(t, h, http.MethodGet, "/api/notes/A4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[notes.Info](t, rec)
	assert.True(t, info.Known)
	assert.Equal(t, 440.0, info.Frequency)

	rec = doJSON(t, h, http.MethodGet, "/api/notes/C9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info = decode[notes.Info](t, rec)
	assert.False(t, info.Known)
	assert.Equal(t, 9, info.Octave)
}

func TestNoteTone(t *testing.T) {
	h := setupTestServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/notes/A4/tone", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))

	clip, err := audio.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, clip.Duration().Seconds(), 0.001)

	rec = doJSON(t, h, http.MethodGet, "/api/notes/A4/tone?duration_ms=100", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	clip, err = audio.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, clip.Duration().Seconds(), 0.001)

	rec = doJSON(t, h, http.MethodGet, "/api/notes/C9/tone", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/notes/A4/tone?duration_ms=-5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	h := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/calculate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", notes.ErrUnknownNote), http.StatusBadRequest},
		{resolver.ErrInvalidGeometry, http.StatusBadRequest},
		{pitch.ErrNoPitch, http.StatusBadRequest},
		{audio.ErrUnsupportedFormat, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, errorStatus(tt.err), tt.err.Error())
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitOrigins("*"))
	assert.Equal(t, []string{"http://a", "http://b"}, splitOrigins("http://a, http://b"))
}
