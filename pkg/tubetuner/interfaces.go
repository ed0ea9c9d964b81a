package tubetuner

import (
	"context"
	"io"
	"time"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

type Service interface {
	ResolvePositions(ctx context.Context, req Request) (*resolver.Layout, error)
	ResolveSingle(ctx context.Context, note notes.Note, req Request) (resolver.HoleResult, error)
	RecordCalibration(ctx context.Context, in CalibrationInput) (string, error)
	RecordMeasuredCalibration(ctx context.Context, in CalibrationInput, recording io.ReadSeeker) (string, pitch.Verification, error)
	FindSimilarCalibrations(ctx context.Context, note notes.Note, diameter, length, threshold float64) ([]calibration.Scored, error)
	ListCalibrations(ctx context.Context, verifiedOnly bool) ([]calibration.Record, error)
	VerifyRecording(ctx context.Context, note notes.Note, recording io.ReadSeeker) (pitch.Verification, error)
	RenderTone(note notes.Note, w io.WriteSeeker, duration time.Duration) error
	NoteInfo(note notes.Note) notes.Info
	Notes() []notes.Info
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Storage is the durable home of calibration records. The service reads it
// once at start-up and writes every accepted record through it.
type Storage interface {
	SaveCalibration(ctx context.Context, rec calibration.Record) error
	ListCalibrations(ctx context.Context, verifiedOnly bool) ([]calibration.Record, error)
	CountCalibrations(ctx context.Context) (total, verified int, err error)
	SeedDefaults(ctx context.Context, seed []calibration.Record) (bool, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
