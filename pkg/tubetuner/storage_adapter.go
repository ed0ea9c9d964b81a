package tubetuner

import (
	"context"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage opens (creating if needed) the SQLite database at dbPath.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveCalibration(ctx context.Context, rec calibration.Record) error {
	row := toRow(rec)
	return s.db.SaveCalibration(ctx, &row)
}

func (s *storageAdapter) ListCalibrations(ctx context.Context, verifiedOnly bool) ([]calibration.Record, error) {
	rows, err := s.db.ListCalibrations(ctx, verifiedOnly)
	if err != nil {
		return nil, err
	}
	out := make([]calibration.Record, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

func (s *storageAdapter) CountCalibrations(ctx context.Context) (int, int, error) {
	return s.db.CountCalibrations(ctx)
}

func (s *storageAdapter) SeedDefaults(ctx context.Context, seed []calibration.Record) (bool, error) {
	rows := make([]storage.Calibration, len(seed))
	for i, rec := range seed {
		rows[i] = toRow(rec)
	}
	return s.db.SeedIfEmpty(ctx, rows)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toRow(rec calibration.Record) storage.Calibration {
	confidence := 0.0
	if rec.IsVerified {
		confidence = 1.0
	}
	return storage.Calibration{
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
		Confidence:   confidence,
		IsVerified:   rec.IsVerified,
		Notes:        rec.Comment,
		CreatedAt:    rec.CreatedAt,
	}
}

func fromRow(row storage.Calibration) calibration.Record {
	return calibration.Record{
		ID:           row.ID,
		Note:         notes.Note(row.Note),
		Position:     row.Position,
		TubeDiameter: row.TubeDiameter,
		TubeLength:   row.TubeLength,
		Material:     material.Normalize(row.TubeMaterial),
		IsVerified:   row.IsVerified,
		CreatedAt:    row.CreatedAt.UTC(),
		Frequency:    row.Frequency,
		HoleDiameter: row.Diameter,
		Temperature:  row.Temperature,
		Source:       row.Source,
		Comment:      row.Notes,
	}
}
