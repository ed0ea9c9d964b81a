package tubetuner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/himanishpuri/TubeTuner/pkg/logger"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/audio"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
	"github.com/himanishpuri/TubeTuner/pkg/utils"
)

// tunerService is the default implementation of the Service interface.
type tunerService struct {
	storage  Storage
	store    *calibration.Store
	resolver *resolver.Resolver
	table    *notes.Table
	log      Logger
	config   *Config
	now      func() time.Time
}

// NewService builds the engine, opens storage and loads every verified
// calibration record into memory.
func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	table, err := notes.NewTable(cfg.MinOctave, cfg.MaxOctave)
	if err != nil {
		return nil, fmt.Errorf("building frequency table: %w", err)
	}

	var stor Storage
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	ctx := context.Background()
	if cfg.SeedDefaults {
		seeded, err := stor.SeedDefaults(ctx, calibration.DefaultSeed())
		if err != nil {
			stor.Close()
			return nil, fmt.Errorf("failed to seed calibrations: %w", err)
		}
		if seeded {
			cfg.Logger.Infof("Seeded empty database with reference calibrations")
		}
	}

	records, err := stor.ListCalibrations(ctx, true)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to load calibrations: %w", err)
	}
	store := calibration.NewStore(records...)
	cfg.Logger.Infof("Loaded %d verified calibration records", len(records))

	opt := []resolver.Option{
		resolver.WithMaterials(material.NewTable(cfg.Materials)),
		resolver.WithMaterialCoefficient(cfg.ApplyMaterialCoefficient),
		resolver.WithWorkers(cfg.Workers),
	}

	return &tunerService{
		storage:  stor,
		store:    store,
		resolver: resolver.New(table, store, opt...),
		table:    table,
		log:      cfg.Logger,
		config:   cfg,
		now:      time.Now,
	}, nil
}

// ResolvePositions places a hole for every note in req. Notes outside the
// frequency table are logged and reported in the layout's Skipped list.
func (s *tunerService) ResolvePositions(ctx context.Context, req Request) (*resolver.Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req.Geometry.Material = material.Normalize(string(req.Geometry.Material))

	layout, err := s.resolver.ResolveAll(req.Notes, req.Geometry, req.Environment)
	if err != nil {
		return nil, err
	}
	for _, n := range layout.Skipped {
		s.log.Warnf("Skipping unknown note %q", n)
	}

	calibrated, calculated := layout.Counts()
	s.log.Debugf("Resolved %d holes (%d calibrated, %d calculated) on %.1fx%.1f %s",
		len(layout.Holes), calibrated, calculated, req.Geometry.Length, req.Geometry.Diameter, req.Geometry.Material)
	return layout, nil
}

// ResolveSingle places the hole for one note. Unlike ResolvePositions it
// fails on unknown notes.
func (s *tunerService) ResolveSingle(ctx context.Context, note notes.Note, req Request) (resolver.HoleResult, error) {
	if err := ctx.Err(); err != nil {
		return resolver.HoleResult{}, err
	}
	req.Geometry.Material = material.Normalize(string(req.Geometry.Material))
	return s.resolver.Resolve(note, req.Geometry, req.Environment)
}

// RecordCalibration stores a verified user measurement and makes it
// available to later resolutions.
func (s *tunerService) RecordCalibration(ctx context.Context, in CalibrationInput) (string, error) {
	rec, err := s.newRecord(in, calibration.SourceUser)
	if err != nil {
		return "", err
	}
	rec.IsVerified = true

	if err := s.persist(ctx, rec); err != nil {
		return "", err
	}
	s.log.Infof("Recorded calibration %s: %s at %.1fmm on %.1fx%.1f %s",
		rec.ID, rec.Note, rec.Position, rec.TubeDiameter, rec.TubeLength, rec.Material)
	return rec.ID, nil
}

// RecordMeasuredCalibration checks the recording against the note before
// storing the measurement. Off-pitch measurements are stored unverified
// and never used for matching.
func (s *tunerService) RecordMeasuredCalibration(ctx context.Context, in CalibrationInput, recording io.ReadSeeker) (string, pitch.Verification, error) {
	rec, err := s.newRecord(in, calibration.SourceRecording)
	if err != nil {
		return "", pitch.Verification{}, err
	}

	v, err := s.verify(rec.Note, rec.Frequency, recording)
	if err != nil {
		return "", pitch.Verification{}, err
	}
	rec.IsVerified = v.InTune
	if rec.Comment == "" {
		rec.Comment = fmt.Sprintf("measured %.2f Hz (%+.1f cents)", v.Detected, v.Cents)
	}

	if err := s.persist(ctx, rec); err != nil {
		return "", v, err
	}
	if v.InTune {
		s.log.Infof("Recorded verified calibration %s for %s (%+.1f cents)", rec.ID, rec.Note, v.Cents)
	} else {
		s.log.Warnf("Calibration %s for %s is %+.1f cents off, stored unverified", rec.ID, rec.Note, v.Cents)
	}
	return rec.ID, v, nil
}

// FindSimilarCalibrations ranks verified records for note by how close
// their tube geometry is. A non-positive threshold means the configured default.
func (s *tunerService) FindSimilarCalibrations(ctx context.Context, note notes.Note, diameter, length, threshold float64) ([]calibration.Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := (resolver.Geometry{Length: length, Diameter: diameter}).Validate(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.config.SimilarityThreshold
	}
	return s.store.FindSimilar(note, diameter, length, threshold), nil
}

// ListCalibrations reads records from storage, including ones that were
// stored unverified.
func (s *tunerService) ListCalibrations(ctx context.Context, verifiedOnly bool) ([]calibration.Record, error) {
	return s.storage.ListCalibrations(ctx, verifiedOnly)
}

// VerifyRecording detects the pitch of a WAV recording and compares it
// with note.
func (s *tunerService) VerifyRecording(ctx context.Context, note notes.Note, recording io.ReadSeeker) (pitch.Verification, error) {
	if err := ctx.Err(); err != nil {
		return pitch.Verification{}, err
	}
	target, err := s.table.FrequencyOf(note)
	if err != nil {
		return pitch.Verification{}, err
	}
	return s.verify(note, target, recording)
}

func (s *tunerService) verify(note notes.Note, target float64, recording io.ReadSeeker) (pitch.Verification, error) {
	clip, err := audio.Decode(recording)
	if err != nil {
		return pitch.Verification{}, fmt.Errorf("decoding recording: %w", err)
	}
	detected, err := pitch.DetectFundamental(clip.Samples, clip.SampleRate)
	if err != nil {
		return pitch.Verification{}, err
	}
	v := pitch.Verify(note, target, detected, s.config.ToleranceCents)
	s.log.Debugf("Recording for %s: target %.2f Hz, detected %.2f Hz, %+.1f cents", note, target, detected, v.Cents)
	return v, nil
}

// RenderTone writes a reference WAV for note. A non-positive duration means
// audio.DefaultToneDuration.
func (s *tunerService) RenderTone(note notes.Note, w io.WriteSeeker, duration time.Duration) error {
	freq, err := s.table.FrequencyOf(note)
	if err != nil {
		return err
	}
	if duration <= 0 {
		duration = audio.DefaultToneDuration
	}
	return audio.WriteTone(w, freq, audio.DefaultSampleRate, duration)
}

func (s *tunerService) NoteInfo(note notes.Note) notes.Info {
	return s.table.Info(note)
}

// Notes lists every note of the table from lowest to highest.
func (s *tunerService) Notes() []notes.Info {
	list := s.table.Notes()
	out := make([]notes.Info, len(list))
	for i, n := range list {
		out[i] = s.table.Info(n)
	}
	return out
}

func (s *tunerService) Stats(ctx context.Context) (Stats, error) {
	total, verified, err := s.storage.CountCalibrations(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting stored calibrations: %w", err)
	}
	loaded, loadedVerified := s.store.Len()
	minOctave, maxOctave := s.table.OctaveRange()
	return Stats{
		StoredTotal:    total,
		StoredVerified: verified,
		Loaded:         loaded,
		LoadedVerified: loadedVerified,
		NoteCount:      len(s.table.Notes()),
		MinOctave:      minOctave,
		MaxOctave:      maxOctave,
		Materials:      s.resolver.Materials().Snapshot(),
		ApplyMaterial:  s.config.ApplyMaterialCoefficient,
	}, nil
}

// Close releases all resources held by the service.
func (s *tunerService) Close() error {
	return s.storage.Close()
}

func (s *tunerService) newRecord(in CalibrationInput, source string) (calibration.Record, error) {
	freq, err := s.table.FrequencyOf(in.Note)
	if err != nil {
		return calibration.Record{}, err
	}
	rec := calibration.Record{
		ID:           utils.GenerateUUID(),
		Note:         in.Note,
		Position:     in.Position,
		TubeDiameter: in.TubeDiameter,
		TubeLength:   in.TubeLength,
		Material:     material.Normalize(in.Material),
		CreatedAt:    s.now().UTC(),
		Frequency:    freq,
		HoleDiameter: calibration.DefaultHoleDiameter,
		Temperature:  in.Temperature,
		Source:       source,
		Comment:      in.Comment,
	}
	if err := rec.Validate(); err != nil {
		return calibration.Record{}, err
	}
	return rec, nil
}

// persist writes rec to storage and only then adds it to the in-memory
// store, so a failed write leaves the store unchanged.
func (s *tunerService) persist(ctx context.Context, rec calibration.Record) error {
	if err := s.storage.SaveCalibration(ctx, rec); err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}
	s.store.Add(rec)
	return nil
}
