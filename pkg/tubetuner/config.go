package tubetuner

import (
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
)

type Config struct {
	DBPath  string
	Logger  Logger
	Storage Storage

	MinOctave int
	MaxOctave int

	Materials                map[material.Kind]float64
	ApplyMaterialCoefficient bool
	SimilarityThreshold      float64

	SeedDefaults   bool
	Workers        int
	ToleranceCents float64
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage replaces the SQLite backend. The service closes it on Close.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithOctaveRange(min, max int) Option {
	return func(c *Config) {
		c.MinOctave = min
		c.MaxOctave = max
	}
}

// WithMaterials adds or overrides material coefficients.
func WithMaterials(coefficients map[material.Kind]float64) Option {
	return func(c *Config) {
		c.Materials = coefficients
	}
}

func WithMaterialCoefficient(apply bool) Option {
	return func(c *Config) {
		c.ApplyMaterialCoefficient = apply
	}
}

func WithSimilarityThreshold(threshold float64) Option {
	return func(c *Config) {
		c.SimilarityThreshold = threshold
	}
}

// WithSeedDefaults inserts the reference calibrations into an empty database.
func WithSeedDefaults(seed bool) Option {
	return func(c *Config) {
		c.SeedDefaults = seed
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithToleranceCents(cents float64) Option {
	return func(c *Config) {
		c.ToleranceCents = cents
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:              "tubetuner.sqlite3",
		MinOctave:           notes.DefaultMinOctave,
		MaxOctave:           notes.DefaultMaxOctave,
		SimilarityThreshold: calibration.DefaultSimilarityThreshold,
		SeedDefaults:        true,
		ToleranceCents:      pitch.DefaultToleranceCents,
	}
}
