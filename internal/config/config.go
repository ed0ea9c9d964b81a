// Package config loads process configuration for the TubeTuner binaries.
//
// Lookup order when no path is given:
//  1. $TUBETUNER_CONFIG
//  2. ./tubetuner.yaml, ./tubetuner.yml, ./tubetuner.toml
//
// Without a file the defaults apply. Environment overrides are applied last.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/TubeTuner/pkg/logger"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig returns a commented TOML file with every setting.
func SampleConfig() string { return sampleConfig }

type Server struct {
	Port           int      `yaml:"port" toml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

type Storage struct {
	DBPath       string `yaml:"db_path" toml:"db_path"`
	SeedDefaults bool   `yaml:"seed_defaults" toml:"seed_defaults"`
}

type Logging struct {
	Level string `yaml:"level" toml:"level"`
}

// Engine tunes hole resolution.
type Engine struct {
	MinOctave                int                `yaml:"min_octave" toml:"min_octave"`
	MaxOctave                int                `yaml:"max_octave" toml:"max_octave"`
	EndCorrection            float64            `yaml:"end_correction" toml:"end_correction"`
	Temperature              float64            `yaml:"temperature" toml:"temperature"`
	ApplyMaterialCoefficient bool               `yaml:"apply_material_coefficient" toml:"apply_material_coefficient"`
	Materials                map[string]float64 `yaml:"materials" toml:"materials"`
	SimilarityThreshold      float64            `yaml:"similarity_threshold" toml:"similarity_threshold"`
	Workers                  int                `yaml:"workers" toml:"workers"`
}

type Tuning struct {
	ToleranceCents float64 `yaml:"tolerance_cents" toml:"tolerance_cents"`
	ToneSampleRate int     `yaml:"tone_sample_rate" toml:"tone_sample_rate"`
	ToneDurationMs int     `yaml:"tone_duration_ms" toml:"tone_duration_ms"`
}

type Config struct {
	Server  Server  `yaml:"server" toml:"server"`
	Storage Storage `yaml:"storage" toml:"storage"`
	Logging Logging `yaml:"logging" toml:"logging"`
	Engine  Engine  `yaml:"engine" toml:"engine"`
	Tuning  Tuning  `yaml:"tuning" toml:"tuning"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Storage: Storage{
			DBPath:       "tubetuner.sqlite3",
			SeedDefaults: true,
		},
		Logging: Logging{Level: "info"},
		Engine: Engine{
			MinOctave:           notes.DefaultMinOctave,
			MaxOctave:           notes.DefaultMaxOctave,
			EndCorrection:       resolver.DefaultEndCorrection,
			Temperature:         resolver.DefaultTemperature,
			SimilarityThreshold: 0.15,
		},
		Tuning: Tuning{
			ToleranceCents: pitch.DefaultToleranceCents,
			ToneSampleRate: 44100,
			ToneDurationMs: 2000,
		},
	}
}

// Load reads path, or the first file found by the lookup order when path is
// empty. It returns the resolved path, which is empty when only defaults
// were used.
func Load(path string) (*Config, string, error) {
	if path == "" {
		path = findConfigPath()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, path, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, path, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q (use .yaml or .toml)", filepath.Ext(path))
	}
}

func findConfigPath() string {
	if p := os.Getenv("TUBETUNER_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"tubetuner.yaml", "tubetuner.yml", "tubetuner.toml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TUBETUNER_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("TUBETUNER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TUBETUNER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		errs = append(errs, errors.New("storage.db_path is required"))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Engine.MinOctave < 0 || c.Engine.MaxOctave < c.Engine.MinOctave {
		errs = append(errs, fmt.Errorf("engine octave range %d..%d is invalid", c.Engine.MinOctave, c.Engine.MaxOctave))
	}
	env := resolver.Environment{EndCorrection: c.Engine.EndCorrection, Temperature: c.Engine.Temperature}
	if err := env.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	for name, coef := range c.Engine.Materials {
		if !(coef > 0) || math.IsInf(coef, 0) {
			errs = append(errs, fmt.Errorf("engine.materials.%s must be positive, got %v", name, coef))
		}
	}
	if !(c.Engine.SimilarityThreshold > 0) {
		errs = append(errs, fmt.Errorf("engine.similarity_threshold must be positive, got %v", c.Engine.SimilarityThreshold))
	}
	if c.Engine.Workers < 0 {
		errs = append(errs, fmt.Errorf("engine.workers must not be negative, got %d", c.Engine.Workers))
	}
	if !(c.Tuning.ToleranceCents > 0) {
		errs = append(errs, fmt.Errorf("tuning.tolerance_cents must be positive, got %v", c.Tuning.ToleranceCents))
	}
	if c.Tuning.ToneSampleRate < 8000 {
		errs = append(errs, fmt.Errorf("tuning.tone_sample_rate must be at least 8000, got %d", c.Tuning.ToneSampleRate))
	}
	if c.Tuning.ToneDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("tuning.tone_duration_ms must be positive, got %d", c.Tuning.ToneDurationMs))
	}
	return errors.Join(errs...)
}

func (c *Config) LogLevel() logger.LogLevel {
	level, _ := logger.ParseLevel(c.Logging.Level)
	return level
}

// Environment returns the default environment for requests that omit it.
func (c *Config) Environment() resolver.Environment {
	return resolver.Environment{EndCorrection: c.Engine.EndCorrection, Temperature: c.Engine.Temperature}
}

func (c *Config) ToneDuration() time.Duration {
	return time.Duration(c.Tuning.ToneDurationMs) * time.Millisecond
}

// ServiceOptions converts the file settings into service options.
func (c *Config) ServiceOptions() []tubetuner.Option {
	materials := make(map[material.Kind]float64, len(c.Engine.Materials))
	for name, coef := range c.Engine.Materials {
		materials[material.Normalize(name)] = coef
	}
	return []tubetuner.Option{
		tubetuner.WithDBPath(c.Storage.DBPath),
		tubetuner.WithSeedDefaults(c.Storage.SeedDefaults),
		tubetuner.WithOctaveRange(c.Engine.MinOctave, c.Engine.MaxOctave),
		tubetuner.WithMaterials(materials),
		tubetuner.WithMaterialCoefficient(c.Engine.ApplyMaterialCoefficient),
		tubetuner.WithSimilarityThreshold(c.Engine.SimilarityThreshold),
		tubetuner.WithWorkers(c.Engine.Workers),
		tubetuner.WithToleranceCents(c.Tuning.ToleranceCents),
	}
}
