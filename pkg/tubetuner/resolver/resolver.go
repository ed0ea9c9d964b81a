package resolver

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

const (
	// SpeedOfSound is the speed of sound in m/s at ReferenceTemperature.
	SpeedOfSound         = 343.0
	ReferenceTemperature = 20.0

	DefaultEndCorrection = 15.0
	DefaultTemperature   = ReferenceTemperature

	CalibratedConfidence = 1.0
	CalculatedConfidence = 0.7

	// FormulaOpenTube labels results derived from the half-wavelength model.
	FormulaOpenTube = "open_tube_wavelength"

	referenceDiameter  = 20.0
	diameterAdjustment = 0.1
	minPositionRatio   = 0.1
	maxPositionRatio   = 0.9
	kelvinOffset       = 273.0
)

var (
	ErrInvalidGeometry    = errors.New("invalid tube geometry")
	ErrInvalidEnvironment = errors.New("invalid environment")
)

type Source string

const (
	SourceCalibrated Source = "calibrated"
	SourceCalculated Source = "calculated"
)

// Geometry describes the tube. Length and Diameter are in mm.
type Geometry struct {
	Length   float64       `json:"tube_length"`
	Diameter float64       `json:"tube_diameter"`
	Material material.Kind `json:"tube_material"`
}

func (g Geometry) Validate() error {
	if !finitePositive(g.Length) {
		return fmt.Errorf("%w: tube length must be positive, got %v", ErrInvalidGeometry, g.Length)
	}
	if !finitePositive(g.Diameter) {
		return fmt.Errorf("%w: tube diameter must be positive, got %v", ErrInvalidGeometry, g.Diameter)
	}
	return nil
}

// Environment holds the mouthpiece end correction (mm) and air temperature (°C).
type Environment struct {
	EndCorrection float64 `json:"mouthpiece_end_correction"`
	Temperature   float64 `json:"temperature"`
}

func DefaultEnvironment() Environment {
	return Environment{EndCorrection: DefaultEndCorrection, Temperature: DefaultTemperature}
}

func (e Environment) Validate() error {
	if math.IsNaN(e.EndCorrection) || math.IsInf(e.EndCorrection, 0) {
		return fmt.Errorf("%w: end correction must be finite, got %v", ErrInvalidEnvironment, e.EndCorrection)
	}
	if math.IsNaN(e.Temperature) || math.IsInf(e.Temperature, 0) {
		return fmt.Errorf("%w: temperature must be finite, got %v", ErrInvalidEnvironment, e.Temperature)
	}
	if temperatureFactor(e.Temperature) <= 0 {
		return fmt.Errorf("%w: temperature %.1f°C is below absolute zero for the model", ErrInvalidEnvironment, e.Temperature)
	}
	return nil
}

// HoleResult is the resolved placement of one finger hole.
type HoleResult struct {
	Note          notes.Note `json:"note"`
	Position      float64    `json:"position"`
	Diameter      float64    `json:"diameter"`
	Source        Source     `json:"source"`
	Confidence    float64    `json:"confidence"`
	IsVerified    bool       `json:"is_verified"`
	CalibrationID string     `json:"calibration_id,omitempty"`
	Frequency     float64    `json:"frequency"`
	Formula       string     `json:"formula_used,omitempty"`

	// MaterialCoefficient is reported for every result. It only affects
	// Position when the resolver applies material coefficients.
	MaterialCoefficient float64 `json:"material_coefficient"`
}

// Resolver places holes for notes, preferring calibrated measurements over
// the open-tube estimate. It never modifies the store it reads from.
type Resolver struct {
	table         *notes.Table
	store         *calibration.Store
	materials     *material.Table
	applyMaterial bool
	workers       int
}

type Option func(*Resolver)

// WithMaterials replaces the default material coefficient table.
func WithMaterials(t *material.Table) Option {
	return func(r *Resolver) {
		if t != nil {
			r.materials = t
		}
	}
}

// WithMaterialCoefficient multiplies the material coefficient into the
// speed of sound when computing positions. Off by default.
func WithMaterialCoefficient(apply bool) Option {
	return func(r *Resolver) {
		r.applyMaterial = apply
	}
}

// WithWorkers bounds how many notes ResolveAll resolves at once.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// New returns a resolver over table and store. A nil table means the
// default octave range; a nil store means no calibration data.
func New(table *notes.Table, store *calibration.Store, opts ...Option) *Resolver {
	if table == nil {
		table = notes.DefaultTable()
	}
	if store == nil {
		store = calibration.NewStore()
	}
	r := &Resolver{
		table:     table,
		store:     store,
		materials: material.NewTable(nil),
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Table() *notes.Table { return r.table }

func (r *Resolver) Store() *calibration.Store { return r.store }

func (r *Resolver) Materials() *material.Table { return r.materials }

// Resolve places the hole for a single note. It fails with
// notes.ErrUnknownNote when the note is outside the frequency table.
func (r *Resolver) Resolve(note notes.Note, g Geometry, env Environment) (HoleResult, error) {
	if err := g.Validate(); err != nil {
		return HoleResult{}, err
	}
	if err := env.Validate(); err != nil {
		return HoleResult{}, err
	}
	return r.resolve(note, g, env)
}

func (r *Resolver) resolve(note notes.Note, g Geometry, env Environment) (HoleResult, error) {
	freq, err := r.table.FrequencyOf(note)
	if err != nil {
		return HoleResult{}, err
	}
	coefficient, _ := r.materials.Coefficient(g.Material)

	if rec, ok := r.store.FindExactMatch(note, g.Diameter, g.Length, g.Material); ok {
		return HoleResult{
			Note:                note,
			Position:            rec.Position,
			Diameter:            calibration.DefaultHoleDiameter,
			Source:              SourceCalibrated,
			Confidence:          CalibratedConfidence,
			IsVerified:          true,
			CalibrationID:       rec.ID,
			Frequency:           freq,
			MaterialCoefficient: coefficient,
		}, nil
	}

	applied := 1.0
	if r.applyMaterial {
		applied = coefficient
	}
	return HoleResult{
		Note:                note,
		Position:            TheoreticalPosition(freq, g, env, applied),
		Diameter:            calibration.DefaultHoleDiameter,
		Source:              SourceCalculated,
		Confidence:          CalculatedConfidence,
		Frequency:           freq,
		Formula:             FormulaOpenTube,
		MaterialCoefficient: coefficient,
	}, nil
}

// TheoreticalPosition estimates the distance in mm from the mouthpiece to
// the hole sounding frequency. The result is clamped to [0.1, 0.9] of the
// tube length and rounded to 0.1 mm without leaving that range. Inputs are
// assumed valid.
func TheoreticalPosition(frequency float64, g Geometry, env Environment, coefficient float64) float64 {
	v := SpeedOfSound * math.Sqrt(temperatureFactor(env.Temperature)) * coefficient
	wavelength := v * 1000 / frequency
	length := wavelength/2 - env.EndCorrection

	position := length * (1 - diameterAdjustment*math.Log(g.Diameter/referenceDiameter))

	lo, hi := minPositionRatio*g.Length, maxPositionRatio*g.Length
	return roundWithin(math.Min(math.Max(position, lo), hi), lo, hi)
}

func temperatureFactor(celsius float64) float64 {
	return 1 + (celsius-ReferenceTemperature)/kelvinOffset
}

// roundWithin rounds v to one decimal, stepping inward when plain rounding
// would cross a bound.
func roundWithin(v, lo, hi float64) float64 {
	r := math.Round(v*10) / 10
	if r < lo {
		r = math.Ceil(lo*10) / 10
	}
	if r > hi {
		r = math.Floor(hi*10) / 10
	}
	return r
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
