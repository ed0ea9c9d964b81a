package resolver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

var pvc450 = Geometry{Length: 450, Diameter: 20, Material: material.PVC}

func seeded() *Resolver {
	return New(notes.DefaultTable(), calibration.NewStore(calibration.DefaultSeed()...))
}

func TestResolveCalibratedWithinTolerance(t *testing.T) {
	r := seeded()

	got, err := r.Resolve("D4", Geometry{Length: 455, Diameter: 20.5, Material: material.PVC}, DefaultEnvironment())
	require.NoError(t, err)

	assert.Equal(t, SourceCalibrated, got.Source)
	assert.Equal(t, CalibratedConfidence, got.Confidence)
	assert.Equal(t, 225.0, got.Position)
	assert.Equal(t, 8.0, got.Diameter)
	assert.True(t, got.IsVerified)
	assert.NotEmpty(t, got.CalibrationID)
	assert.Equal(t, 293.66, got.Frequency)
	assert.Empty(t, got.Formula)
}

func TestResolveFallsBackToFormula(t *testing.T) {
	r := seeded()

	got, err := r.Resolve("D4", Geometry{Length: 450, Diameter: 25, Material: material.PVC}, DefaultEnvironment())
	require.NoError(t, err)

	assert.Equal(t, SourceCalculated, got.Source)
	assert.Equal(t, CalculatedConfidence, got.Confidence)
	assert.False(t, got.IsVerified)
	assert.Empty(t, got.CalibrationID)
	assert.Equal(t, FormulaOpenTube, got.Formula)
}

func TestResolveOtherMaterialIsCalculated(t *testing.T) {
	r := seeded()

	got, err := r.Resolve("D4", Geometry{Length: 450, Diameter: 20, Material: material.Bamboo}, DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, SourceCalculated, got.Source)
}

func TestTheoreticalPositionValues(t *testing.T) {
	r := New(nil, nil)
	long := Geometry{Length: 1000, Diameter: 20, Material: material.PVC}

	tests := []struct {
		name string
		note notes.Note
		g    Geometry
		env  Environment
		want float64
	}{
		{"D4 reference geometry", "D4", long, DefaultEnvironment(), 569.0},
		{"A4 reference geometry", "A4", long, DefaultEnvironment(), 374.8},
		{"A4 warm air", "A4", long, Environment{EndCorrection: 15, Temperature: 30}, 381.8},
		{"A4 narrow tube", "A4", Geometry{Length: 1000, Diameter: 10, Material: material.PVC}, DefaultEnvironment(), 400.7},
		{"E4 reference geometry", "E4", long, DefaultEnvironment(), 505.3},
		{"A5 reference geometry", "A5", long, DefaultEnvironment(), 179.9},
		{"clamped to 0.9L", "D4", pvc450, DefaultEnvironment(), 405.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.note, tt.g, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Position)
			assert.Equal(t, SourceCalculated, got.Source)
		})
	}
}

func TestResolveClampsToLowerBound(t *testing.T) {
	r := New(nil, nil)

	// A5 wants ~180 mm, far below 0.1 of a 3 m tube.
	got, err := r.Resolve("A5", Geometry{Length: 3000, Diameter: 20, Material: material.PVC}, DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.Position)
}

func TestComputedPositionsStayWithinBounds(t *testing.T) {
	r := New(nil, nil)

	lengths := []float64{120, 333, 450, 777.7, 1000, 2500}
	diameters := []float64{0.5, 4, 12.5, 20, 31, 80}
	temperatures := []float64{-40, 0, 20, 45}

	for _, note := range r.Table().Notes() {
		for _, l := range lengths {
			for _, d := range diameters {
				for _, temp := range temperatures {
					g := Geometry{Length: l, Diameter: d, Material: material.Metal}
					got, err := r.Resolve(note, g, Environment{EndCorrection: 15, Temperature: temp})
					require.NoError(t, err)
					if got.Position < 0.1*l || got.Position > 0.9*l {
						t.Fatalf("%s L=%v d=%v T=%v: position %v outside [%v, %v]",
							note, l, d, temp, got.Position, 0.1*l, 0.9*l)
					}
					assert.Equal(t, got.Position, math.Round(got.Position*10)/10)
				}
			}
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := seeded()
	g := Geometry{Length: 612.3, Diameter: 17.9, Material: "aluminum"}
	env := Environment{EndCorrection: 12.5, Temperature: 26}

	for _, note := range []notes.Note{"D4", "F#3", "C5"} {
		first, err := r.Resolve(note, g, env)
		require.NoError(t, err)
		second, err := r.Resolve(note, g, env)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

// The material coefficient is reported but does not move the hole unless
// the resolver is told to apply it.
func TestMaterialCoefficientNotAppliedByDefault(t *testing.T) {
	r := New(nil, nil)
	long := Geometry{Length: 1000, Diameter: 20}

	long.Material = material.PVC
	pvc, err := r.Resolve("A4", long, DefaultEnvironment())
	require.NoError(t, err)

	long.Material = material.Metal
	metal, err := r.Resolve("A4", long, DefaultEnvironment())
	require.NoError(t, err)

	assert.Equal(t, pvc.Position, metal.Position)
	assert.Equal(t, 1.0, pvc.MaterialCoefficient)
	assert.Equal(t, 1.1, metal.MaterialCoefficient)
}

func TestMaterialCoefficientApplied(t *testing.T) {
	r := New(nil, nil, WithMaterialCoefficient(true))
	long := Geometry{Length: 1000, Diameter: 20}

	long.Material = material.PVC
	pvc, err := r.Resolve("A5", long, DefaultEnvironment())
	require.NoError(t, err)

	long.Material = material.Metal
	metal, err := r.Resolve("A5", long, DefaultEnvironment())
	require.NoError(t, err)

	long.Material = material.Bamboo
	bamboo, err := r.Resolve("A5", long, DefaultEnvironment())
	require.NoError(t, err)

	assert.Equal(t, 179.9, pvc.Position)
	assert.Greater(t, metal.Position, pvc.Position)
	assert.Less(t, bamboo.Position, pvc.Position)
}

func TestUnknownMaterialUsesDefaultCoefficient(t *testing.T) {
	r := New(nil, nil, WithMaterialCoefficient(true))

	got, err := r.Resolve("A4", Geometry{Length: 1000, Diameter: 20, Material: "unobtainium"}, DefaultEnvironment())
	require.NoError(t, err)
	assert.Equal(t, material.DefaultCoefficient, got.MaterialCoefficient)
	assert.Equal(t, 374.8, got.Position)
}

func TestResolveUnknownNote(t *testing.T) {
	r := seeded()

	for _, n := range []notes.Note{"H4", "Db4", "C9", "", "d4"} {
		_, err := r.Resolve(n, pvc450, DefaultEnvironment())
		assert.ErrorIs(t, err, notes.ErrUnknownNote, "note %q", n)
	}
}

func TestResolveInvalidGeometry(t *testing.T) {
	r := seeded()

	bad := []Geometry{
		{Length: 0, Diameter: 20},
		{Length: -450, Diameter: 20},
		{Length: 450, Diameter: 0},
		{Length: 450, Diameter: -1},
		{Length: math.NaN(), Diameter: 20},
		{Length: 450, Diameter: math.Inf(1)},
	}
	for _, g := range bad {
		_, err := r.Resolve("D4", g, DefaultEnvironment())
		assert.ErrorIs(t, err, ErrInvalidGeometry, "%+v", g)
	}
}

func TestResolveInvalidGeometryBeforeNoteLookup(t *testing.T) {
	r := seeded()

	_, err := r.Resolve("H9", Geometry{Length: 0, Diameter: 20}, DefaultEnvironment())
	assert.ErrorIs(t, err, ErrInvalidGeometry)
	assert.NotErrorIs(t, err, notes.ErrUnknownNote)
}

func TestResolveInvalidEnvironment(t *testing.T) {
	r := seeded()

	bad := []Environment{
		{EndCorrection: 15, Temperature: -253},
		{EndCorrection: 15, Temperature: -300},
		{EndCorrection: math.NaN(), Temperature: 20},
		{EndCorrection: 15, Temperature: math.Inf(1)},
	}
	for _, env := range bad {
		_, err := r.Resolve("D4", pvc450, env)
		assert.ErrorIs(t, err, ErrInvalidEnvironment, "%+v", env)
	}
}

func TestRoundWithin(t *testing.T) {
	assert.Equal(t, 45.0, roundWithin(45, 45, 405))
	assert.Equal(t, 405.0, roundWithin(405, 45, 405))
	assert.Equal(t, 12.4, roundWithin(12.34, 12.34, 111.06))
	assert.Equal(t, 111.0, roundWithin(111.06, 12.34, 111.06))
	assert.Equal(t, 60.2, roundWithin(60.15000001, 12.34, 111.06))
}
