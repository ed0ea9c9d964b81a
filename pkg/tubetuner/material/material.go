package material

import (
	"sort"
	"strings"
)

// Kind names a tube material. Any string is accepted; names missing from a
// Table resolve to DefaultCoefficient.
type Kind string

const (
	PVC    Kind = "pvc"
	Bamboo Kind = "bamboo"
	Metal  Kind = "metal"
	Wood   Kind = "wood"
	Carbon Kind = "carbon"
)

// DefaultCoefficient is the speed-of-sound coefficient for unlisted materials.
const DefaultCoefficient = 1.0

// Normalize lower-cases and trims a material name. An empty name becomes PVC.
func Normalize(name string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if k == "" {
		return PVC
	}
	return k
}

// Table holds dimensionless speed-of-sound coefficients per material.
// It is read-only after construction.
type Table struct {
	coefficients map[Kind]float64
}

// DefaultCoefficients returns the built-in coefficient set.
func DefaultCoefficients() map[Kind]float64 {
	return map[Kind]float64{
		PVC:    1.0,
		Bamboo: 0.95,
		Metal:  1.1,
		Wood:   0.98,
		Carbon: 1.05,
	}
}

// NewTable builds a table from the defaults with overrides applied on top.
func NewTable(overrides map[Kind]float64) *Table {
	coefficients := DefaultCoefficients()
	for k, v := range overrides {
		if v <= 0 {
			continue
		}
		coefficients[Normalize(string(k))] = v
	}
	return &Table{coefficients: coefficients}
}

// Coefficient returns the coefficient for k and whether k was listed.
func (t *Table) Coefficient(k Kind) (float64, bool) {
	v, ok := t.coefficients[k]
	if !ok {
		return DefaultCoefficient, false
	}
	return v, true
}

// Kinds returns the listed materials sorted by name.
func (t *Table) Kinds() []Kind {
	out := make([]Kind, 0, len(t.coefficients))
	for k := range t.coefficients {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot copies the coefficient map.
func (t *Table) Snapshot() map[Kind]float64 {
	out := make(map[Kind]float64, len(t.coefficients))
	for k, v := range t.coefficients {
		out[k] = v
	}
	return out
}
