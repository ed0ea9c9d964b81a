package material

import "testing"

func TestCoefficientDefaults(t *testing.T) {
	table := NewTable(nil)

	tests := []struct {
		kind Kind
		want float64
	}{
		{PVC, 1.0},
		{Bamboo, 0.95},
		{Metal, 1.1},
		{Wood, 0.98},
		{Carbon, 1.05},
	}
	for _, tt := range tests {
		got, ok := table.Coefficient(tt.kind)
		if !ok {
			t.Errorf("Coefficient(%s) reported unknown material", tt.kind)
		}
		if got != tt.want {
			t.Errorf("Coefficient(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestCoefficientUnknownMaterial(t *testing.T) {
	table := NewTable(nil)

	got, ok := table.Coefficient("aluminum")
	if ok {
		t.Error("aluminum should not be listed by default")
	}
	if got != DefaultCoefficient {
		t.Errorf("Coefficient(aluminum) = %v, want %v", got, DefaultCoefficient)
	}
}

func TestNewTableOverrides(t *testing.T) {
	table := NewTable(map[Kind]float64{
		"Aluminum": 1.08,
		"pvc":      0.99,
		"glass":    0,
	})

	if got, ok := table.Coefficient("aluminum"); !ok || got != 1.08 {
		t.Errorf("Coefficient(aluminum) = %v, %v; want 1.08, true", got, ok)
	}
	if got, _ := table.Coefficient(PVC); got != 0.99 {
		t.Errorf("Coefficient(pvc) = %v, want 0.99", got)
	}
	if _, ok := table.Coefficient("glass"); ok {
		t.Error("non-positive override should be ignored")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Bamboo "); got != Bamboo {
		t.Errorf("Normalize = %q, want %q", got, Bamboo)
	}
	if got := Normalize(""); got != PVC {
		t.Errorf("Normalize(empty) = %q, want %q", got, PVC)
	}
}

func TestKindsSorted(t *testing.T) {
	kinds := NewTable(nil).Kinds()
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Fatalf("Kinds not sorted: %v", kinds)
		}
	}
	if len(kinds) != 5 {
		t.Errorf("len(Kinds) = %d, want 5", len(kinds))
	}
}
