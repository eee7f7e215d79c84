package analyzer

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := map[float64]float64{-1: 0, -0.2: 0, 0: 0, 0.9: 0.9, 1: 1, 1.0000001: 1}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%f) = %f, want %f", in, got, want)
		}
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a        []string
		b        []string
		expected float64
	}{
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 1.0},
		{"no overlap", []string{"a", "b", "c"}, []string{"d", "e", "f"}, 0.0},
		{"half overlap", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"duplicates ignored", []string{"a", "a", "b"}, []string{"a", "b"}, 1.0},
		{"empty a", []string{}, []string{"a", "b"}, 0.0},
		{"both empty", []string{}, []string{}, 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Jaccard(tc.a, tc.b); math.Abs(got-tc.expected) > 0.001 {
				t.Errorf("Jaccard(%v, %v) = %f, expected %f", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
