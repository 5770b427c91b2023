package database

import (
	"math"
	"testing"
)

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.1, 0.2, 0.3}, []float32{0.1, 0.2, 0.3}, 0},
		{"unit apart", []float32{0, 0}, []float32{1, 0}, 1},
		{"three four five", []float32{0, 0}, []float32{3, 4}, 5},
		{"negative components", []float32{-1, -1}, []float32{1, 1}, math.Sqrt(8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EuclideanDistance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("EuclideanDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanDistance_Symmetric(t *testing.T) {
	a := []float32{0.3, -0.2, 0.9, 0.05}
	b := []float32{-0.1, 0.4, 0.2, 0.7}
	if EuclideanDistance(a, b) != EuclideanDistance(b, a) {
		t.Error("distance should be symmetric")
	}
}

func TestEuclideanDistance_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"both empty", nil, nil},
		{"one empty", []float32{}, []float32{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EuclideanDistance(tt.a, tt.b); !math.IsInf(got, 1) {
				t.Errorf("EuclideanDistance() = %v, want +Inf", got)
			}
		})
	}
}
