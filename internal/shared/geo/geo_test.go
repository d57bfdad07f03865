package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	pairs := [][4]float64{
		{-6.2, 106.816, -6.9175, 107.6191},
		{40.7128, -74.0060, 51.5074, -0.1278},
		{0, 0, 0, 180},
		{89.9, 10, -89.9, -170},
		{37.7749, -122.4194, 37.7750, -122.4195},
	}
	for _, p := range pairs {
		ab := HaversineM(p[0], p[1], p[2], p[3])
		ba := HaversineM(p[2], p[3], p[0], p[1])
		if ab != ba {
			t.Fatalf("asymmetric distance for %v: %v vs %v", p, ab, ba)
		}
		if ab <= 0 {
			t.Fatalf("expected positive distance for distinct points %v, got %v", p, ab)
		}
	}
}

func TestHaversineIdenticalPointsIsZero(t *testing.T) {
	points := [][2]float64{{0, 0}, {-6.2, 106.816}, {89.999999, 179.999999}, {37.774929, -122.419416}}
	for _, p := range points {
		d := HaversineM(p[0], p[1], p[0], p[1])
		if d != 0 || math.IsNaN(d) {
			t.Fatalf("expected zero distance for %v, got %v", p, d)
		}
	}
}

func TestHaversineAntipodalIsNotNaN(t *testing.T) {
	d := HaversineM(0, 0, 0, 180)
	if math.IsNaN(d) {
		t.Fatalf("antipodal distance is NaN")
	}
	half := math.Pi * EarthRadiusM
	if math.Abs(d-half) > 1 {
		t.Fatalf("expected half circumference %v, got %v", half, d)
	}
}

func TestHaversineAlongMeridian(t *testing.T) {
	// one degree of latitude on the model sphere
	want := EarthRadiusM * math.Pi / 180
	d := HaversineM(10, 20, 11, 20)
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, d)
	}
}
