package geo

import (
	"math"
	"testing"

	"github.com/sporewatch/sightingmap/pkg/core"
)

func TestCalculateCenter_Empty(t *testing.T) {
	got := CalculateCenter(nil)

	if got != DefaultCenter {
		t.Errorf("expected fallback %v, got %v", DefaultCenter, got)
	}
	if got.Lat != -37.8136 || got.Lng != 144.9631 {
		t.Errorf("fallback moved: %v", got)
	}
}

func TestCalculateCenter_Mean(t *testing.T) {
	got := CalculateCenter([]core.Sighting{
		{ID: "1", Lat: 10, Lng: 20},
		{ID: "2", Lat: 20, Lng: 40},
	})

	if got.Lat != 15 {
		t.Errorf("expected lat=15, got %f", got.Lat)
	}
	if got.Lng != 30 {
		t.Errorf("expected lng=30, got %f", got.Lng)
	}
}

func TestCalculateCenter_SinglePoint(t *testing.T) {
	got := CalculateCenter([]core.Sighting{{ID: "1", Lat: -33.5, Lng: 151.2}})

	if got.Lat != -33.5 || got.Lng != 151.2 {
		t.Errorf("expected the point itself, got %v", got)
	}
}

func TestCalculateCenter_AntimeridianIsArithmetic(t *testing.T) {
	// Two points either side of the antimeridian average to 0, not 180.
	got := CalculateCenter([]core.Sighting{
		{ID: "1", Lat: 0, Lng: 179},
		{ID: "2", Lat: 0, Lng: -179},
	})

	if got.Lng != 0 {
		t.Errorf("expected arithmetic mean lng=0, got %f", got.Lng)
	}
}

func TestBoundsOf_Empty(t *testing.T) {
	b := BoundsOf(nil)

	if !b.IsEmpty() {
		t.Errorf("expected empty bounds, got %+v", b)
	}
}

func TestBoundsOf_CoversAllPoints(t *testing.T) {
	sightings := []core.Sighting{
		{ID: "1", Lat: -37.9, Lng: 145.1},
		{ID: "2", Lat: -37.7, Lng: 144.8},
		{ID: "3", Lat: -38.2, Lng: 145.0},
	}

	b := BoundsOf(sightings)

	if b.IsEmpty() {
		t.Fatal("expected non-empty bounds")
	}
	if b.SouthWest.Lat != -38.2 || b.SouthWest.Lng != 144.8 {
		t.Errorf("unexpected south-west %v", b.SouthWest)
	}
	if b.NorthEast.Lat != -37.7 || b.NorthEast.Lng != 145.1 {
		t.Errorf("unexpected north-east %v", b.NorthEast)
	}
	for _, s := range sightings {
		if !b.Contains(s.Position()) {
			t.Errorf("bounds %+v do not contain %v", b, s.Position())
		}
	}
}

func TestBoundsOf_SkipsNonFinite(t *testing.T) {
	b := BoundsOf([]core.Sighting{
		{ID: "1", Lat: -37.8, Lng: 144.9},
		{ID: "2", Lat: math.NaN(), Lng: 150},
		{ID: "3", Lat: -37.6, Lng: math.Inf(1)},
	})

	if b.IsEmpty() {
		t.Fatal("expected bounds from the finite sighting")
	}
	want := core.LatLng{Lat: -37.8, Lng: 144.9}
	if b.SouthWest != want || b.NorthEast != want {
		t.Errorf("expected a single-point box at %v, got %+v", want, b)
	}
}

func TestToWebMercator_Origin(t *testing.T) {
	xy := ToWebMercator(core.LatLng{})

	if math.Abs(xy.X) > 1e-6 || math.Abs(xy.Y) > 1e-6 {
		t.Errorf("expected origin, got %v", xy)
	}
}

func TestToWebMercator_Antimeridian(t *testing.T) {
	xy := ToWebMercator(core.LatLng{Lat: 0, Lng: 180})

	if math.Abs(xy.X-mercatorExtent/2) > 1 {
		t.Errorf("expected x=%f, got %f", mercatorExtent/2, xy.X)
	}
}

func TestFitZoom_EmptyBounds(t *testing.T) {
	if z := FitZoom(core.Bounds{}, 800, 600, 18); z != 0 {
		t.Errorf("expected 0, got %d", z)
	}
}

func TestFitZoom_SinglePointUsesMaxZoom(t *testing.T) {
	b := BoundsOf([]core.Sighting{{ID: "1", Lat: -37.8, Lng: 144.9}})

	if z := FitZoom(b, 800, 600, 17); z != 17 {
		t.Errorf("expected 17, got %d", z)
	}
}

func TestFitZoom_WholeWorld(t *testing.T) {
	b := core.Bounds{
		SouthWest: core.LatLng{Lat: -80, Lng: -180},
		NorthEast: core.LatLng{Lat: 80, Lng: 180},
		Valid:     true,
	}

	// 256px shows the whole world at zoom 0
	if z := FitZoom(b, 256, 256, 18); z != 0 {
		t.Errorf("expected 0, got %d", z)
	}
}

func TestFitZoom_Monotonic(t *testing.T) {
	center := core.LatLng{Lat: -37.8, Lng: 144.9}
	prev := -1
	for _, half := range []float64{10, 5, 1, 0.5, 0.1, 0.01} {
		b := core.Bounds{
			SouthWest: core.LatLng{Lat: center.Lat - half, Lng: center.Lng - half},
			NorthEast: core.LatLng{Lat: center.Lat + half, Lng: center.Lng + half},
			Valid:     true,
		}
		z := FitZoom(b, 800, 600, 20)
		if z < prev {
			t.Errorf("zoom decreased for smaller bounds: %d < %d (half=%f)", z, prev, half)
		}
		prev = z
	}
}
