package geo

import (
	"errors"
	"testing"
)

func TestResolveUTM_Zones(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		zone  int
		south bool
	}{
		{name: "west edge", lat: 10, lon: -180, zone: 1},
		{name: "east edge wraps", lat: 10, lon: 180, zone: 1},
		{name: "prime meridian", lat: 10, lon: 0, zone: 31},
		{name: "kansas", lat: 40, lon: -100, zone: 14},
		{name: "canberra", lat: -35.3, lon: 149.1, zone: 55, south: true},
		{name: "equator is north", lat: 0, lon: 0, zone: 31, south: false},
		{name: "just south", lat: -0.0001, lon: 0, zone: 31, south: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs, err := ResolveUTM(tt.lat, tt.lon)
			if err != nil {
				t.Fatalf("ResolveUTM(%g, %g) failed: %v", tt.lat, tt.lon, err)
			}
			if crs.Zone != tt.zone {
				t.Errorf("Expected zone %d, got %d", tt.zone, crs.Zone)
			}
			if crs.South != tt.south {
				t.Errorf("Expected south=%v, got %v", tt.south, crs.South)
			}
		})
	}
}

func TestResolveUTM_ZoneBoundsAndMonotonic(t *testing.T) {
	prev := 0
	for lon := -180.0; lon <= 180.0; lon += 0.5 {
		crs, err := ResolveUTM(45, lon)
		if err != nil {
			t.Fatalf("ResolveUTM(45, %g) failed: %v", lon, err)
		}
		if crs.Zone < 1 || crs.Zone > 60 {
			t.Fatalf("zone %d out of [1,60] at lon %g", crs.Zone, lon)
		}
		// monotone non-decreasing except the antimeridian wrap back to 1
		if lon < 180 && crs.Zone < prev {
			t.Fatalf("zone decreased from %d to %d at lon %g", prev, crs.Zone, lon)
		}
		prev = crs.Zone
	}
}

func TestResolveUTM_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lon  float64
	}{
		{name: "lat too high", lat: 90.1, lon: 0},
		{name: "lat too low", lat: -91, lon: 0},
		{name: "lon too high", lat: 0, lon: 180.5},
		{name: "lon too low", lat: 0, lon: -200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveUTM(tt.lat, tt.lon)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var ce *CoordinateError
			if !errors.As(err, &ce) {
				t.Errorf("Expected *CoordinateError, got %T", err)
			}
		})
	}
}

func TestProjectedCRS_EPSG(t *testing.T) {
	north := ProjectedCRS{Zone: 14}
	if got := north.EPSG(); got != 32614 {
		t.Errorf("Expected EPSG 32614, got %d", got)
	}
	south := ProjectedCRS{Zone: 55, South: true}
	if got := south.EPSG(); got != 32755 {
		t.Errorf("Expected EPSG 32755, got %d", got)
	}
}

func TestProjectedCRS_Proj4(t *testing.T) {
	north := ProjectedCRS{Zone: 14}
	if got := north.Proj4(); got != "+proj=utm +zone=14 +datum=WGS84 +units=m +no_defs" {
		t.Errorf("unexpected proj4: %s", got)
	}
	south := ProjectedCRS{Zone: 55, South: true}
	if got := south.Proj4(); got != "+proj=utm +zone=55 +south +datum=WGS84 +units=m +no_defs" {
		t.Errorf("unexpected proj4: %s", got)
	}
}
