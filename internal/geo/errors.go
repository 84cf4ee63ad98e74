package geo

import "fmt"

// CoordinateError reports a latitude/longitude outside the valid geographic
// range. Out-of-range coordinates are rejected, never clamped.
type CoordinateError struct {
	Lat float64
	Lon float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("coordinate out of range: lat=%g lon=%g (lat must be in [-90,90], lon in [-180,180])", e.Lat, e.Lon)
}

// GeometryError reports a structurally invalid input geometry (missing,
// empty, or self-intersecting). Invalid geometries are rejected, not repaired.
type GeometryError struct {
	Reason string
}

func (e *GeometryError) Error() string {
	return "invalid geometry: " + e.Reason
}
