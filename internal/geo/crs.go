// Package geo provides the per-feature coordinate machinery: UTM zone
// resolution, a transverse Mercator projection engine, and metric footprint
// buffering over paulmach/orb geometries.
package geo

import (
	"fmt"
	"math"
)

// ProjectedCRS identifies a UTM zone coordinate reference system.
type ProjectedCRS struct {
	Zone  int
	South bool
}

// EPSG returns the EPSG code for the zone (326xx north, 327xx south).
func (c ProjectedCRS) EPSG() int {
	if c.South {
		return 32700 + c.Zone
	}
	return 32600 + c.Zone
}

// Proj4 returns the proj4-style definition string for the zone.
func (c ProjectedCRS) Proj4() string {
	if c.South {
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", c.Zone)
	}
	return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", c.Zone)
}

// Projection returns the projection engine for this CRS.
func (c ProjectedCRS) Projection() *Projection {
	return newUTM(c.Zone, c.South, WGS84)
}

// ResolveUTM picks the UTM zone containing the given geographic point.
// The zone index is floor((lon+180)/6)+1; longitude +180 wraps to zone 1.
// The hemisphere split is at the equator, inclusive north.
// Out-of-range or non-finite coordinates return a *CoordinateError.
func ResolveUTM(lat, lon float64) (ProjectedCRS, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ProjectedCRS{}, &CoordinateError{Lat: lat, Lon: lon}
	}

	zone := int(math.Floor((lon+180)/6)) + 1
	zone = (zone-1)%60 + 1

	return ProjectedCRS{Zone: zone, South: lat < 0}, nil
}
