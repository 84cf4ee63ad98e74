package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// circleSegments is the number of vertices used to approximate a buffer disk.
const circleSegments = 32

// Validate checks that a footprint geometry is usable: present, non-empty,
// with closed, non-self-intersecting rings. Violations are a *GeometryError;
// the geometry is never repaired.
func Validate(geom orb.Geometry) error {
	if geom == nil {
		return &GeometryError{Reason: "missing geometry"}
	}

	switch g := geom.(type) {
	case orb.Point:
		return nil
	case orb.MultiPoint:
		if len(g) == 0 {
			return &GeometryError{Reason: "empty multipoint"}
		}
		return nil
	case orb.LineString:
		if len(g) < 2 {
			return &GeometryError{Reason: "linestring has fewer than 2 points"}
		}
		return nil
	case orb.Ring:
		return validateRing(g)
	case orb.Polygon:
		if len(g) == 0 {
			return &GeometryError{Reason: "empty polygon"}
		}
		for _, ring := range g {
			if err := validateRing(ring); err != nil {
				return err
			}
		}
		return nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return &GeometryError{Reason: "empty multipolygon"}
		}
		for _, poly := range g {
			if err := Validate(poly); err != nil {
				return err
			}
		}
		return nil
	default:
		return &GeometryError{Reason: "unsupported geometry type " + geom.GeoJSONType()}
	}
}

func validateRing(ring orb.Ring) error {
	if len(ring) < 4 {
		return &GeometryError{Reason: "ring has fewer than 4 points"}
	}
	if !ring.Closed() {
		return &GeometryError{Reason: "ring is not closed"}
	}
	if ringSelfIntersects(ring) {
		return &GeometryError{Reason: "ring is self-intersecting"}
	}
	return nil
}

// ringSelfIntersects reports whether any two non-adjacent edges of the ring
// properly cross each other.
func ringSelfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // closing vertex duplicates the first
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// skip adjacent edges (they share a vertex)
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d orb.Point) bool {
	o1 := cross(a, b, c)
	o2 := cross(a, b, d)
	o3 := cross(c, d, a)
	o4 := cross(c, d, b)
	return o1*o2 < 0 && o3*o4 < 0
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// RepresentativePoint returns a point guaranteed to lie on or inside the
// geometry, suitable for resolving a locally accurate projected CRS even for
// concave polygons (where the centroid may fall outside).
func RepresentativePoint(geom orb.Geometry) (orb.Point, error) {
	switch g := geom.(type) {
	case orb.Point:
		return g, nil
	case orb.MultiPoint:
		if len(g) == 0 {
			return orb.Point{}, &GeometryError{Reason: "empty multipoint"}
		}
		return g[0], nil
	case orb.LineString:
		if len(g) == 0 {
			return orb.Point{}, &GeometryError{Reason: "empty linestring"}
		}
		return g[len(g)/2], nil
	case orb.Ring:
		return RepresentativePoint(orb.Polygon{g})
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return orb.Point{}, &GeometryError{Reason: "empty polygon"}
		}
		return pointOnSurface(g), nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return orb.Point{}, &GeometryError{Reason: "empty multipolygon"}
		}
		best := 0
		bestArea := 0.0
		for i, poly := range g {
			if len(poly) == 0 {
				continue
			}
			a := math.Abs(ringArea(poly[0]))
			if a > bestArea {
				bestArea = a
				best = i
			}
		}
		return RepresentativePoint(g[best])
	default:
		return orb.Point{}, &GeometryError{Reason: "unsupported geometry type " + geom.GeoJSONType()}
	}
}

// pointOnSurface scans the horizontal line through the vertical midpoint of
// the polygon's envelope and returns the midpoint of the widest interior span.
func pointOnSurface(poly orb.Polygon) orb.Point {
	b := poly.Bound()
	midY := (b.Min[1] + b.Max[1]) / 2

	var xs []float64
	for _, ring := range poly {
		n := len(ring)
		for i := 0; i < n-1; i++ {
			a, c := ring[i], ring[i+1]
			if (a[1] <= midY) == (c[1] <= midY) {
				continue
			}
			x := a[0] + (midY-a[1])*(c[0]-a[0])/(c[1]-a[1])
			xs = append(xs, x)
		}
	}
	if len(xs) < 2 {
		return orb.Point{(b.Min[0] + b.Max[0]) / 2, midY}
	}
	sort.Float64s(xs)

	bestX := xs[0]
	bestSpan := -1.0
	for i := 0; i+1 < len(xs); i += 2 {
		span := xs[i+1] - xs[i]
		if span > bestSpan {
			bestSpan = span
			bestX = (xs[i] + xs[i+1]) / 2
		}
	}
	return orb.Point{bestX, midY}
}

func ringArea(ring orb.Ring) float64 {
	area := 0.0
	for i := 0; i < len(ring)-1; i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area / 2
}

// Buffer dilates (or, for negative distances, erodes) a geometry in projected
// meter space, always producing a polygon. Points and lines become polygons
// under a positive buffer; a buffer that would yield a zero-area result is a
// *GeometryError.
func Buffer(geom orb.Geometry, meters float64) (orb.Polygon, error) {
	if meters < 0 {
		poly, ok := geom.(orb.Polygon)
		if !ok {
			return nil, &GeometryError{Reason: "negative buffer requires a polygon"}
		}
		return erode(poly, -meters)
	}

	if meters == 0 {
		if poly, ok := geom.(orb.Polygon); ok {
			return poly.Clone(), nil
		}
		return nil, &GeometryError{Reason: "zero buffer of a zero-area footprint"}
	}

	vertices, err := bufferVertices(geom)
	if err != nil {
		return nil, err
	}
	if len(vertices) == 1 {
		return orb.Polygon{circle(vertices[0], meters)}, nil
	}

	pts := make([]orb.Point, 0, len(vertices)*circleSegments)
	for _, v := range vertices {
		c := circle(v, meters)
		pts = append(pts, c[:len(c)-1]...)
	}
	return orb.Polygon{convexHull(pts)}, nil
}

func bufferVertices(geom orb.Geometry) ([]orb.Point, error) {
	switch g := geom.(type) {
	case orb.Point:
		return []orb.Point{g}, nil
	case orb.MultiPoint:
		return g, nil
	case orb.LineString:
		return g, nil
	case orb.Ring:
		return g, nil
	case orb.Polygon:
		if len(g) == 0 {
			return nil, &GeometryError{Reason: "empty polygon"}
		}
		return g[0], nil
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, poly := range g {
			if len(poly) > 0 {
				pts = append(pts, poly[0]...)
			}
		}
		if len(pts) == 0 {
			return nil, &GeometryError{Reason: "empty multipolygon"}
		}
		return pts, nil
	default:
		return nil, &GeometryError{Reason: "unsupported geometry type " + geom.GeoJSONType()}
	}
}

func circle(center orb.Point, radius float64) orb.Ring {
	ring := make(orb.Ring, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		ring[i] = orb.Point{center[0] + radius*math.Cos(a), center[1] + radius*math.Sin(a)}
	}
	ring[circleSegments] = ring[0]
	return ring
}

// convexHull computes the hull ring via the monotone chain algorithm.
// The result is closed and counter-clockwise.
func convexHull(pts []orb.Point) orb.Ring {
	sorted := make([]orb.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	var lower, upper []orb.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])
	return ring
}

// erode shrinks a polygon's outer ring inward by the given distance using
// per-edge half-plane clipping. Exact for convex rings; an empty result is a
// *GeometryError.
func erode(poly orb.Polygon, dist float64) (orb.Polygon, error) {
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, &GeometryError{Reason: "empty polygon"}
	}

	ring := poly[0].Clone()
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}

	subject := []orb.Point(ring[:len(ring)-1])
	n := len(subject)

	// clip against each inward-offset edge of the original ring
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[i+1]
		dx, dy := b[0]-a[0], b[1]-a[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		// interior is to the left of a CCW edge
		nx, ny := -dy/length*dist, dx/length*dist
		oa := orb.Point{a[0] + nx, a[1] + ny}
		ob := orb.Point{b[0] + nx, b[1] + ny}
		subject = clipHalfPlane(subject, oa, ob)
		if len(subject) < 3 {
			return nil, &GeometryError{Reason: "negative buffer produced an empty geometry"}
		}
	}

	out := make(orb.Ring, 0, len(subject)+1)
	out = append(out, subject...)
	out = append(out, subject[0])
	return orb.Polygon{out}, nil
}

// clipHalfPlane keeps the part of the polygon on or left of the directed line
// a->b (Sutherland-Hodgman step).
func clipHalfPlane(subject []orb.Point, a, b orb.Point) []orb.Point {
	var out []orb.Point
	n := len(subject)
	for i := 0; i < n; i++ {
		cur := subject[i]
		prev := subject[(i+n-1)%n]
		curIn := cross(a, b, cur) >= 0
		prevIn := cross(a, b, prev) >= 0

		if curIn != prevIn {
			out = append(out, lineIntersection(prev, cur, a, b))
		}
		if curIn {
			out = append(out, cur)
		}
	}
	return out
}

func lineIntersection(p1, p2, a, b orb.Point) orb.Point {
	d1 := cross(a, b, p1)
	d2 := cross(a, b, p2)
	t := d1 / (d1 - d2)
	return orb.Point{p1[0] + t*(p2[0]-p1[0]), p1[1] + t*(p2[1]-p1[1])}
}

// BufferGeographic expands a geographic footprint by a metric distance:
// it resolves the local UTM zone from the footprint's representative point,
// projects the footprint into it, buffers in meters, and transforms the
// resulting polygon back to geographic coordinates. Buffering happens in the
// projected system because a degree-based buffer is not metrically uniform
// across latitudes.
func BufferGeographic(geom orb.Geometry, meters float64) (orb.Polygon, error) {
	if err := Validate(geom); err != nil {
		return nil, err
	}

	rp, err := RepresentativePoint(geom)
	if err != nil {
		return nil, err
	}

	crs, err := ResolveUTM(rp[1], rp[0])
	if err != nil {
		return nil, err
	}

	proj := crs.Projection()
	projected, err := Reproject(geom, Geographic(), proj)
	if err != nil {
		return nil, &GeometryError{Reason: err.Error()}
	}

	buffered, err := Buffer(projected, meters)
	if err != nil {
		return nil, err
	}

	back, err := Reproject(buffered, proj, Geographic())
	if err != nil {
		return nil, &GeometryError{Reason: err.Error()}
	}
	return back.(orb.Polygon), nil
}
