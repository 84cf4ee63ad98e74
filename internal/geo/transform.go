package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Ellipsoid holds the semi-major axis and flattening of a reference ellipsoid.
type Ellipsoid struct {
	A float64
	F float64
}

var (
	// WGS84 is the ellipsoid used by the WGS84 datum.
	WGS84 = Ellipsoid{A: 6378137.0, F: 1 / 298.257223563}
	// GRS80 is the ellipsoid used by the NAD83 datum.
	GRS80 = Ellipsoid{A: 6378137.0, F: 1 / 298.257222101}
)

const (
	utmScale        = 0.9996
	utmFalseEasting = 500000.0
	utmFalseNorthS  = 10000000.0
)

type projKind int

const (
	projLongLat projKind = iota
	projUTM
)

// Projection converts between geographic degrees and projected meters.
// The longlat kind is an identity passthrough; the utm kind implements the
// transverse Mercator projection via the Krüger flattening series.
type Projection struct {
	kind  projKind
	zone  int
	south bool
	ell   Ellipsoid

	// derived series terms
	lon0  float64
	e     float64
	aBar  float64
	alpha [6]float64
	beta  [6]float64
}

// Geographic returns the identity longitude/latitude projection.
func Geographic() *Projection {
	return &Projection{kind: projLongLat, ell: WGS84}
}

func newUTM(zone int, south bool, ell Ellipsoid) *Projection {
	p := &Projection{kind: projUTM, zone: zone, south: south, ell: ell}
	p.lon0 = float64(zone-1)*6 - 180 + 3
	p.lon0 *= math.Pi / 180

	f := ell.F
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	p.e = math.Sqrt(f * (2 - f))
	p.aBar = ell.A / (1 + n) * (1 + n2/4 + n4/64 + n6/256)

	p.alpha = [6]float64{
		n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
		13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
		61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
		49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
		34729*n5/80640 - 3418889*n6/1995840,
		212378941 * n6 / 319334400,
	}
	p.beta = [6]float64{
		n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
		n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
		17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
		4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
		4583*n5/161280 - 108847*n6/3991680,
		20648693 * n6 / 638668800,
	}

	return p
}

// Forward projects a geographic point (lon, lat in degrees) to projected
// coordinates (easting, northing in meters). For longlat it is the identity.
func (p *Projection) Forward(pt orb.Point) orb.Point {
	if p.kind == projLongLat {
		return pt
	}

	phi := pt[1] * math.Pi / 180
	dl := pt[0]*math.Pi/180 - p.lon0

	s := math.Sin(phi)
	t := math.Sinh(math.Atanh(s) - p.e*math.Atanh(p.e*s))
	xiP := math.Atan2(t, math.Cos(dl))
	etaP := math.Asinh(math.Sin(dl) / math.Hypot(t, math.Cos(dl)))

	xi, eta := xiP, etaP
	for j := 1; j <= 6; j++ {
		k := 2 * float64(j)
		xi += p.alpha[j-1] * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += p.alpha[j-1] * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	x := utmScale*p.aBar*eta + utmFalseEasting
	y := utmScale * p.aBar * xi
	if p.south {
		y += utmFalseNorthS
	}
	return orb.Point{x, y}
}

// Inverse converts projected coordinates back to geographic degrees.
func (p *Projection) Inverse(pt orb.Point) orb.Point {
	if p.kind == projLongLat {
		return pt
	}

	y := pt[1]
	if p.south {
		y -= utmFalseNorthS
	}
	xi := y / (utmScale * p.aBar)
	eta := (pt[0] - utmFalseEasting) / (utmScale * p.aBar)

	xiP, etaP := xi, eta
	for j := 1; j <= 6; j++ {
		k := 2 * float64(j)
		xiP -= p.beta[j-1] * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= p.beta[j-1] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))

	e2 := p.e * p.e
	e4 := e2 * e2
	e6 := e4 * e2
	e8 := e6 * e2
	phi := chi +
		(e2/2+5*e4/24+e6/12+13*e8/360)*math.Sin(2*chi) +
		(7*e4/48+29*e6/240+811*e8/11520)*math.Sin(4*chi) +
		(7*e6/120+81*e8/1120)*math.Sin(6*chi) +
		(4279*e8/161280)*math.Sin(8*chi)

	lam := p.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	return orb.Point{lam * 180 / math.Pi, phi * 180 / math.Pi}
}

// ParseProj4 builds a Projection from the proj4 definition subset emitted and
// consumed by this system: +proj=longlat|utm, +zone=, +south,
// +datum=WGS84|NAD83, +ellps=WGS84|GRS80.
func ParseProj4(def string) (*Projection, error) {
	kind := projKind(-1)
	zone := 0
	south := false
	ell := WGS84
	ellSet := false

	for _, tok := range strings.Fields(def) {
		tok = strings.TrimPrefix(tok, "+")
		key, val, _ := strings.Cut(tok, "=")
		switch key {
		case "proj":
			switch val {
			case "longlat", "latlong":
				kind = projLongLat
			case "utm":
				kind = projUTM
			default:
				return nil, fmt.Errorf("unsupported projection %q in %q", val, def)
			}
		case "zone":
			z, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid utm zone %q: %w", val, err)
			}
			zone = z
		case "south":
			south = true
		case "datum":
			switch val {
			case "WGS84":
				if !ellSet {
					ell = WGS84
				}
			case "NAD83":
				if !ellSet {
					ell = GRS80
				}
			default:
				return nil, fmt.Errorf("unsupported datum %q in %q", val, def)
			}
		case "ellps":
			switch val {
			case "WGS84":
				ell = WGS84
			case "GRS80":
				ell = GRS80
			default:
				return nil, fmt.Errorf("unsupported ellipsoid %q in %q", val, def)
			}
			ellSet = true
		case "units", "no_defs", "towgs84", "wktext":
			// accepted, no effect on the math
		}
	}

	switch kind {
	case projLongLat:
		return &Projection{kind: projLongLat, ell: ell}, nil
	case projUTM:
		if zone < 1 || zone > 60 {
			return nil, fmt.Errorf("utm zone %d out of range in %q", zone, def)
		}
		return newUTM(zone, south, ell), nil
	default:
		return nil, fmt.Errorf("missing +proj in %q", def)
	}
}

// Reproject transforms a geometry vertex-wise from one projection to another.
func Reproject(geom orb.Geometry, from, to *Projection) (orb.Geometry, error) {
	xf := func(pt orb.Point) orb.Point {
		return to.Forward(from.Inverse(pt))
	}

	switch g := geom.(type) {
	case orb.Point:
		return xf(g), nil
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(g))
		for i, pt := range g {
			out[i] = xf(pt)
		}
		return out, nil
	case orb.LineString:
		out := make(orb.LineString, len(g))
		for i, pt := range g {
			out[i] = xf(pt)
		}
		return out, nil
	case orb.Ring:
		out := make(orb.Ring, len(g))
		for i, pt := range g {
			out[i] = xf(pt)
		}
		return out, nil
	case orb.Polygon:
		out := make(orb.Polygon, len(g))
		for i, ring := range g {
			r := make(orb.Ring, len(ring))
			for j, pt := range ring {
				r[j] = xf(pt)
			}
			out[i] = r
		}
		return out, nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(g))
		for i, poly := range g {
			rg, err := Reproject(poly, from, to)
			if err != nil {
				return nil, err
			}
			out[i] = rg.(orb.Polygon)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot reproject geometry type %s", geom.GeoJSONType())
	}
}
