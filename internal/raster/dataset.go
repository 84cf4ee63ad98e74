// Package raster provides access to cataloged raster scenes stored as tiled,
// snappy-compressed band pyramids, plus the window math and pixel extraction
// that turn a buffered footprint into a normalized RGB crop.
package raster

import (
	"context"
	"fmt"
	"math"
)

// Resampling selects the interpolation used when a read is scaled away from
// the source grid.
type Resampling string

const (
	// ResampleBilinear interpolates between the four nearest source samples.
	ResampleBilinear Resampling = "bilinear"
	// ResampleNearest picks the closest source sample: blockier output,
	// lower smoothing cost.
	ResampleNearest Resampling = "nearest"
)

// ParseResampling validates a resampling mode name.
func ParseResampling(s string) (Resampling, error) {
	switch Resampling(s) {
	case ResampleBilinear, ResampleNearest:
		return Resampling(s), nil
	case "":
		return ResampleBilinear, nil
	default:
		return "", fmt.Errorf("unknown resampling mode %q (must be bilinear or nearest)", s)
	}
}

// ReadOptions controls a single windowed read.
type ReadOptions struct {
	// Resampling applies when OutWidth/OutHeight differ from the window.
	Resampling Resampling
	// Boundless permits the window to overhang the raster's physical
	// extent; overhanging pixels read as Fill. When false, any overhang is
	// an error.
	Boundless bool
	// Fill is the value assigned to pixels outside the raster extent (and
	// to missing tiles in sparse stores).
	Fill float64
	// OutWidth and OutHeight request a resampled output size. Zero means
	// the window's native size.
	OutWidth  int
	OutHeight int
}

// Meta describes a raster resource's grid, georeferencing, and sample type.
type Meta struct {
	XSize        int        `json:"x_size"`
	YSize        int        `json:"y_size"`
	GeoTransform [6]float64 `json:"geotransform"`
	Proj4        string     `json:"proj4"`
	DType        string     `json:"dtype"`
	NoData       float64    `json:"no_data"`
	BandCount    int        `json:"band_count"`
	TileSize     int        `json:"tile_size"`
	GSD          float64    `json:"gsd,omitempty"`
}

// Grid returns the raster's own pixel window.
func (m Meta) Grid() Window {
	return Window{Col: 0, Row: 0, Width: m.XSize, Height: m.YSize}
}

func (m Meta) validate() error {
	if m.XSize <= 0 || m.YSize <= 0 {
		return fmt.Errorf("invalid raster size %dx%d", m.XSize, m.YSize)
	}
	if m.TileSize <= 0 {
		return fmt.Errorf("invalid tile size %d", m.TileSize)
	}
	if m.BandCount <= 0 {
		return fmt.Errorf("invalid band count %d", m.BandCount)
	}
	switch m.DType {
	case "uint8", "int16", "float32":
	default:
		return fmt.Errorf("unsupported sample type %q", m.DType)
	}
	return nil
}

// Cube holds the result of a windowed read: band-major float64 planes.
type Cube struct {
	Width  int
	Height int
	Bands  [][]float64
}

// Empty reports whether the cube has no pixels.
func (c *Cube) Empty() bool {
	return c == nil || c.Width <= 0 || c.Height <= 0 || len(c.Bands) == 0
}

// Resample scales every band plane to the requested size.
func (c *Cube) Resample(outW, outH int, mode Resampling) *Cube {
	if outW == c.Width && outH == c.Height {
		return c
	}
	out := &Cube{Width: outW, Height: outH, Bands: make([][]float64, len(c.Bands))}
	for i, plane := range c.Bands {
		out.Bands[i] = resamplePlane(plane, c.Width, c.Height, outW, outH, mode)
	}
	return out
}

func resamplePlane(src []float64, w, h, outW, outH int, mode Resampling) []float64 {
	dst := make([]float64, outW*outH)
	sx := float64(w) / float64(outW)
	sy := float64(h) / float64(outH)

	for y := 0; y < outH; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		for x := 0; x < outW; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			if mode == ResampleNearest {
				ix := clampInt(int(math.Round(fx)), 0, w-1)
				iy := clampInt(int(math.Round(fy)), 0, h-1)
				dst[y*outW+x] = src[iy*w+ix]
				continue
			}
			x0 := clampInt(int(math.Floor(fx)), 0, w-1)
			y0 := clampInt(int(math.Floor(fy)), 0, h-1)
			x1 := clampInt(x0+1, 0, w-1)
			y1 := clampInt(y0+1, 0, h-1)
			tx := clampFloat(fx-float64(x0), 0, 1)
			ty := clampFloat(fy-float64(y0), 0, 1)

			top := src[y0*w+x0]*(1-tx) + src[y0*w+x1]*tx
			bot := src[y1*w+x0]*(1-tx) + src[y1*w+x1]*tx
			dst[y*outW+x] = top*(1-ty) + bot*ty
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dataset is an opened raster resource.
type Dataset interface {
	// Meta describes the raster grid and georeferencing.
	Meta() Meta
	// Read returns the requested 1-based bands within the window as
	// band-major planes.
	Read(ctx context.Context, win Window, bands []int, opts ReadOptions) (*Cube, error)
	// Close releases any resources held by the dataset.
	Close() error
}
