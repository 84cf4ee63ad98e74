package raster

import (
	"context"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/rkm/stac-chipper/internal/geo"
	"github.com/rkm/stac-chipper/pkg/chip"
)

// ExtractOptions configures crop extraction.
type ExtractOptions struct {
	// Resampling strategy for the band read. Defaults to bilinear.
	Resampling Resampling
	// Boundless permits the window to overhang the raster edge, filling
	// the overhang with the raster's nodata value instead of failing.
	Boundless bool
}

// Extract reads the minimal pixel window covering the buffered geographic
// footprint and normalizes it into an 8-bit RGB crop.
//
// The footprint is reprojected into the raster's native CRS and its envelope
// inverted through the geotransform. A footprint wholly outside the raster
// extent is ErrNoCoverage; window, read, and band-layout failures are an
// *ExtractionError. The crop's dimensions always equal the window's.
func Extract(ctx context.Context, ds Dataset, footprint orb.Geometry, opts ExtractOptions) (*chip.Image, error) {
	meta := ds.Meta()

	native, err := geo.ParseProj4(meta.Proj4)
	if err != nil {
		return nil, extractionErrf("reproject", err)
	}
	projected, err := geo.Reproject(footprint, geo.Geographic(), native)
	if err != nil {
		return nil, extractionErrf("reproject", err)
	}

	win, err := WindowFromEnvelope(projected.Bound(), meta.GeoTransform)
	if err != nil {
		return nil, err
	}
	if win.Empty() {
		return nil, extractionErrf("window", fmt.Errorf("degenerate window %+v", win))
	}
	if win.Intersect(meta.Grid()).Empty() {
		return nil, ErrNoCoverage
	}

	if meta.BandCount < 3 {
		return nil, extractionErrf("read", fmt.Errorf("raster has %d bands, need 3", meta.BandCount))
	}

	resampling := opts.Resampling
	if resampling == "" {
		resampling = ResampleBilinear
	}

	cube, err := ds.Read(ctx, win, []int{1, 2, 3}, ReadOptions{
		Resampling: resampling,
		Boundless:  opts.Boundless,
		Fill:       meta.NoData,
	})
	if err != nil {
		return nil, err
	}
	if cube.Empty() || len(cube.Bands) < 3 {
		return nil, extractionErrf("read", fmt.Errorf("empty read result for window %+v", win))
	}

	return interleave(cube), nil
}

// interleave converts band-major float64 planes into a row-major,
// band-interleaved 8-bit crop, clamping samples into [0, 255].
func interleave(cube *Cube) *chip.Image {
	img := chip.New(cube.Width, cube.Height)
	for y := 0; y < cube.Height; y++ {
		for x := 0; x < cube.Width; x++ {
			i := y*cube.Width + x
			img.SetRGB(x, y,
				clampU8(cube.Bands[0][i]),
				clampU8(cube.Bands[1][i]),
				clampU8(cube.Bands[2][i]),
			)
		}
	}
	return img
}

func clampU8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
