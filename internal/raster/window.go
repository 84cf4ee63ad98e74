package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Window is an integer pixel rectangle within a raster grid.
type Window struct {
	Col    int
	Row    int
	Width  int
	Height int
}

// Empty reports whether the window has no area.
func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// Intersect clips the window against another, returning their overlap.
// A non-overlapping pair yields an empty window.
func (w Window) Intersect(o Window) Window {
	col := max(w.Col, o.Col)
	row := max(w.Row, o.Row)
	right := min(w.Col+w.Width, o.Col+o.Width)
	bottom := min(w.Row+w.Height, o.Row+o.Height)
	return Window{Col: col, Row: row, Width: right - col, Height: bottom - row}
}

// Contains reports whether o lies fully inside w.
func (w Window) Contains(o Window) bool {
	return o.Col >= w.Col && o.Row >= w.Row &&
		o.Col+o.Width <= w.Col+w.Width && o.Row+o.Height <= w.Row+w.Height
}

// WindowFromEnvelope computes the minimal integer pixel window covering the
// given projected envelope under an affine geotransform
// [originX, pixelW, 0, originY, 0, pixelH]. The window is not clipped to the
// raster grid; rotated geotransforms are not supported.
func WindowFromEnvelope(env orb.Bound, gt [6]float64) (Window, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Window{}, extractionErrf("window", fmt.Errorf("rotated geotransform not supported"))
	}
	if gt[1] == 0 || gt[5] == 0 {
		return Window{}, extractionErrf("window", fmt.Errorf("degenerate geotransform: zero pixel size"))
	}

	cols := [2]float64{
		(env.Min[0] - gt[0]) / gt[1],
		(env.Max[0] - gt[0]) / gt[1],
	}
	rows := [2]float64{
		(env.Min[1] - gt[3]) / gt[5],
		(env.Max[1] - gt[3]) / gt[5],
	}

	c0 := int(math.Floor(math.Min(cols[0], cols[1])))
	c1 := int(math.Ceil(math.Max(cols[0], cols[1])))
	r0 := int(math.Floor(math.Min(rows[0], rows[1])))
	r1 := int(math.Ceil(math.Max(rows[0], rows[1])))

	return Window{Col: c0, Row: r0, Width: c1 - c0, Height: r1 - r0}, nil
}
