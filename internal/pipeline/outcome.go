package pipeline

import (
	"errors"

	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/geo"
	"github.com/rkm/stac-chipper/internal/raster"
)

// Status is the terminal bucket for one feature's run. Every feature ends in
// exactly one; the status is produced directly by the stage that determined
// the result, never inferred afterwards.
type Status int

const (
	// StatusSuccess: a crop was extracted (and saved, when a sink is wired).
	StatusSuccess Status = iota
	// StatusRejected: the input feature itself is defective (bad geometry
	// or out-of-range coordinates). Never retried.
	StatusRejected
	// StatusNoCoverage: the catalog or the raster extent has no usable
	// imagery for the footprint. A legitimate negative, not an error.
	StatusNoCoverage
	// StatusFailed: an operational fault (catalog transport, raster I/O,
	// sink write, timeout).
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRejected:
		return "rejected"
	case StatusNoCoverage:
		return "no_coverage"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-feature result record.
type Outcome struct {
	FeatureID string
	Status    Status
	Err       error

	// set on success
	Path   string
	ItemID string
	GSD    *float64
	Width  int
	Height int
}

// Summary aggregates outcome counts for a run.
type Summary struct {
	Processed  int
	Succeeded  int
	Rejected   int
	NoCoverage int
	Failed     int
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	s.Processed++
	switch o.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusRejected:
		s.Rejected++
	case StatusNoCoverage:
		s.NoCoverage++
	default:
		s.Failed++
	}
}

// classify maps a stage error to its terminal bucket.
func classify(err error) Status {
	var coordErr *geo.CoordinateError
	var geomErr *geo.GeometryError
	if errors.As(err, &coordErr) || errors.As(err, &geomErr) {
		return StatusRejected
	}
	if errors.Is(err, catalog.ErrNoCoverage) || errors.Is(err, raster.ErrNoCoverage) {
		return StatusNoCoverage
	}
	return StatusFailed
}
