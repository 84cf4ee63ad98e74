package raster

import "errors"

// ErrNoCoverage signals that the reprojected footprint does not intersect the
// raster's extent at all. Catalog metadata claimed coverage the pixels do not
// deliver; this is a legitimate negative result, not an extraction failure.
var ErrNoCoverage = errors.New("footprint does not intersect raster extent")

// ExtractionError wraps I/O, decode, and window failures during a raster read.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extract " + e.Op
	}
	return "extract " + e.Op + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErrf(op string, err error) *ExtractionError {
	return &ExtractionError{Op: op, Err: err}
}
