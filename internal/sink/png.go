// Package sink persists extracted crops as image files.
package sink

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rkm/stac-chipper/pkg/chip"
)

// PNGSink writes one PNG per feature under a flat output directory.
type PNGSink struct {
	dir    string
	logger *slog.Logger
}

// NewPNGSink creates a sink rooted at dir. The directory is created on the
// first save.
func NewPNGSink(dir string) *PNGSink {
	return &PNGSink{dir: dir, logger: slog.Default()}
}

// WithLogger sets a custom logger for the sink.
func (s *PNGSink) WithLogger(logger *slog.Logger) *PNGSink {
	s.logger = logger
	return s
}

// Save encodes the crop to {dir}/{featureID}.png. The file is written to a
// temporary name first and renamed into place, so a concurrent reader never
// sees a partial PNG.
func (s *PNGSink) Save(ctx context.Context, featureID string, img *chip.Image) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, featureID+".png")
	tmp, err := os.CreateTemp(s.dir, "."+featureID+"-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := png.Encode(tmp, img.NRGBA()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to encode png for %s: %w", featureID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move crop into place: %w", err)
	}

	s.logger.DebugContext(ctx, "crop saved",
		slog.String("feature_id", featureID),
		slog.String("path", path),
	)
	return path, nil
}
