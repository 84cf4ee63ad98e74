// Package input reads GeoJSON feature collections into pipeline features.
package input

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/rkm/stac-chipper/internal/pipeline"
)

// Load decodes a GeoJSON FeatureCollection from r. Features keep their input
// order. A feature without any usable identifier gets a positional one so that
// downstream outcomes always name the record they belong to.
func Load(r io.Reader) ([]pipeline.Feature, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	features := make([]pipeline.Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		features = append(features, pipeline.Feature{
			ID:       featureID(f, i),
			Geometry: f.Geometry,
		})
	}
	return features, nil
}

// LoadFile reads a FeatureCollection from disk.
func LoadFile(path string) ([]pipeline.Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// featureID resolves the identifier for one feature. Properties win over the
// top-level id so that collections carrying their own stable keys keep them.
func featureID(f *geojson.Feature, index int) string {
	if id := stringProperty(f, "full_id"); id != "" {
		return id
	}
	if id := stringProperty(f, "id"); id != "" {
		return id
	}
	switch v := f.ID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return formatNumericID(v)
	}
	return fmt.Sprintf("noid_index_%d", index)
}

func stringProperty(f *geojson.Feature, key string) string {
	v, ok := f.Properties[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return formatNumericID(s)
	default:
		return ""
	}
}

func formatNumericID(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%v", v)
}
