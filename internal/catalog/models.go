// Package catalog provides the STAC search client and asset selection logic,
// wrapping planetlabs/go-stac for the item and asset model.
package catalog

import (
	"encoding/json"
	"strings"
	"time"

	gostac "github.com/planetlabs/go-stac"
)

// Re-export the go-stac core types for convenience.
type (
	Item  = gostac.Item
	Asset = gostac.Asset
)

// ItemCollection is the GeoJSON FeatureCollection shape returned by a STAC
// search endpoint.
type ItemCollection struct {
	Type     string         `json:"type"`
	Features []*gostac.Item `json:"features"`
}

// datetime formats observed across STAC catalogs; RFC3339 is the norm but
// sub-second and zone-less variants occur in the wild.
var itemTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000000",
}

// ItemDatetime parses the item's acquisition timestamp from
// properties.datetime. The second return is false when the property is
// missing, null, or unparseable.
func ItemDatetime(item *gostac.Item) (time.Time, bool) {
	if item == nil || item.Properties == nil {
		return time.Time{}, false
	}
	raw, ok := item.Properties["datetime"]
	if !ok || raw == nil {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, format := range itemTimeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ItemGSD extracts the optional ground sample distance (properties.gsd) in
// meters per pixel. Absence is not an error; nil is returned.
func ItemGSD(item *gostac.Item) *float64 {
	if item == nil || item.Properties == nil {
		return nil
	}
	switch v := item.Properties["gsd"].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	}
	return nil
}
