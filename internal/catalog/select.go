package catalog

import (
	"time"

	gostac "github.com/planetlabs/go-stac"
)

// Selection is the chosen asset reference plus the metadata the pipeline
// carries forward. It exists only for the duration of one feature's run.
type Selection struct {
	ItemID      string
	Datetime    time.Time
	HasDatetime bool
	Href        string
	MediaType   string
	GSD         *float64
}

// SelectLatest picks the item with the most recent acquisition timestamp and
// returns its asset under assetKey.
//
// Items with a missing or unparseable timestamp sort as the minimum possible
// time and are never preferred over any timestamped item; ties keep the first
// item encountered. An empty item list, or a freshest item that lacks the
// required asset, is ErrNoCoverage: coverage is absent, nothing failed.
func SelectLatest(items []*gostac.Item, assetKey string) (Selection, error) {
	if len(items) == 0 {
		return Selection{}, ErrNoCoverage
	}

	best := items[0]
	bestTime, bestHas := ItemDatetime(best)
	for _, item := range items[1:] {
		t, has := ItemDatetime(item)
		if !has {
			continue
		}
		if !bestHas || t.After(bestTime) {
			best, bestTime, bestHas = item, t, true
		}
	}

	asset, ok := best.Assets[assetKey]
	if !ok || asset == nil || asset.Href == "" {
		return Selection{}, ErrNoCoverage
	}

	return Selection{
		ItemID:      best.Id,
		Datetime:    bestTime,
		HasDatetime: bestHas,
		Href:        asset.Href,
		MediaType:   asset.Type,
		GSD:         ItemGSD(best),
	}, nil
}
