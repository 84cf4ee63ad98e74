// Package pipeline sequences the per-feature extraction stages
// (Validated -> GeometryPrepared -> AssetFound -> CropExtracted -> Saved)
// and maps every non-success to an explicit terminal outcome.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"
	gostac "github.com/planetlabs/go-stac"

	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/geo"
	"github.com/rkm/stac-chipper/internal/raster"
	"github.com/rkm/stac-chipper/pkg/chip"
)

// Feature is one input record: a stable identifier and a geographic
// footprint in longitude/latitude order.
type Feature struct {
	ID       string
	Geometry orb.Geometry
}

// Searcher queries a catalog for items intersecting a geometry.
type Searcher interface {
	Search(ctx context.Context, collection string, intersects orb.Geometry, limit int) ([]*gostac.Item, error)
}

// Opener opens a raster resource by asset reference.
type Opener interface {
	Open(ctx context.Context, href string) (raster.Dataset, error)
}

// Sink persists one crop and returns the artifact path.
type Sink interface {
	Save(ctx context.Context, featureID string, img *chip.Image) (string, error)
}

// Options configures a Pipeline. The configuration is explicit per instance:
// two pipelines with different options can run side by side.
type Options struct {
	// Collection is the catalog collection to search.
	Collection string
	// AssetKey is the required band asset on the selected item.
	// Default: "image"
	AssetKey string
	// BufferMeters is the metric footprint buffer distance.
	// Default: 100
	BufferMeters float64
	// SearchLimit caps the catalog result sequence.
	// Default: 20
	SearchLimit int
	// Resampling strategy for the raster read. Default: bilinear.
	Resampling raster.Resampling
	// Boundless permits windows overhanging the raster edge.
	Boundless bool

	Searcher Searcher
	Opener   Opener
	// Sink is optional; without one, Process stops after extraction.
	Sink   Sink
	Logger *slog.Logger
}

// Pipeline runs the extraction stages for single features.
type Pipeline struct {
	opts Options
}

// New creates a pipeline with defaults applied.
func New(opts Options) *Pipeline {
	if opts.AssetKey == "" {
		opts.AssetKey = "image"
	}
	if opts.BufferMeters == 0 {
		opts.BufferMeters = 100
	}
	if opts.SearchLimit == 0 {
		opts.SearchLimit = 20
	}
	if opts.Resampling == "" {
		opts.Resampling = raster.ResampleBilinear
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts}
}

// ExtractChip runs stages 1-4 for one feature and returns the crop. Stages
// are strictly sequential: each consumes only the previous stage's output and
// the first non-success short-circuits the rest. The returned image is nil
// unless the outcome status is StatusSuccess.
func (p *Pipeline) ExtractChip(ctx context.Context, f Feature) (*chip.Image, Outcome) {
	out := Outcome{FeatureID: f.ID}
	log := p.opts.Logger.With(slog.String("feature_id", f.ID))

	// Validated
	if err := geo.Validate(f.Geometry); err != nil {
		return nil, p.settle(ctx, log, out, err)
	}

	// GeometryPrepared
	footprint, err := geo.BufferGeographic(f.Geometry, p.opts.BufferMeters)
	if err != nil {
		return nil, p.settle(ctx, log, out, err)
	}

	// AssetFound
	items, err := p.opts.Searcher.Search(ctx, p.opts.Collection, footprint, p.opts.SearchLimit)
	if err != nil {
		return nil, p.settle(ctx, log, out, err)
	}
	sel, err := catalog.SelectLatest(items, p.opts.AssetKey)
	if err != nil {
		return nil, p.settle(ctx, log, out, err)
	}
	out.ItemID = sel.ItemID
	out.GSD = sel.GSD

	// CropExtracted
	ds, err := p.opts.Opener.Open(ctx, sel.Href)
	if err != nil {
		return nil, p.settle(ctx, log, out, err)
	}
	defer ds.Close()

	img, err := raster.Extract(ctx, ds, footprint, raster.ExtractOptions{
		Resampling: p.opts.Resampling,
		Boundless:  p.opts.Boundless,
	})
	if err != nil {
		return nil, p.settle(ctx, log, out, err)
	}

	out.Status = StatusSuccess
	out.Width = img.W
	out.Height = img.H
	log.DebugContext(ctx, "crop extracted",
		slog.String("item_id", sel.ItemID),
		slog.Int("width", img.W),
		slog.Int("height", img.H),
	)
	return img, out
}

// Process runs the full per-feature state machine including the save stage.
func (p *Pipeline) Process(ctx context.Context, f Feature) Outcome {
	img, out := p.ExtractChip(ctx, f)
	if out.Status != StatusSuccess {
		return out
	}
	if p.opts.Sink == nil {
		return out
	}

	// Saved
	path, err := p.opts.Sink.Save(ctx, f.ID, img)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		p.opts.Logger.ErrorContext(ctx, "failed to save crop",
			slog.String("feature_id", f.ID),
			slog.String("error", err.Error()),
		)
		return out
	}
	out.Path = path
	return out
}

func (p *Pipeline) settle(ctx context.Context, log *slog.Logger, out Outcome, err error) Outcome {
	out.Status = classify(err)
	out.Err = err
	switch out.Status {
	case StatusFailed:
		log.ErrorContext(ctx, "feature processing failed", slog.String("error", err.Error()))
	default:
		log.DebugContext(ctx, "feature settled without crop",
			slog.String("status", out.Status.String()),
			slog.String("reason", err.Error()),
		)
	}
	return out
}
