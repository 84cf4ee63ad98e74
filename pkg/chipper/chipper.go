// Package chipper provides a public API for embedding the chip extraction service.
package chipper

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rkm/stac-chipper/internal/api"
	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/pipeline"
	"github.com/rkm/stac-chipper/internal/raster"
	"github.com/rkm/stac-chipper/internal/sink"
)

// Options configures the chip service.
type Options struct {
	// CatalogURL is the STAC API root (required).
	// Example: "https://planetarycomputer.microsoft.com/api/stac/v1"
	CatalogURL string

	// Collection is the catalog collection to search.
	// Default: "naip"
	Collection string

	// AssetKey is the item asset holding the imagery.
	// Default: "image"
	AssetKey string

	// SearchLimit caps how many items one search may return.
	// Default: 20
	SearchLimit int

	// BufferMeters is the metric buffer applied to every footprint.
	// Default: 100
	BufferMeters float64

	// Resampling is the raster read strategy, "bilinear" or "nearest".
	// Default: "bilinear"
	Resampling string

	// StrictBounds rejects read windows overhanging the scene edge instead
	// of filling the overhang with nodata.
	// Default: false (boundless reads)
	StrictBounds bool

	// Timeout is the upstream request timeout for catalog and raster I/O.
	// Default: 30s
	Timeout time.Duration

	// OutputDir, when set, persists every extracted crop as a PNG.
	// Default: "" (no persistence; crops are only returned over HTTP)
	OutputDir string

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Service is a chip extraction service that can be embedded in another application.
type Service struct {
	router chi.Router
	pipe   *pipeline.Pipeline
	client *catalog.Client
	logger *slog.Logger
}

// New creates a new chip service with the given options.
func New(opts Options) (*Service, error) {
	// Apply defaults
	if opts.Collection == "" {
		opts.Collection = "naip"
	}
	if opts.AssetKey == "" {
		opts.AssetKey = "image"
	}
	if opts.SearchLimit == 0 {
		opts.SearchLimit = 20
	}
	if opts.BufferMeters == 0 {
		opts.BufferMeters = 100
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	resampling, err := raster.ParseResampling(opts.Resampling)
	if err != nil {
		return nil, err
	}

	client := catalog.NewClient(opts.CatalogURL, opts.Timeout).WithLogger(opts.Logger)
	opener := raster.NewOpener(raster.NewSchemeFetcher(opts.Timeout)).WithLogger(opts.Logger)

	var crops pipeline.Sink
	if opts.OutputDir != "" {
		crops = sink.NewPNGSink(opts.OutputDir).WithLogger(opts.Logger)
	}

	pipe := pipeline.New(pipeline.Options{
		Collection:   opts.Collection,
		AssetKey:     opts.AssetKey,
		BufferMeters: opts.BufferMeters,
		SearchLimit:  opts.SearchLimit,
		Resampling:   resampling,
		Boundless:    !opts.StrictBounds,
		Searcher:     client,
		Opener:       opener,
		Sink:         crops,
		Logger:       opts.Logger,
	})

	handlers := api.NewHandlers(pipe, opts.Logger)
	router := api.NewRouter(handlers, opts.Logger)

	return &Service{
		router: router,
		pipe:   pipe,
		client: client,
		logger: opts.Logger,
	}, nil
}

// Connect verifies the catalog is reachable. Call it once at startup; a
// failure here means no feature can be processed.
func (s *Service) Connect(ctx context.Context) error {
	return s.client.Connect(ctx)
}

// Router returns the chi router with all service routes configured.
// Mount it in an existing chi router or use it directly as an http.Handler.
func (s *Service) Router() chi.Router {
	return s.router
}

// Pipeline returns the underlying extraction pipeline for direct use
// without HTTP.
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipe
}

// Close releases the service's idle upstream connections.
func (s *Service) Close() {
	s.client.Close()
}
