// Package integration exercises the full extraction stack: a mock STAC
// catalog, a file-backed tile store and the PNG sink, wired exactly as the
// batch command wires them.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/paulmach/orb"

	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/geo"
	"github.com/rkm/stac-chipper/internal/pipeline"
	"github.com/rkm/stac-chipper/internal/raster"
	"github.com/rkm/stac-chipper/internal/sink"
)

const (
	storeSize = 64
	tileSize  = 32
)

// writeStore builds a 3-band uint8 tile store centered on the geographic
// point and returns its directory.
func writeStore(t *testing.T, lon, lat float64) string {
	t.Helper()

	crs, err := geo.ResolveUTM(lat, lon)
	if err != nil {
		t.Fatalf("ResolveUTM failed: %v", err)
	}
	center := crs.Projection().Forward(orb.Point{lon, lat})

	meta := map[string]any{
		"x_size":       storeSize,
		"y_size":       storeSize,
		"geotransform": []float64{center[0] - storeSize/2, 1, 0, center[1] + storeSize/2, 0, -1},
		"proj4":        crs.Proj4(),
		"dtype":        "uint8",
		"no_data":      0.0,
		"band_count":   3,
		"tile_size":    tileSize,
		"gsd":          1.0,
	}

	dir := t.TempDir()
	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	tiles := storeSize / tileSize
	for band := 1; band <= 3; band++ {
		bandDir := filepath.Join(dir, "bands", fmt.Sprintf("%d", band))
		if err := os.MkdirAll(bandDir, 0o755); err != nil {
			t.Fatal(err)
		}
		for ty := 0; ty < tiles; ty++ {
			for tx := 0; tx < tiles; tx++ {
				pix := make([]byte, tileSize*tileSize)
				for y := 0; y < tileSize; y++ {
					for x := 0; x < tileSize; x++ {
						pix[y*tileSize+x] = uint8(band*10 + (tx*tileSize+x+ty*tileSize+y)%100)
					}
				}
				path := filepath.Join(bandDir, fmt.Sprintf("%d_%d.snp", tx, ty))
				if err := os.WriteFile(path, snappy.Encode(nil, pix), 0o644); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	return dir
}

// mockCatalog serves a STAC landing page and a search endpoint whose only
// item points at the file-backed store.
func mockCatalog(t *testing.T, storeDir string, searchCalls *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		searchCalls.Add(1)

		var req struct {
			Collections []string        `json:"collections"`
			Intersects  json.RawMessage `json:"intersects"`
			Limit       int             `json:"limit"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Collections) != 1 || req.Collections[0] != "naip" {
			http.Error(w, "unexpected collections", http.StatusBadRequest)
			return
		}
		if len(req.Intersects) == 0 {
			http.Error(w, "missing intersects", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/geo+json")
		fmt.Fprintf(w, `{
		  "type": "FeatureCollection",
		  "features": [{
		    "type": "Feature",
		    "stac_version": "1.0.0",
		    "id": "scene-1",
		    "properties": {"datetime": "2023-06-01T00:00:00Z", "gsd": 1.0},
		    "geometry": null,
		    "assets": {
		      "image": {"href": "file://%s", "type": "application/octet-stream"}
		    },
		    "links": []
		  }]
		}`, storeDir)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
		  "type": "Catalog",
		  "stac_version": "1.0.0",
		  "id": "test-catalog",
		  "description": "integration test catalog",
		  "links": []
		}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func buildStack(t *testing.T, catalogURL, outputDir string) (*pipeline.Pipeline, *catalog.Client) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client := catalog.NewClient(catalogURL, 10*time.Second).WithLogger(logger)
	opener := raster.NewOpener(raster.NewSchemeFetcher(10 * time.Second)).WithLogger(logger)

	pipe := pipeline.New(pipeline.Options{
		Collection:   "naip",
		AssetKey:     "image",
		BufferMeters: 10,
		Boundless:    true,
		Searcher:     client,
		Opener:       opener,
		Sink:         sink.NewPNGSink(outputDir).WithLogger(logger),
		Logger:       logger,
	})
	return pipe, client
}

func TestEndToEnd_PointToPNG(t *testing.T) {
	store := writeStore(t, -100, 40)
	var searchCalls atomic.Int64
	srv := mockCatalog(t, store, &searchCalls)
	outDir := filepath.Join(t.TempDir(), "chips")

	pipe, client := buildStack(t, srv.URL, outDir)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	runner := pipeline.NewRunner(pipe, 2, time.Minute)
	outcomes, summary := runner.Run(ctx, []pipeline.Feature{
		{ID: "w100", Geometry: orb.Point{-100, 40}},
	})

	if summary.Succeeded != 1 {
		t.Fatalf("Expected one success, got %+v (err: %v)", summary, outcomes[0].Err)
	}
	out := outcomes[0]
	if out.ItemID != "scene-1" {
		t.Errorf("Expected item scene-1, got %q", out.ItemID)
	}
	if out.Path != filepath.Join(outDir, "w100.png") {
		t.Errorf("unexpected output path %q", out.Path)
	}

	f, err := os.Open(out.Path)
	if err != nil {
		t.Fatalf("Expected PNG on disk: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Expected a decodable PNG: %v", err)
	}
	if img.Bounds().Dx() != out.Width || img.Bounds().Dy() != out.Height {
		t.Errorf("PNG is %dx%d, outcome says %dx%d",
			img.Bounds().Dx(), img.Bounds().Dy(), out.Width, out.Height)
	}
	if searchCalls.Load() != 1 {
		t.Errorf("Expected one search call, got %d", searchCalls.Load())
	}
}

func TestEndToEnd_OutsideCoverage(t *testing.T) {
	store := writeStore(t, -100, 40)
	var searchCalls atomic.Int64
	srv := mockCatalog(t, store, &searchCalls)

	pipe, client := buildStack(t, srv.URL, t.TempDir())

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// catalog still returns the scene; the raster extent check settles it
	out := pipe.Process(ctx, pipeline.Feature{ID: "far", Geometry: orb.Point{-99.5, 40}})
	if out.Status != pipeline.StatusNoCoverage {
		t.Fatalf("Expected no_coverage, got %s (err: %v)", out.Status, out.Err)
	}
}

func TestEndToEnd_RejectedSkipsCatalog(t *testing.T) {
	store := writeStore(t, -100, 40)
	var searchCalls atomic.Int64
	srv := mockCatalog(t, store, &searchCalls)

	pipe, client := buildStack(t, srv.URL, t.TempDir())

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	bowtie := orb.Polygon{{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}
	out := pipe.Process(ctx, pipeline.Feature{ID: "bow", Geometry: bowtie})
	if out.Status != pipeline.StatusRejected {
		t.Fatalf("Expected rejected, got %s", out.Status)
	}
	if searchCalls.Load() != 0 {
		t.Errorf("Expected no search calls for rejected feature, got %d", searchCalls.Load())
	}
}

func TestEndToEnd_CatalogDownFailsRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, client := buildStack(t, srv.URL, t.TempDir())
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("Expected Connect to fail against a broken catalog")
	}
}
