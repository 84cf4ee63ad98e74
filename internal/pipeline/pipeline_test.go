package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	gostac "github.com/planetlabs/go-stac"

	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/geo"
	"github.com/rkm/stac-chipper/internal/raster"
	"github.com/rkm/stac-chipper/pkg/chip"
)

type fakeSearcher struct {
	mu    sync.Mutex
	items []*gostac.Item
	err   error
	calls int
}

func (s *fakeSearcher) Search(ctx context.Context, collection string, intersects orb.Geometry, limit int) ([]*gostac.Item, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeDataset is an in-memory raster: 64x64, 1 m pixels, three constant
// bands, georeferenced so that centerLon/centerLat projects to its middle.
type fakeDataset struct {
	meta raster.Meta
}

func newFakeDataset(t *testing.T, centerLon, centerLat float64) *fakeDataset {
	t.Helper()
	proj4 := "+proj=utm +zone=14 +datum=WGS84 +units=m +no_defs"
	proj, err := geo.ParseProj4(proj4)
	if err != nil {
		t.Fatalf("ParseProj4 failed: %v", err)
	}
	center := proj.Forward(orb.Point{centerLon, centerLat})
	return &fakeDataset{meta: raster.Meta{
		XSize:        64,
		YSize:        64,
		GeoTransform: [6]float64{center[0] - 32, 1, 0, center[1] + 32, 0, -1},
		Proj4:        proj4,
		DType:        "uint8",
		BandCount:    3,
		TileSize:     32,
	}}
}

func (d *fakeDataset) Meta() raster.Meta { return d.meta }
func (d *fakeDataset) Close() error      { return nil }

func (d *fakeDataset) Read(ctx context.Context, win raster.Window, bands []int, opts raster.ReadOptions) (*raster.Cube, error) {
	cube := &raster.Cube{Width: win.Width, Height: win.Height, Bands: make([][]float64, len(bands))}
	for i, b := range bands {
		plane := make([]float64, win.Width*win.Height)
		for j := range plane {
			plane[j] = float64(b * 40)
		}
		cube.Bands[i] = plane
	}
	return cube, nil
}

type fakeOpener struct {
	ds  raster.Dataset
	err error
}

func (o *fakeOpener) Open(ctx context.Context, href string) (raster.Dataset, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.ds, nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (s *fakeSink) Save(ctx context.Context, featureID string, img *chip.Image) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, featureID)
	return "/tmp/" + featureID + ".png", nil
}

func coveringItem(id string) *gostac.Item {
	return &gostac.Item{
		Id:         id,
		Properties: map[string]any{"datetime": "2023-06-01T00:00:00Z", "gsd": 0.6},
		Assets: map[string]*gostac.Asset{
			"image": {Href: "https://example.com/" + id, Type: "image/tiff"},
		},
	}
}

func testPipeline(t *testing.T, searcher Searcher, opener Opener, sink Sink) *Pipeline {
	t.Helper()
	return New(Options{
		Collection:   "naip",
		BufferMeters: 100,
		Boundless:    true,
		Searcher:     searcher,
		Opener:       opener,
		Sink:         sink,
	})
}

func TestPipeline_Success(t *testing.T) {
	searcher := &fakeSearcher{items: []*gostac.Item{coveringItem("scene-1")}}
	opener := &fakeOpener{ds: newFakeDataset(t, -100, 40)}
	sink := &fakeSink{}
	pipe := testPipeline(t, searcher, opener, sink)

	out := pipe.Process(context.Background(), Feature{ID: "sub_1", Geometry: orb.Point{-100, 40}})

	if out.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s (err: %v)", out.Status, out.Err)
	}
	if out.Width <= 0 || out.Height <= 0 {
		t.Errorf("Expected non-empty crop dimensions, got %dx%d", out.Width, out.Height)
	}
	if out.ItemID != "scene-1" {
		t.Errorf("Expected item scene-1, got %q", out.ItemID)
	}
	if out.GSD == nil || *out.GSD != 0.6 {
		t.Errorf("Expected gsd 0.6, got %v", out.GSD)
	}
	if out.Path != "/tmp/sub_1.png" {
		t.Errorf("Expected saved path, got %q", out.Path)
	}
	if len(sink.saved) != 1 {
		t.Errorf("Expected one save, got %d", len(sink.saved))
	}
}

func TestPipeline_RejectedBeforeAnyNetworkCall(t *testing.T) {
	searcher := &fakeSearcher{items: []*gostac.Item{coveringItem("scene-1")}}
	opener := &fakeOpener{ds: newFakeDataset(t, -100, 40)}
	pipe := testPipeline(t, searcher, opener, nil)

	bowtie := orb.Polygon{{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}
	out := pipe.Process(context.Background(), Feature{ID: "bad", Geometry: bowtie})

	if out.Status != StatusRejected {
		t.Fatalf("Expected rejected, got %s", out.Status)
	}
	if searcher.callCount() != 0 {
		t.Errorf("Expected zero catalog calls for rejected feature, got %d", searcher.callCount())
	}
}

func TestPipeline_MissingGeometryRejected(t *testing.T) {
	pipe := testPipeline(t, &fakeSearcher{}, &fakeOpener{}, nil)
	out := pipe.Process(context.Background(), Feature{ID: "empty"})
	if out.Status != StatusRejected {
		t.Fatalf("Expected rejected, got %s", out.Status)
	}
}

func TestPipeline_EmptySearchIsNoCoverage(t *testing.T) {
	pipe := testPipeline(t, &fakeSearcher{}, &fakeOpener{ds: newFakeDataset(t, -100, 40)}, nil)

	out := pipe.Process(context.Background(), Feature{ID: "nowhere", Geometry: orb.Point{-100, 40}})
	if out.Status != StatusNoCoverage {
		t.Fatalf("Expected no_coverage, got %s (err: %v)", out.Status, out.Err)
	}
}

func TestPipeline_FootprintOutsideRasterIsNoCoverage(t *testing.T) {
	// catalog claims coverage but the scene is georeferenced elsewhere
	searcher := &fakeSearcher{items: []*gostac.Item{coveringItem("scene-1")}}
	opener := &fakeOpener{ds: newFakeDataset(t, -99.5, 40)}
	pipe := testPipeline(t, searcher, opener, nil)

	out := pipe.Process(context.Background(), Feature{ID: "sub_2", Geometry: orb.Point{-100, 40}})
	if out.Status != StatusNoCoverage {
		t.Fatalf("Expected no_coverage, got %s (err: %v)", out.Status, out.Err)
	}
}

func TestPipeline_CatalogFailure(t *testing.T) {
	searcher := &fakeSearcher{err: &catalog.CatalogError{Op: "search", Err: errors.New("boom")}}
	pipe := testPipeline(t, searcher, &fakeOpener{}, nil)

	out := pipe.Process(context.Background(), Feature{ID: "sub_3", Geometry: orb.Point{-100, 40}})
	if out.Status != StatusFailed {
		t.Fatalf("Expected failed, got %s", out.Status)
	}
}

func TestPipeline_SinkFailure(t *testing.T) {
	searcher := &fakeSearcher{items: []*gostac.Item{coveringItem("scene-1")}}
	opener := &fakeOpener{ds: newFakeDataset(t, -100, 40)}
	sink := &fakeSink{err: fmt.Errorf("disk full")}
	pipe := testPipeline(t, searcher, opener, sink)

	out := pipe.Process(context.Background(), Feature{ID: "sub_4", Geometry: orb.Point{-100, 40}})
	if out.Status != StatusFailed {
		t.Fatalf("Expected failed, got %s", out.Status)
	}
}

func TestRunner_OrderAndSummary(t *testing.T) {
	searcher := &fakeSearcher{items: []*gostac.Item{coveringItem("scene-1")}}
	opener := &fakeOpener{ds: newFakeDataset(t, -100, 40)}
	sink := &fakeSink{}
	pipe := testPipeline(t, searcher, opener, sink)

	features := []Feature{
		{ID: "good_1", Geometry: orb.Point{-100, 40}},
		{ID: "bad", Geometry: orb.Polygon{{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}},
		{ID: "good_2", Geometry: orb.Point{-100.0001, 40.0001}},
		{ID: "no_geom"},
	}

	runner := NewRunner(pipe, 3, time.Minute)
	outcomes, summary := runner.Run(context.Background(), features)

	if len(outcomes) != 4 {
		t.Fatalf("Expected 4 outcomes, got %d", len(outcomes))
	}
	for i, f := range features {
		if outcomes[i].FeatureID != f.ID {
			t.Errorf("outcome %d out of order: expected %q, got %q", i, f.ID, outcomes[i].FeatureID)
		}
	}
	if summary.Processed != 4 || summary.Succeeded != 2 || summary.Rejected != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.Failed != 0 || summary.NoCoverage != 0 {
		t.Errorf("unexpected failure counts in %+v", summary)
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	pipe := testPipeline(t, &fakeSearcher{}, &fakeOpener{}, nil)
	outcomes, summary := NewRunner(pipe, 4, 0).Run(context.Background(), nil)
	if len(outcomes) != 0 || summary.Processed != 0 {
		t.Errorf("Expected empty run, got %d outcomes, %+v", len(outcomes), summary)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	pipe := testPipeline(t, &fakeSearcher{}, &fakeOpener{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, summary := NewRunner(pipe, 2, 0).Run(ctx, []Feature{
		{ID: "a", Geometry: orb.Point{-100, 40}},
		{ID: "b", Geometry: orb.Point{-100, 40}},
	})
	if summary.Failed != 2 {
		t.Errorf("Expected both features failed under cancelled context, got %+v", summary)
	}
	for _, out := range outcomes {
		if out.Status != StatusFailed {
			t.Errorf("Expected failed, got %s", out.Status)
		}
	}
}
