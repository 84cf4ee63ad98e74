package raster

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/golang/snappy"
	"github.com/terrascope/scimage"
)

// Opener opens tile-store raster resources by reference. Every feature
// re-opens its asset: nothing is cached across calls.
type Opener struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewOpener creates an opener backed by the given fetcher.
func NewOpener(fetcher Fetcher) *Opener {
	return &Opener{fetcher: fetcher, logger: slog.Default()}
}

// WithLogger sets a custom logger for the opener.
func (o *Opener) WithLogger(logger *slog.Logger) *Opener {
	o.logger = logger
	return o
}

// Open fetches and validates the store's metadata document. The href may
// point at the metadata.json itself or at the store's base directory.
func (o *Opener) Open(ctx context.Context, href string) (Dataset, error) {
	base := strings.TrimRight(href, "/")
	metaRef := base + "/metadata.json"
	if strings.HasSuffix(base, ".json") {
		metaRef = base
		if i := strings.LastIndex(base, "/"); i >= 0 {
			base = base[:i]
		}
	}

	raw, err := o.fetcher.Fetch(ctx, metaRef)
	if err != nil {
		return nil, extractionErrf("open", err)
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, extractionErrf("open", fmt.Errorf("decode %s: %w", metaRef, err))
	}
	if err := meta.validate(); err != nil {
		return nil, extractionErrf("open", err)
	}

	o.logger.DebugContext(ctx, "opened raster",
		slog.String("href", href),
		slog.Int("x_size", meta.XSize),
		slog.Int("y_size", meta.YSize),
		slog.String("dtype", meta.DType),
	)

	return &tileDataset{meta: meta, base: base, fetcher: o.fetcher}, nil
}

// tileDataset reads a raster stored as fixed-size, snappy-compressed,
// native-dtype band tiles at {base}/bands/{band}/{tx}_{ty}.snp. Edge tiles
// are padded to the full tile size; missing tiles read as nodata.
type tileDataset struct {
	meta    Meta
	base    string
	fetcher Fetcher
}

func (d *tileDataset) Meta() Meta { return d.meta }

func (d *tileDataset) Close() error { return nil }

func (d *tileDataset) Read(ctx context.Context, win Window, bands []int, opts ReadOptions) (*Cube, error) {
	if win.Empty() {
		return nil, extractionErrf("read", fmt.Errorf("zero-size window %+v", win))
	}

	grid := d.meta.Grid()
	overlap := win.Intersect(grid)
	if !opts.Boundless && !grid.Contains(win) {
		return nil, extractionErrf("read", fmt.Errorf("window %+v extends outside raster bounds %dx%d", win, d.meta.XSize, d.meta.YSize))
	}

	cube := &Cube{Width: win.Width, Height: win.Height, Bands: make([][]float64, len(bands))}
	for i, band := range bands {
		if band < 1 || band > d.meta.BandCount {
			return nil, extractionErrf("read", fmt.Errorf("band %d out of range (raster has %d bands)", band, d.meta.BandCount))
		}
		plane, err := d.readBand(ctx, win, overlap, band, opts.Fill)
		if err != nil {
			return nil, err
		}
		cube.Bands[i] = plane
	}

	if opts.OutWidth > 0 && opts.OutHeight > 0 {
		cube = cube.Resample(opts.OutWidth, opts.OutHeight, opts.Resampling)
	}
	return cube, nil
}

func (d *tileDataset) readBand(ctx context.Context, win, overlap Window, band int, fill float64) ([]float64, error) {
	plane := make([]float64, win.Width*win.Height)
	if fill != 0 {
		for i := range plane {
			plane[i] = fill
		}
	}
	if overlap.Empty() {
		return plane, nil
	}

	ts := d.meta.TileSize
	tx0 := overlap.Col / ts
	tx1 := (overlap.Col + overlap.Width - 1) / ts
	ty0 := overlap.Row / ts
	ty1 := (overlap.Row + overlap.Height - 1) / ts

	for ty := ty0; ty <= ty1; ty++ {
		for tx := tx0; tx <= tx1; tx++ {
			ref := fmt.Sprintf("%s/bands/%d/%d_%d.snp", d.base, band, tx, ty)
			data, err := d.fetcher.Fetch(ctx, ref)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					// sparse store: absent tiles are nodata
					continue
				}
				return nil, extractionErrf("read", err)
			}

			samples, err := decodeTile(data, d.meta.DType, ts, d.meta.NoData)
			if err != nil {
				return nil, extractionErrf("read", fmt.Errorf("%s: %w", ref, err))
			}

			r0 := max(overlap.Row, ty*ts)
			r1 := min(overlap.Row+overlap.Height, (ty+1)*ts)
			c0 := max(overlap.Col, tx*ts)
			c1 := min(overlap.Col+overlap.Width, (tx+1)*ts)
			for r := r0; r < r1; r++ {
				for c := c0; c < c1; c++ {
					plane[(r-win.Row)*win.Width+(c-win.Col)] = samples.at(c-tx*ts, r-ty*ts)
				}
			}
		}
	}
	return plane, nil
}

// sampler reads decoded tile samples as float64.
type sampler interface {
	at(x, y int) float64
}

type grayU8Sampler struct{ im *scimage.GrayU8 }

func (s grayU8Sampler) at(x, y int) float64 {
	return float64(s.im.Pix[y*s.im.Stride+x])
}

type grayS16Sampler struct{ im *scimage.GrayS16 }

func (s grayS16Sampler) at(x, y int) float64 {
	return float64(s.im.Pix[y*s.im.Stride+x])
}

type grayF32Sampler struct{ im *scimage.GrayF32 }

func (s grayF32Sampler) at(x, y int) float64 {
	return float64(s.im.Pix[y*s.im.Stride+x])
}

// decodeTile decompresses a tile and wraps it in a typed scimage plane.
func decodeTile(compressed []byte, dtype string, ts int, nodata float64) (sampler, error) {
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", err)
	}

	rect := image.Rect(0, 0, ts, ts)
	switch dtype {
	case "uint8":
		if len(data) != ts*ts {
			return nil, fmt.Errorf("tile has %d bytes, want %d", len(data), ts*ts)
		}
		return grayU8Sampler{im: &scimage.GrayU8{
			Pix: data, Stride: ts, Rect: rect,
			Min: 0, Max: math.MaxUint8, NoData: uint8(nodata),
		}}, nil
	case "int16":
		if len(data) != ts*ts*2 {
			return nil, fmt.Errorf("tile has %d bytes, want %d", len(data), ts*ts*2)
		}
		pix := make([]int16, ts*ts)
		for i := range pix {
			pix[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return grayS16Sampler{im: &scimage.GrayS16{
			Pix: pix, Stride: ts, Rect: rect,
			Min: math.MinInt16, Max: math.MaxInt16, NoData: int16(nodata),
		}}, nil
	case "float32":
		if len(data) != ts*ts*4 {
			return nil, fmt.Errorf("tile has %d bytes, want %d", len(data), ts*ts*4)
		}
		pix := make([]float32, ts*ts)
		for i := range pix {
			pix[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return grayF32Sampler{im: &scimage.GrayF32{
			Pix: pix, Stride: ts, Rect: rect,
			Min: -math.MaxFloat32, Max: math.MaxFloat32, NoData: float32(nodata),
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported sample type %q", dtype)
	}
}
