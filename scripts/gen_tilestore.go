// Script to generate a synthetic tile store for local testing.
//
// Usage: go run scripts/gen_tilestore.go -out ./testdata/store -lon -100 -lat 40 -size 512
//
// The store is centered on the given geographic point, uses 1 m pixels in the
// point's UTM zone and fills the three bands with a diagonal gradient. Point
// the raster opener at the output directory (file://) to extract chips from it.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/paulmach/orb"

	"github.com/rkm/stac-chipper/internal/geo"
)

type storeMeta struct {
	XSize        int        `json:"x_size"`
	YSize        int        `json:"y_size"`
	GeoTransform [6]float64 `json:"geotransform"`
	Proj4        string     `json:"proj4"`
	DType        string     `json:"dtype"`
	NoData       float64    `json:"no_data"`
	BandCount    int        `json:"band_count"`
	TileSize     int        `json:"tile_size"`
	GSD          float64    `json:"gsd"`
}

func main() {
	out := flag.String("out", "./testdata/store", "output directory")
	lon := flag.Float64("lon", -100.0, "center longitude")
	lat := flag.Float64("lat", 40.0, "center latitude")
	size := flag.Int("size", 512, "raster width and height in pixels")
	tileSize := flag.Int("tile", 256, "tile size in pixels")
	dtype := flag.String("dtype", "uint8", "sample type: uint8, int16 or float32")
	flag.Parse()

	if err := run(*out, *lon, *lat, *size, *tileSize, *dtype); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(out string, lon, lat float64, size, tileSize int, dtype string) error {
	crs, err := geo.ResolveUTM(lat, lon)
	if err != nil {
		return err
	}
	center := crs.Projection().Forward(orb.Point{lon, lat})
	half := float64(size) / 2

	meta := storeMeta{
		XSize:        size,
		YSize:        size,
		GeoTransform: [6]float64{center[0] - half, 1, 0, center[1] + half, 0, -1},
		Proj4:        crs.Proj4(),
		DType:        dtype,
		NoData:       0,
		BandCount:    3,
		TileSize:     tileSize,
		GSD:          1,
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(out, "metadata.json"), metaJSON, 0o644); err != nil {
		return err
	}

	tilesX := (size + tileSize - 1) / tileSize
	tilesY := (size + tileSize - 1) / tileSize

	for band := 1; band <= meta.BandCount; band++ {
		dir := filepath.Join(out, "bands", fmt.Sprintf("%d", band))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for ty := 0; ty < tilesY; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				tile, err := encodeTile(band, tx, ty, tileSize, dtype)
				if err != nil {
					return err
				}
				path := filepath.Join(dir, fmt.Sprintf("%d_%d.snp", tx, ty))
				if err := os.WriteFile(path, tile, 0o644); err != nil {
					return err
				}
			}
		}
	}

	fmt.Printf("wrote %dx%d %s store (%d bands, %d tiles/band) to %s\n",
		size, size, dtype, meta.BandCount, tilesX*tilesY, out)
	fmt.Printf("zone %d%s, center (%.1f, %.1f)\n", crs.Zone, hemisphere(crs), center[0], center[1])
	return nil
}

func hemisphere(crs geo.ProjectedCRS) string {
	if crs.South {
		return "S"
	}
	return "N"
}

// gradient keeps the bands distinguishable: band n is offset by n*10.
func gradient(band, x, y int) float64 {
	return float64(band*10 + (x+y)%100)
}

func encodeTile(band, tx, ty, ts int, dtype string) ([]byte, error) {
	var raw []byte
	switch dtype {
	case "uint8":
		raw = make([]byte, ts*ts)
		for y := 0; y < ts; y++ {
			for x := 0; x < ts; x++ {
				raw[y*ts+x] = uint8(gradient(band, tx*ts+x, ty*ts+y))
			}
		}
	case "int16":
		raw = make([]byte, ts*ts*2)
		for y := 0; y < ts; y++ {
			for x := 0; x < ts; x++ {
				v := int16(gradient(band, tx*ts+x, ty*ts+y))
				binary.LittleEndian.PutUint16(raw[(y*ts+x)*2:], uint16(v))
			}
		}
	case "float32":
		raw = make([]byte, ts*ts*4)
		for y := 0; y < ts; y++ {
			for x := 0; x < ts; x++ {
				v := float32(gradient(band, tx*ts+x, ty*ts+y))
				binary.LittleEndian.PutUint32(raw[(y*ts+x)*4:], math.Float32bits(v))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported sample type %q", dtype)
	}
	return snappy.Encode(nil, raw), nil
}
