// Package chip provides the normalized image crop container produced by the
// extraction pipeline: a three-band, 8-bit, row-major, band-interleaved array.
package chip

import "image"

// Image is an H x W x 3 crop with 8-bit RGB samples in row-major,
// band-interleaved-last order.
type Image struct {
	W   int
	H   int
	Pix []uint8
}

// New allocates a zeroed crop of the given dimensions.
func New(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]uint8, w*h*3)}
}

// Empty reports whether the crop has no pixels in either spatial dimension.
func (im *Image) Empty() bool {
	return im == nil || im.W <= 0 || im.H <= 0
}

// At returns the RGB sample at pixel (x, y).
func (im *Image) At(x, y int) (r, g, b uint8) {
	i := (y*im.W + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// SetRGB sets the RGB sample at pixel (x, y).
func (im *Image) SetRGB(x, y int, r, g, b uint8) {
	i := (y*im.W + x) * 3
	im.Pix[i] = r
	im.Pix[i+1] = g
	im.Pix[i+2] = b
}

// NRGBA converts the crop to a standard library image with opaque alpha,
// suitable for PNG encoding.
func (im *Image) NRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.W, im.H))
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			src := (y*im.W + x) * 3
			dst := out.PixOffset(x, y)
			out.Pix[dst] = im.Pix[src]
			out.Pix[dst+1] = im.Pix[src+1]
			out.Pix[dst+2] = im.Pix[src+2]
			out.Pix[dst+3] = 0xff
		}
	}
	return out
}
