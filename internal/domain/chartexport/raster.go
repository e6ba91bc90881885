package chartexport

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// DefaultScale is the rasterization factor over the template's native size.
const DefaultScale = 3.0

// ViewBox is the native size of a template in SVG user units.
type ViewBox struct {
	W, H float64
}

// Rasterize renders an SVG document onto a white canvas at scale times its
// view box.
func Rasterize(svg []byte, scale float64) (*image.RGBA, ViewBox, error) {
	if scale <= 0 {
		return nil, ViewBox{}, fmt.Errorf("invalid raster scale %v", scale)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, ViewBox{}, fmt.Errorf("parse svg: %w", err)
	}
	vb := ViewBox{W: icon.ViewBox.W, H: icon.ViewBox.H}
	if vb.W <= 0 || vb.H <= 0 {
		return nil, ViewBox{}, fmt.Errorf("template has no usable view box")
	}

	w := int(math.Ceil(vb.W * scale))
	h := int(math.Ceil(vb.H * scale))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return img, vb, nil
}

// EncodePNG renders and encodes an SVG document in one step.
func EncodePNG(svg []byte, scale float64) ([]byte, ViewBox, error) {
	img, vb, err := Rasterize(svg, scale)
	if err != nil {
		return nil, ViewBox{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, ViewBox{}, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), vb, nil
}
