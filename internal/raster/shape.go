package raster

import (
	"image"
	"image/draw"
	"math"

	"layer-composer/internal/layer"
	"layer-composer/pkg/colorutil"

	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

// renderShape fills a w×h sprite with the layer's shape scaled by (sx, sy).
func renderShape(l layer.Layer, w, h int, sx, sy float64) *image.NRGBA {
	sprite := image.NewNRGBA(image.Rect(0, 0, w, h))
	if l.Shape == nil || colorutil.IsTransparent(l.Shape.FillColor) {
		return sprite
	}
	fill := colorutil.MustParse(l.Shape.FillColor, colorutil.Black)

	ras := vector.NewRasterizer(w, h)
	fw, fh := float32(l.Width*sx), float32(l.Height*sy)
	switch l.Shape.Type {
	case layer.ShapeEllipse:
		ellipsePath(ras, fw/2, fh/2, fw/2, fh/2)
	default:
		r := l.EffectiveRadius()
		roundRectPath(ras, fw, fh, float32(r*sx), float32(r*sy))
	}
	ras.Draw(sprite, sprite.Bounds(), image.NewUniform(fill), image.Point{})
	return sprite
}

func ellipsePath(ras *vector.Rasterizer, cx, cy, rx, ry float32) {
	kx, ky := rx*kappa, ry*kappa
	ras.MoveTo(cx+rx, cy)
	ras.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	ras.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	ras.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	ras.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	ras.ClosePath()
}

func roundRectPath(ras *vector.Rasterizer, w, h, rx, ry float32) {
	if rx <= 0 || ry <= 0 {
		ras.MoveTo(0, 0)
		ras.LineTo(w, 0)
		ras.LineTo(w, h)
		ras.LineTo(0, h)
		ras.ClosePath()
		return
	}
	kx, ky := rx*kappa, ry*kappa
	ras.MoveTo(rx, 0)
	ras.LineTo(w-rx, 0)
	ras.CubeTo(w-rx+kx, 0, w, ry-ky, w, ry)
	ras.LineTo(w, h-ry)
	ras.CubeTo(w, h-ry+ky, w-rx+kx, h, w-rx, h)
	ras.LineTo(rx, h)
	ras.CubeTo(rx-kx, h, 0, h-ry+ky, 0, h-ry)
	ras.LineTo(0, ry)
	ras.CubeTo(0, ry-ky, rx-kx, 0, rx, 0)
	ras.ClosePath()
}

// fillBackground paints c over the whole of dst unless it is transparent.
func fillBackground(dst draw.Image, background string) {
	if colorutil.IsTransparent(background) {
		return
	}
	c := colorutil.MustParse(background, colorutil.White)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// spriteSize returns the pixel size for a w×h box at scale.
func spriteSize(w, h, sx, sy float64) (int, int) {
	pw := int(math.Ceil(w*sx - 1e-9))
	ph := int(math.Ceil(h*sy - 1e-9))
	return max(pw, 1), max(ph, 1)
}
