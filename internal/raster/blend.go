package raster

import (
	"image"
	"image/color"
	"math"

	"layer-composer/internal/layer"
)

// blendChannel applies the separable blend function for one channel.
// b is the backdrop value and s the source value, both in 0..1.
func blendChannel(mode layer.BlendMode, b, s float64) float64 {
	switch mode {
	case layer.BlendMultiply:
		return s * b
	case layer.BlendScreen:
		return 1 - (1-s)*(1-b)
	case layer.BlendOverlay:
		if b < 0.5 {
			return 2 * s * b
		}
		return 1 - 2*(1-s)*(1-b)
	case layer.BlendDarken:
		return math.Min(s, b)
	case layer.BlendLighten:
		return math.Max(s, b)
	case layer.BlendDifference:
		return math.Abs(s - b)
	}
	return s
}

// blendPixel composites src over dst with mode at opacity (0..1).
func blendPixel(dst, src color.NRGBA, mode layer.BlendMode, opacity float64) color.NRGBA {
	as := float64(src.A) / 255 * opacity
	if as <= 0 {
		return dst
	}
	ab := float64(dst.A) / 255

	sc := [3]float64{float64(src.R) / 255, float64(src.G) / 255, float64(src.B) / 255}
	bc := [3]float64{float64(dst.R) / 255, float64(dst.G) / 255, float64(dst.B) / 255}

	ao := as + ab*(1-as)
	var out [3]float64
	for i := 0; i < 3; i++ {
		// Where the backdrop is transparent the source shows unblended.
		mixed := (1-ab)*sc[i] + ab*blendChannel(mode, bc[i], sc[i])
		premul := as*mixed + ab*bc[i]*(1-as)
		out[i] = premul / ao
	}

	return color.NRGBA{
		R: uint8(clamp(out[0], 0, 1)*255 + 0.5),
		G: uint8(clamp(out[1], 0, 1)*255 + 0.5),
		B: uint8(clamp(out[2], 0, 1)*255 + 0.5),
		A: uint8(clamp(ao, 0, 1)*255 + 0.5),
	}
}

// compositeOnto blends the pixels of src inside r onto dst.
func compositeOnto(dst, src *image.NRGBA, r image.Rectangle, mode layer.BlendMode, opacity float64) {
	r = r.Intersect(dst.Bounds()).Intersect(src.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s := src.NRGBAAt(x, y)
			if s.A == 0 {
				continue
			}
			dst.SetNRGBA(x, y, blendPixel(dst.NRGBAAt(x, y), s, mode, opacity))
		}
	}
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
