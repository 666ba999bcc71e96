package generate

import (
	"math"

	"layer-composer/pkg/geometry"
)

const (
	// InsertGap separates new results from the source selection.
	InsertGap = 40.0
	// CascadeOffset shifts each further result so they do not overlap exactly.
	CascadeOffset = 20.0
	// MaxFreeSize caps the longer side of results with no source selection.
	MaxFreeSize = 1024.0
)

// Placement decides where generated layers go.
type Placement struct {
	Source    geometry.Rect
	HasSource bool
	Anchor    geometry.Point2D
}

// Place returns one rectangle per result bitmap size. With a source the
// results match its height and cascade from just right of it; without one
// they sit in a row starting at the anchor.
func (p Placement) Place(sizes []geometry.Size) []geometry.Rect {
	out := make([]geometry.Rect, len(sizes))
	x := p.Anchor.X
	for i, s := range sizes {
		w, h := fitSize(s, p)
		if p.HasSource {
			out[i] = geometry.NewRect(
				p.Source.Right()+InsertGap+float64(i)*CascadeOffset,
				p.Source.Y+float64(i)*CascadeOffset,
				w, h,
			)
			continue
		}
		out[i] = geometry.NewRect(x, p.Anchor.Y, w, h)
		x += w + InsertGap
	}
	return out
}

func fitSize(s geometry.Size, p Placement) (float64, float64) {
	if s.Width <= 0 || s.Height <= 0 {
		return 1, 1
	}
	if p.HasSource && p.Source.Height > 0 {
		return s.Width * p.Source.Height / s.Height, p.Source.Height
	}
	if long := math.Max(s.Width, s.Height); long > MaxFreeSize {
		k := MaxFreeSize / long
		return s.Width * k, s.Height * k
	}
	return s.Width, s.Height
}
