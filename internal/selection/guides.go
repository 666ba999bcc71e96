package selection

import (
	"math"

	"layer-composer/pkg/geometry"
)

// DefaultSnapThreshold is the snapping distance in canvas units.
const DefaultSnapThreshold = 6.0

// Orientation of a guide line.
type Orientation int

const (
	GuideVertical Orientation = iota
	GuideHorizontal
)

// GuideLine is a visual guide shown while a snap is active.
type GuideLine struct {
	Orientation Orientation
	Position    float64 // x for vertical guides, y for horizontal ones
	From, To    float64 // extent along the guide
}

// SnapOptions configures Snap.
type SnapOptions struct {
	Threshold float64
	Edges     bool
	Centers   bool
	GridSize  float64 // 0 disables grid snapping
}

// SnapToGrid rounds v to the nearest multiple of size.
func SnapToGrid(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	return math.Round(v/size) * size
}

type candidate struct {
	delta float64
	dist  float64
	guide GuideLine
	ok    bool
}

func (c *candidate) consider(delta, threshold float64, g GuideLine) {
	d := math.Abs(delta)
	if d > threshold {
		return
	}
	if !c.ok || d < c.dist {
		*c = candidate{delta: delta, dist: d, guide: g, ok: true}
	}
}

// Snap adjusts the moving rectangle against anchor rectangles. Smart guides
// take precedence; when none is within the threshold on an axis and a grid
// is configured, the leading edge snaps to the grid on that axis. It returns
// the snapped rectangle and the guides to draw.
func Snap(moving geometry.Rect, anchors []geometry.Rect, opts SnapOptions) (geometry.Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultSnapThreshold
	}
	var bx, by candidate

	mL, mR, mCX := moving.X, moving.Right(), moving.Center().X
	mT, mB, mCY := moving.Y, moving.Bottom(), moving.Center().Y

	for _, a := range anchors {
		aL, aR, aCX := a.X, a.Right(), a.Center().X
		aT, aB, aCY := a.Y, a.Bottom(), a.Center().Y
		vertical := func(x float64) GuideLine {
			return GuideLine{GuideVertical, x, math.Min(moving.Y, a.Y), math.Max(mB, aB)}
		}
		horizontal := func(y float64) GuideLine {
			return GuideLine{GuideHorizontal, y, math.Min(moving.X, a.X), math.Max(mR, aR)}
		}
		if opts.Edges {
			for _, pair := range [][2]float64{{mL, aL}, {mR, aR}, {mL, aR}, {mR, aL}} {
				bx.consider(pair[0]-pair[1], opts.Threshold, vertical(pair[1]))
			}
			for _, pair := range [][2]float64{{mT, aT}, {mB, aB}, {mT, aB}, {mB, aT}} {
				by.consider(pair[0]-pair[1], opts.Threshold, horizontal(pair[1]))
			}
		}
		if opts.Centers {
			bx.consider(mCX-aCX, opts.Threshold, vertical(aCX))
			by.consider(mCY-aCY, opts.Threshold, horizontal(aCY))
		}
	}

	snapped := moving
	var guides []GuideLine
	if bx.ok {
		snapped.X -= bx.delta
		guides = append(guides, bx.guide)
	} else if opts.GridSize > 0 {
		snapped.X = SnapToGrid(moving.X, opts.GridSize)
	}
	if by.ok {
		snapped.Y -= by.delta
		guides = append(guides, by.guide)
	} else if opts.GridSize > 0 {
		snapped.Y = SnapToGrid(moving.Y, opts.GridSize)
	}
	return snapped, guides
}
