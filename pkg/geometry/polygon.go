package geometry

import "math"

// RotatedCorners returns the corners of r rotated by degrees about its center,
// clockwise from the rotated top-left.
func RotatedCorners(r Rect, degrees float64) [4]Point2D {
	corners := r.Corners()
	if degrees == 0 {
		return corners
	}
	t := RotationAbout(r.Center(), degrees*math.Pi/180)
	for i, c := range corners {
		corners[i] = t.Apply(c)
	}
	return corners
}

// PointInRotatedRect reports whether p lies inside r rotated by degrees about
// its center.
func PointInRotatedRect(p Point2D, r Rect, degrees float64) bool {
	if degrees == 0 {
		return r.Contains(p)
	}
	// Undo the rotation on the point instead of rotating the rect.
	inv := RotationAbout(r.Center(), -degrees*math.Pi/180)
	return r.Contains(inv.Apply(p))
}
