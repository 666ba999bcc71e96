package geometry

import (
	"math"
	"testing"

	"github.com/tdewolff/test"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func nearRect(a, b Rect) bool {
	return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Width, b.Width) && near(a.Height, b.Height)
}

func TestRectUnion(t *testing.T) {
	a := NewRect(0, 0, 10, 10)
	b := NewRect(20, 5, 10, 20)
	test.T(t, a.Union(b), Rect{X: 0, Y: 0, Width: 30, Height: 25})

	u, ok := UnionAll(nil)
	test.That(t, !ok)
	test.T(t, u, Rect{})
}

func TestRectFromPoints(t *testing.T) {
	r := RectFromPoints(Point2D{X: 10, Y: 2}, Point2D{X: 4, Y: 8})
	test.T(t, r, Rect{X: 4, Y: 2, Width: 6, Height: 6})
}

func TestRotatedBounds(t *testing.T) {
	var tests = []struct {
		rect    Rect
		degrees float64
		want    Rect
	}{
		{NewRect(10, 20, 100, 50), 0, NewRect(10, 20, 100, 50)},
		{NewRect(10, 20, 100, 50), 360, NewRect(10, 20, 100, 50)},
		{NewRect(0, 0, 100, 50), 90, NewRect(25, -25, 50, 100)},
		{NewRect(0, 0, 100, 50), 180, NewRect(0, 0, 100, 50)},
		{NewRect(0, 0, 10, 10), 45, NewRect(5-5*math.Sqrt2, 5-5*math.Sqrt2, 10*math.Sqrt2, 10*math.Sqrt2)},
	}
	for _, tt := range tests {
		got := RotatedBounds(tt.rect, tt.degrees)
		test.That(t, nearRect(got, tt.want), got, "!=", tt.want)
	}
}

func TestPointInRotatedRect(t *testing.T) {
	r := NewRect(0, 0, 100, 10)
	test.That(t, PointInRotatedRect(Point2D{X: 90, Y: 5}, r, 0))
	// Rotated 90 degrees the strip stands upright around (50,5).
	test.That(t, !PointInRotatedRect(Point2D{X: 90, Y: 5}, r, 90))
	test.That(t, PointInRotatedRect(Point2D{X: 50, Y: 40}, r, 90))
}
