package selection

import (
	"math"
	"testing"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	"github.com/tdewolff/test"
)

func rect(t *testing.T, x, y, w, h float64) layer.Layer {
	t.Helper()
	l, err := layer.NewShape(layer.ShapeRectangle, "#333", geometry.NewRect(x, y, w, h))
	test.Error(t, err)
	return l
}

func ids(layers ...layer.Layer) []string {
	var out []string
	for _, l := range layers {
		out = append(out, l.ID)
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSetToggleAndPrimary(t *testing.T) {
	s := NewSet("a", "b", "a")
	test.T(t, s.IDs(), []string{"a", "b"})
	s.Toggle("c")
	s.Toggle("a")
	test.T(t, s.IDs(), []string{"b", "c"})
	p, ok := s.Primary()
	test.That(t, ok)
	test.String(t, p, "b")
	s.Retain(func(id string) bool { return id != "b" })
	test.T(t, s.IDs(), []string{"c"})
	s.Select("z")
	test.T(t, s.Len(), 1)
	s.Clear()
	_, ok = s.Primary()
	test.That(t, !ok)
}

func TestAlignLeftIdempotent(t *testing.T) {
	a := rect(t, 10, 0, 50, 50)
	b := rect(t, 100, 80, 30, 20)
	c := rect(t, 40, 200, 10, 10)
	list := []layer.Layer{a, b, c}
	sel := ids(a, b, c)

	once := Align(list, sel, AlignLeft)
	for _, l := range once {
		test.Float(t, l.X, 10)
	}
	twice := Align(once, sel, AlignLeft)
	test.That(t, layer.ListEqual(once, twice))
}

func TestAlignCenterAndBottom(t *testing.T) {
	a := rect(t, 0, 0, 100, 100)
	b := rect(t, 300, 0, 20, 40)
	list := Align([]layer.Layer{a, b}, ids(a, b), AlignCenter)
	// Selection spans 0..320, so both centers move to 160.
	test.Float(t, list[0].X, 110)
	test.Float(t, list[1].X, 150)
	list = Align(list, ids(a, b), AlignBottom)
	test.Float(t, list[1].Y, 60)
	test.Float(t, list[0].Y, 0)
}

func TestAlignSingleIsIdentity(t *testing.T) {
	a := rect(t, 5, 6, 7, 8)
	list := Align([]layer.Layer{a}, ids(a), AlignRight)
	test.That(t, layer.Equal(list[0], a))
}

func TestDistributeEvenness(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	b := rect(t, 15, 0, 30, 10)
	c := rect(t, 190, 0, 10, 10)
	list := Distribute([]layer.Layer{c, a, b}, ids(a, b, c), Horizontal)

	byID := map[string]layer.Layer{}
	for _, l := range list {
		byID[l.ID] = l
	}
	// B = 200, W = 50, gap = (200-50)/2 = 75.
	la, lb, lc := byID[a.ID], byID[b.ID], byID[c.ID]
	test.Float(t, la.X, 0)
	test.That(t, near(lb.X-(la.X+la.Width), 75))
	test.That(t, near(lc.X-(lb.X+lb.Width), 75))
	test.Float(t, lc.X, 190)
}

func TestDistributeNeedsTwo(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	list := Distribute([]layer.Layer{a}, ids(a), Vertical)
	test.That(t, layer.Equal(list[0], a))
}

func TestDistributeAndScale(t *testing.T) {
	a := rect(t, 0, 0, 100, 100)
	b := rect(t, 300, 50, 100, 50)
	list := DistributeAndScale([]layer.Layer{a, b}, ids(a, b), Horizontal, 10)

	// Average height is 75.
	test.Float(t, list[0].Height, 75)
	test.Float(t, list[0].Width, 75)
	test.Float(t, list[1].Height, 75)
	test.Float(t, list[1].Width, 150)
	test.Float(t, list[0].X, 0)
	test.Float(t, list[1].X, 85)
	test.Float(t, list[1].Y, 0)
}

func TestResizeToDimension(t *testing.T) {
	a := rect(t, 0, 0, 200, 100)
	b := rect(t, 0, 0, 50, 100)
	list := ResizeToDimension([]layer.Layer{a, b}, ids(a, b), Horizontal, 100)
	test.Float(t, list[0].Width, 100)
	test.Float(t, list[0].Height, 50)
	test.Float(t, list[1].Width, 100)
	test.Float(t, list[1].Height, 200)
}

func TestDuplicateAndDelete(t *testing.T) {
	a := rect(t, 10, 10, 40, 40)
	list, created := Duplicate([]layer.Layer{a}, ids(a))
	test.T(t, len(list), 2)
	test.T(t, len(created), 1)
	test.That(t, created[0] != a.ID)
	// The copy sits directly above the original.
	test.String(t, list[0].ID, created[0])
	test.Float(t, list[0].X, 30)
	test.Float(t, list[0].Y, 30)

	list = Delete(list, ids(list...))
	test.T(t, len(list), 0)
}

func TestDuplicateKeepsRelativeOrder(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	b := rect(t, 0, 0, 10, 10)
	c := rect(t, 0, 0, 10, 10)
	list, created := Duplicate([]layer.Layer{a, b, c}, ids(a, c))
	test.T(t, len(list), 5)
	test.T(t, []string{list[0].ID, list[1].ID, list[2].ID, list[3].ID, list[4].ID},
		[]string{created[0], a.ID, b.ID, created[1], c.ID})
}

func TestReorderBlock(t *testing.T) {
	a, b, c, d := rect(t, 0, 0, 1, 1), rect(t, 0, 0, 1, 1), rect(t, 0, 0, 1, 1), rect(t, 0, 0, 1, 1)
	list := []layer.Layer{a, b, c, d}

	up, moved := Reorder(list, ids(c, d), Up)
	test.That(t, moved)
	test.T(t, ids(up...), ids(a, c, d, b))

	down, moved := Reorder(list, ids(a, b), Down)
	test.That(t, moved)
	test.T(t, ids(down...), ids(c, a, b, d))

	_, moved = Reorder(list, ids(a, b), Up)
	test.That(t, !moved)
}

func TestFrontBack(t *testing.T) {
	a, b, c := rect(t, 0, 0, 1, 1), rect(t, 0, 0, 1, 1), rect(t, 0, 0, 1, 1)
	list := []layer.Layer{a, b, c}
	test.T(t, ids(BringToFront(list, ids(c))...), ids(c, a, b))
	test.T(t, ids(SendToBack(list, ids(a))...), ids(b, c, a))
}

func TestNudgeSkipsLocked(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	b := rect(t, 0, 0, 10, 10)
	b.Locked = true
	list := Nudge([]layer.Layer{a, b}, ids(a, b), 1, -1)
	test.Float(t, list[0].X, 1)
	test.Float(t, list[1].X, 0)
}

func TestMoveDragSingleFinal(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	list := []layer.Layer{a}
	d := BeginMove(list, ids(a), geometry.Point2D{X: 5, Y: 5})
	for k := 1; k < 10; k++ {
		list = d.Update(list, geometry.Point2D{X: 5 + float64(k), Y: 5}, Modifiers{})
	}
	test.Float(t, list[0].X, 9)
	test.Float(t, list[0].Y, 0)
}

func TestMoveDragIgnoresLocked(t *testing.T) {
	a := rect(t, 0, 0, 10, 10)
	a.Locked = true
	d := BeginMove([]layer.Layer{a}, ids(a), geometry.Point2D{})
	test.That(t, !d.Active())
	out := d.Update([]layer.Layer{a}, geometry.Point2D{X: 50}, Modifiers{})
	test.Float(t, out[0].X, 0)
}

func TestMoveDragSnapsToNeighbour(t *testing.T) {
	anchor := rect(t, 100, 0, 50, 50)
	moving := rect(t, 0, 200, 20, 20)
	list := []layer.Layer{moving, anchor}

	d := BeginMove(list, ids(moving), geometry.Point2D{}).
		WithSnapping(list, SnapOptions{Threshold: 6, Edges: true})
	out := d.Update(list, geometry.Point2D{X: 97, Y: 0}, Modifiers{})
	test.Float(t, out[0].X, 100)
	test.T(t, len(d.Guides), 1)
	test.T(t, d.Guides[0].Orientation, GuideVertical)
	test.Float(t, d.Guides[0].Position, 100)
}

func TestResizeDragSE(t *testing.T) {
	a := rect(t, 10, 10, 100, 50)
	d := BeginResize([]layer.Layer{a}, a.ID, HandleSE, geometry.Point2D{X: 110, Y: 60})
	out := d.Update([]layer.Layer{a}, geometry.Point2D{X: 130, Y: 70}, Modifiers{})
	test.T(t, out[0].Bounds(), geometry.NewRect(10, 10, 120, 60))

	out = d.Update([]layer.Layer{a}, geometry.Point2D{X: 160, Y: 60}, Modifiers{Shift: true})
	test.That(t, near(out[0].Width, 150) && near(out[0].Height, 75))
	test.That(t, near(out[0].X, 10) && near(out[0].Y, 10))
}

func TestResizeDragWestKeepsRightEdge(t *testing.T) {
	a := rect(t, 10, 10, 100, 50)
	d := BeginResize([]layer.Layer{a}, a.ID, HandleW, geometry.Point2D{X: 10, Y: 35})
	out := d.Update([]layer.Layer{a}, geometry.Point2D{X: 30, Y: 99}, Modifiers{})
	test.That(t, near(out[0].X, 30) && near(out[0].Width, 80))
	test.That(t, near(out[0].Height, 50) && near(out[0].Y, 10))
}

func TestRotateDrag(t *testing.T) {
	a := rect(t, 0, 0, 100, 100)
	d := BeginRotate([]layer.Layer{a}, a.ID, geometry.Point2D{X: 50, Y: -10})
	out := d.Update([]layer.Layer{a}, geometry.Point2D{X: 110, Y: 50}, Modifiers{})
	test.That(t, near(out[0].Rotation, 90))

	out = d.Update([]layer.Layer{a}, geometry.Point2D{X: 110, Y: 45}, Modifiers{Shift: true})
	test.That(t, math.Mod(out[0].Rotation, RotateSnap) == 0)
}

func TestHandleAt(t *testing.T) {
	a := rect(t, 0, 0, 100, 100)
	test.T(t, HandleAt(a, geometry.Point2D{X: 99, Y: 101}, 5, 30), HandleSE)
	test.T(t, HandleAt(a, geometry.Point2D{X: 50, Y: -30}, 5, 30), HandleRotate)
	test.T(t, HandleAt(a, geometry.Point2D{X: 50, Y: 50}, 5, 30), HandleNone)
}

func TestHandleAtOverlapping(t *testing.T) {
	tiny := rect(t, 0, 0, 2, 2)
	for range 50 {
		test.T(t, HandleAt(tiny, geometry.Point2D{X: 1, Y: 1}, 5, 1), HandleN)
		test.T(t, HandleAt(tiny, geometry.Point2D{X: 0, Y: 0}, 5, 1), HandleNW)
		test.T(t, HandleAt(tiny, geometry.Point2D{X: 1, Y: -0.5}, 5, 1), HandleN)
		test.T(t, HandleAt(tiny, geometry.Point2D{X: 1, Y: -0.9}, 5, 1), HandleRotate)
	}
}

func TestSnapToGrid(t *testing.T) {
	test.Float(t, SnapToGrid(47, 32), 32)
	test.Float(t, SnapToGrid(49, 32), 64)
	test.Float(t, SnapToGrid(49, 0), 49)

	r, guides := Snap(geometry.NewRect(49, 15, 10, 10), nil, SnapOptions{GridSize: 32})
	test.T(t, len(guides), 0)
	test.T(t, r.TopLeft(), geometry.Point2D{X: 64, Y: 0})
}
