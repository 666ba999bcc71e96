package selection

import (
	"math"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"
)

// Handle identifies the grip a resize or rotate drag started from.
type Handle int

const (
	HandleNone Handle = iota
	HandleN
	HandleNE
	HandleE
	HandleSE
	HandleS
	HandleSW
	HandleW
	HandleNW
	HandleRotate
)

// signs returns the direction each handle grows the box in local space.
func (h Handle) signs() (sx, sy float64) {
	switch h {
	case HandleN:
		return 0, -1
	case HandleNE:
		return 1, -1
	case HandleE:
		return 1, 0
	case HandleSE:
		return 1, 1
	case HandleS:
		return 0, 1
	case HandleSW:
		return -1, 1
	case HandleW:
		return -1, 0
	case HandleNW:
		return -1, -1
	}
	return 0, 0
}

// Corner reports whether the handle sits on a corner.
func (h Handle) Corner() bool {
	sx, sy := h.signs()
	return sx != 0 && sy != 0
}

// RotateSnap is the angle step used when rotation snapping is requested.
const RotateSnap = 15.0

// MinSize is the smallest width or height a resize can produce.
const MinSize = 1.0

type dragKind int

const (
	dragMove dragKind = iota
	dragResize
	dragRotate
)

// Modifiers carries keyboard state relevant to a drag.
type Modifiers struct {
	Shift bool // keep aspect ratio while resizing, snap angle while rotating
}

// Drag is an in-progress pointer interaction. Update produces live layer
// lists for non-final commits; the last one returned is the final state.
type Drag struct {
	kind    dragKind
	handle  Handle
	start   geometry.Point2D
	origins map[string]layer.Layer
	ids     []string

	snap   *SnapOptions
	anchor []geometry.Rect

	// Guides holds the guide lines produced by the latest Update.
	Guides []GuideLine
}

func newDrag(kind dragKind, layers []layer.Layer, ids []string, pointer geometry.Point2D) *Drag {
	d := &Drag{kind: kind, start: pointer, origins: make(map[string]layer.Layer)}
	for _, l := range layer.Filter(layers, ids) {
		if l.Locked {
			continue
		}
		d.origins[l.ID] = l.Clone()
		d.ids = append(d.ids, l.ID)
	}
	return d
}

// BeginMove starts moving the selected unlocked layers.
func BeginMove(layers []layer.Layer, ids []string, pointer geometry.Point2D) *Drag {
	return newDrag(dragMove, layers, ids, pointer)
}

// BeginResize starts resizing one layer from handle.
func BeginResize(layers []layer.Layer, id string, handle Handle, pointer geometry.Point2D) *Drag {
	d := newDrag(dragResize, layers, []string{id}, pointer)
	d.handle = handle
	return d
}

// BeginRotate starts rotating one layer about its center.
func BeginRotate(layers []layer.Layer, id string, pointer geometry.Point2D) *Drag {
	d := newDrag(dragRotate, layers, []string{id}, pointer)
	d.handle = HandleRotate
	return d
}

// WithSnapping enables smart guides against the non-moving layers in
// layers for move drags.
func (d *Drag) WithSnapping(layers []layer.Layer, opts SnapOptions) *Drag {
	d.snap = &opts
	for _, l := range layers {
		if _, moving := d.origins[l.ID]; moving || !l.Visible {
			continue
		}
		d.anchor = append(d.anchor, l.RotatedBounds())
	}
	return d
}

// Active reports whether the drag affects any layer.
func (d *Drag) Active() bool {
	return len(d.ids) > 0
}

// IDs returns the ids the drag transforms.
func (d *Drag) IDs() []string {
	return append([]string(nil), d.ids...)
}

// Update returns layers with the dragged layers transformed for pointer.
func (d *Drag) Update(layers []layer.Layer, pointer geometry.Point2D, mods Modifiers) []layer.Layer {
	out := layer.CloneList(layers)
	if !d.Active() {
		return out
	}
	switch d.kind {
	case dragMove:
		d.move(out, pointer)
	case dragResize:
		d.resize(out, pointer, mods)
	case dragRotate:
		d.rotate(out, pointer, mods)
	}
	return out
}

func (d *Drag) move(out []layer.Layer, pointer geometry.Point2D) {
	delta := pointer.Sub(d.start)
	d.Guides = nil
	if d.snap != nil {
		var boxes []layer.Layer
		for _, id := range d.ids {
			boxes = append(boxes, d.origins[id])
		}
		box, _ := layer.BoundingBoxOf(boxes)
		moved := box.Translate(delta.X, delta.Y)
		snapped, guides := Snap(moved, d.anchor, *d.snap)
		delta = delta.Add(snapped.TopLeft().Sub(moved.TopLeft()))
		d.Guides = guides
	}
	for i := range out {
		o, ok := d.origins[out[i].ID]
		if !ok {
			continue
		}
		out[i].X = o.X + delta.X
		out[i].Y = o.Y + delta.Y
	}
}

func (d *Drag) resize(out []layer.Layer, pointer geometry.Point2D, mods Modifiers) {
	id := d.ids[0]
	i := layer.IndexOf(out, id)
	if i < 0 {
		return
	}
	o := d.origins[id]
	theta := o.Rotation * math.Pi / 180

	// Pointer movement expressed in the layer's unrotated frame.
	local := geometry.Rotation(-theta).Apply(pointer.Sub(d.start))
	sx, sy := d.handle.signs()

	w := math.Max(MinSize, o.Width+sx*local.X)
	h := math.Max(MinSize, o.Height+sy*local.Y)
	if mods.Shift && d.handle.Corner() {
		ratio := math.Max(w/o.Width, h/o.Height)
		w = math.Max(MinSize, o.Width*ratio)
		h = math.Max(MinSize, o.Height*ratio)
	}
	if sx == 0 {
		w = o.Width
	}
	if sy == 0 {
		h = o.Height
	}

	// Keep the opposite grip fixed in canvas space.
	rot := geometry.Rotation(theta)
	c0 := o.Center()
	anchorWorld := c0.Add(rot.Apply(geometry.Point2D{X: -sx * o.Width / 2, Y: -sy * o.Height / 2}))
	c1 := anchorWorld.Sub(rot.Apply(geometry.Point2D{X: -sx * w / 2, Y: -sy * h / 2}))

	out[i].Width = w
	out[i].Height = h
	out[i].X = c1.X - w/2
	out[i].Y = c1.Y - h/2
}

func (d *Drag) rotate(out []layer.Layer, pointer geometry.Point2D, mods Modifiers) {
	id := d.ids[0]
	i := layer.IndexOf(out, id)
	if i < 0 {
		return
	}
	o := d.origins[id]
	c := o.Center()
	a0 := math.Atan2(d.start.Y-c.Y, d.start.X-c.X)
	a1 := math.Atan2(pointer.Y-c.Y, pointer.X-c.X)
	deg := o.Rotation + (a1-a0)*180/math.Pi
	if mods.Shift {
		deg = math.Round(deg/RotateSnap) * RotateSnap
	}
	out[i].Rotation = normalizeDegrees(deg)
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// HandleAt returns the handle of the single-layer box under p, using a hit
// radius in canvas units. The rotate grip sits above the top edge.
func HandleAt(l layer.Layer, p geometry.Point2D, radius, rotateOffset float64) Handle {
	theta := l.Rotation * math.Pi / 180
	local := geometry.RotationAbout(l.Center(), -theta).Apply(p)
	b := l.Bounds()
	cx, cy := b.Center().X, b.Center().Y

	// Corners win ties over edges, edges over the rotate grip.
	points := []struct {
		h  Handle
		at geometry.Point2D
	}{
		{HandleNW, geometry.Point2D{X: b.X, Y: b.Y}},
		{HandleNE, geometry.Point2D{X: b.Right(), Y: b.Y}},
		{HandleSE, geometry.Point2D{X: b.Right(), Y: b.Bottom()}},
		{HandleSW, geometry.Point2D{X: b.X, Y: b.Bottom()}},
		{HandleN, geometry.Point2D{X: cx, Y: b.Y}},
		{HandleE, geometry.Point2D{X: b.Right(), Y: cy}},
		{HandleS, geometry.Point2D{X: cx, Y: b.Bottom()}},
		{HandleW, geometry.Point2D{X: b.X, Y: cy}},
		{HandleRotate, geometry.Point2D{X: cx, Y: b.Y - rotateOffset}},
	}
	best, bestDist := HandleNone, radius
	for _, c := range points {
		dist := c.at.Distance(local)
		if dist < bestDist || best == HandleNone && dist <= radius {
			best, bestDist = c.h, dist
		}
	}
	return best
}
