package selection

import (
	"sort"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Axis selects the horizontal or vertical direction.
type Axis int

const (
	Horizontal Axis = iota
	Vertical
)

// AlignMode names an alignment operation.
type AlignMode int

const (
	AlignLeft AlignMode = iota
	AlignCenter
	AlignRight
	AlignTop
	AlignMiddle
	AlignBottom
)

// DuplicateOffset is the displacement applied to duplicated layers.
var DuplicateOffset = geometry.Point2D{X: 20, Y: 20}

// DefaultScaleGap is the fixed gap used by DistributeAndScale.
const DefaultScaleGap = 20.0

func idSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// selected returns the indices of selected layers in list order.
func selected(layers []layer.Layer, ids []string) []int {
	set := idSet(ids)
	var idx []int
	for i, l := range layers {
		if set[l.ID] {
			idx = append(idx, i)
		}
	}
	return idx
}

// ResizeToDimension rescales every selected layer uniformly so its width
// (Horizontal) or height (Vertical) equals value, keeping its top-left.
func ResizeToDimension(layers []layer.Layer, ids []string, axis Axis, value float64) []layer.Layer {
	out := layer.CloneList(layers)
	if value <= 0 {
		return out
	}
	for _, i := range selected(out, ids) {
		l := &out[i]
		var ratio float64
		if axis == Horizontal {
			ratio = value / l.Width
		} else {
			ratio = value / l.Height
		}
		l.Width *= ratio
		l.Height *= ratio
	}
	return out
}

// Align moves each selected layer so its rotated bounds line up with the
// matching edge or center of the selection bounding box.
func Align(layers []layer.Layer, ids []string, mode AlignMode) []layer.Layer {
	out := layer.CloneList(layers)
	idx := selected(out, ids)
	if len(idx) == 0 {
		return out
	}
	box, _ := layer.BoundingBoxOf(layer.Filter(out, ids))

	for _, i := range idx {
		l := &out[i]
		rb := l.RotatedBounds()
		switch mode {
		case AlignLeft:
			l.X += box.X - rb.X
		case AlignCenter:
			l.X += box.Center().X - rb.Center().X
		case AlignRight:
			l.X += box.Right() - rb.Right()
		case AlignTop:
			l.Y += box.Y - rb.Y
		case AlignMiddle:
			l.Y += box.Center().Y - rb.Center().Y
		case AlignBottom:
			l.Y += box.Bottom() - rb.Bottom()
		}
	}
	return out
}

// Distribute spaces selected layers evenly along axis inside the selection
// bounding box. It needs at least two layers.
func Distribute(layers []layer.Layer, ids []string, axis Axis) []layer.Layer {
	out := layer.CloneList(layers)
	idx := selected(out, ids)
	if len(idx) < 2 {
		return out
	}
	box, _ := layer.BoundingBoxOf(layer.Filter(out, ids))

	pos := func(i int) float64 {
		rb := out[i].RotatedBounds()
		if axis == Horizontal {
			return rb.X
		}
		return rb.Y
	}
	extent := func(i int) float64 {
		rb := out[i].RotatedBounds()
		if axis == Horizontal {
			return rb.Width
		}
		return rb.Height
	}
	sort.SliceStable(idx, func(a, b int) bool { return pos(idx[a]) < pos(idx[b]) })

	extents := make([]float64, len(idx))
	for k, i := range idx {
		extents[k] = extent(i)
	}
	span := box.Width
	cursor := box.X
	if axis == Vertical {
		span = box.Height
		cursor = box.Y
	}
	gap := (span - floats.Sum(extents)) / float64(len(idx)-1)

	for k, i := range idx {
		shift := cursor - pos(i)
		if axis == Horizontal {
			out[i].X += shift
		} else {
			out[i].Y += shift
		}
		cursor += extents[k] + gap
	}
	return out
}

// DistributeAndScale normalizes selected layers to the average height
// (Horizontal) or width (Vertical) of the selection, preserving each layer's
// aspect ratio, then lays them out from the selection's leading edge with a
// fixed gap. The cross axis is aligned to the selection's leading edge.
func DistributeAndScale(layers []layer.Layer, ids []string, axis Axis, gap float64) []layer.Layer {
	out := layer.CloneList(layers)
	idx := selected(out, ids)
	if len(idx) < 2 {
		return out
	}
	box, _ := layer.BoundingBoxOf(layer.Filter(out, ids))

	dims := make([]float64, len(idx))
	for k, i := range idx {
		if axis == Horizontal {
			dims[k] = out[i].Height
		} else {
			dims[k] = out[i].Width
		}
	}
	common := stat.Mean(dims, nil)

	if axis == Horizontal {
		sort.SliceStable(idx, func(a, b int) bool { return out[idx[a]].X < out[idx[b]].X })
	} else {
		sort.SliceStable(idx, func(a, b int) bool { return out[idx[a]].Y < out[idx[b]].Y })
	}

	cursor := box.X
	if axis == Vertical {
		cursor = box.Y
	}
	for _, i := range idx {
		l := &out[i]
		if axis == Horizontal {
			l.Width = l.Width * common / l.Height
			l.Height = common
			l.X = cursor
			l.Y = box.Y
			cursor += l.Width + gap
		} else {
			l.Height = l.Height * common / l.Width
			l.Width = common
			l.Y = cursor
			l.X = box.X
			cursor += l.Height + gap
		}
	}
	return out
}

// Duplicate inserts a copy of every selected layer directly above its
// original, offset by DuplicateOffset. It returns the new list and the ids of
// the copies in list order.
func Duplicate(layers []layer.Layer, ids []string) ([]layer.Layer, []string) {
	set := idSet(ids)
	out := make([]layer.Layer, 0, len(layers)+len(ids))
	var created []string
	for _, l := range layers {
		if set[l.ID] {
			dup := l.Clone()
			dup.ID = layer.NewID()
			dup.X += DuplicateOffset.X
			dup.Y += DuplicateOffset.Y
			out = append(out, dup)
			created = append(created, dup.ID)
		}
		out = append(out, l.Clone())
	}
	return out, created
}

// Direction of a z-order move. Up is toward index 0, the topmost layer.
type Direction int

const (
	Up Direction = iota
	Down
)

// Reorder moves every selected layer one step in dir without passing another
// selected layer, so contiguous selections move as a block. It reports
// whether anything moved.
func Reorder(layers []layer.Layer, ids []string, dir Direction) ([]layer.Layer, bool) {
	out := layer.CloneList(layers)
	set := idSet(ids)
	moved := false
	if dir == Up {
		for i := 1; i < len(out); i++ {
			if set[out[i].ID] && !set[out[i-1].ID] {
				out[i], out[i-1] = out[i-1], out[i]
				moved = true
			}
		}
	} else {
		for i := len(out) - 2; i >= 0; i-- {
			if set[out[i].ID] && !set[out[i+1].ID] {
				out[i], out[i+1] = out[i+1], out[i]
				moved = true
			}
		}
	}
	return out, moved
}

// BringToFront moves the selected layers to the top, keeping their order.
func BringToFront(layers []layer.Layer, ids []string) []layer.Layer {
	set := idSet(ids)
	var front, rest []layer.Layer
	for _, l := range layers {
		if set[l.ID] {
			front = append(front, l.Clone())
		} else {
			rest = append(rest, l.Clone())
		}
	}
	return append(front, rest...)
}

// SendToBack moves the selected layers to the bottom, keeping their order.
func SendToBack(layers []layer.Layer, ids []string) []layer.Layer {
	set := idSet(ids)
	var back, rest []layer.Layer
	for _, l := range layers {
		if set[l.ID] {
			back = append(back, l.Clone())
		} else {
			rest = append(rest, l.Clone())
		}
	}
	return append(rest, back...)
}

// Delete removes every selected layer.
func Delete(layers []layer.Layer, ids []string) []layer.Layer {
	set := idSet(ids)
	out := make([]layer.Layer, 0, len(layers))
	for _, l := range layers {
		if !set[l.ID] {
			out = append(out, l.Clone())
		}
	}
	return out
}

// Nudge moves selected unlocked layers by (dx, dy).
func Nudge(layers []layer.Layer, ids []string, dx, dy float64) []layer.Layer {
	out := layer.CloneList(layers)
	for _, i := range selected(out, ids) {
		if out[i].Locked {
			continue
		}
		out[i].X += dx
		out[i].Y += dy
	}
	return out
}

// Update applies fn to every selected layer.
func Update(layers []layer.Layer, ids []string, fn func(*layer.Layer)) []layer.Layer {
	out := layer.CloneList(layers)
	for _, i := range selected(out, ids) {
		fn(&out[i])
	}
	return out
}
