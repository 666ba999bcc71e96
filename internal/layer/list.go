package layer

import (
	"layer-composer/pkg/geometry"
)

// CloneList deep-copies a layer list.
func CloneList(layers []Layer) []Layer {
	if layers == nil {
		return nil
	}
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return out
}

// ListEqual reports structural equality of two lists, order included.
func ListEqual(a, b []Layer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IndexOf returns the position of id in layers, or -1.
func IndexOf(layers []Layer, id string) int {
	for i, l := range layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the layer with id.
func Find(layers []Layer, id string) (Layer, bool) {
	if i := IndexOf(layers, id); i >= 0 {
		return layers[i], true
	}
	return Layer{}, false
}

// Filter returns the layers whose ids are in ids, keeping list order.
func Filter(layers []Layer, ids []string) []Layer {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []Layer
	for _, l := range layers {
		if _, ok := set[l.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}

// BoundingBoxOf returns the smallest axis-aligned rectangle enclosing every
// layer's rotated bounds. It returns false for an empty input.
func BoundingBoxOf(layers []Layer) (geometry.Rect, bool) {
	if len(layers) == 0 {
		return geometry.Rect{}, false
	}
	rects := make([]geometry.Rect, len(layers))
	for i, l := range layers {
		rects[i] = l.RotatedBounds()
	}
	return geometry.UnionAll(rects)
}

// TopmostAt returns the id of the first visible layer (index 0 is topmost)
// containing p.
func TopmostAt(layers []Layer, p geometry.Point2D) (string, bool) {
	for _, l := range layers {
		if l.Visible && l.Contains(p) {
			return l.ID, true
		}
	}
	return "", false
}

// Intersecting returns the ids of visible layers whose rotated bounds
// intersect r, in list order.
func Intersecting(layers []Layer, r geometry.Rect) []string {
	var ids []string
	for _, l := range layers {
		if l.Visible && l.RotatedBounds().Intersects(r) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
