package app

import (
	"fmt"

	"layer-composer/internal/layer"
	"layer-composer/internal/selection"
	"layer-composer/pkg/geometry"
)

// Default sizes of layers created from the toolbar.
const (
	DefaultTextWidth  = 480.0
	DefaultTextHeight = 80.0
	DefaultShapeSize  = 200.0
	DefaultShapeFill  = "#9ca3af"
)

// AddText adds a text layer with the default style in the middle of the
// view and selects it.
func (s *Session) AddText() (layer.Layer, error) {
	if !s.IsOpen() {
		return layer.Layer{}, ErrClosed
	}
	s.mu.RLock()
	origin := s.insertOriginLocked(geometry.NewSize(DefaultTextWidth, DefaultTextHeight))
	s.mu.RUnlock()

	l, err := layer.NewText(layer.DefaultTextContent(), geometry.NewRect(origin.X, origin.Y, DefaultTextWidth, DefaultTextHeight))
	if err != nil {
		return layer.Layer{}, s.fail("add text", err)
	}
	s.insertAndSelect([]layer.Layer{l})
	return l, nil
}

// AddShape adds a shape covering r and selects it. An empty r places a
// default-sized shape in the middle of the view.
func (s *Session) AddShape(kind layer.ShapeType, r geometry.Rect) (layer.Layer, error) {
	if !s.IsOpen() {
		return layer.Layer{}, ErrClosed
	}
	if r == (geometry.Rect{}) {
		s.mu.RLock()
		origin := s.insertOriginLocked(geometry.NewSize(DefaultShapeSize, DefaultShapeSize))
		s.mu.RUnlock()
		r = geometry.NewRect(origin.X, origin.Y, DefaultShapeSize, DefaultShapeSize)
	}
	l, err := layer.NewShape(kind, DefaultShapeFill, r)
	if err != nil {
		return layer.Layer{}, s.fail("add shape", err)
	}
	s.insertAndSelect([]layer.Layer{l})
	return l, nil
}

// UpdateLayer edits the layer with id. Non-final updates give live feedback
// during an interaction; the final one records history. An edit that leaves
// the layer invalid is rejected without changing anything.
func (s *Session) UpdateLayer(id string, fn func(*layer.Layer), final bool) error {
	return s.UpdateLayers([]string{id}, fn, final)
}

// UpdateSelected applies fn to every selected layer.
func (s *Session) UpdateSelected(fn func(*layer.Layer), final bool) error {
	return s.UpdateLayers(s.SelectedIDs(), fn, final)
}

// UpdateLayers applies fn to the layers with ids.
func (s *Session) UpdateLayers(ids []string, fn func(*layer.Layer), final bool) error {
	var verr error
	s.mu.RLock()
	for _, l := range layer.Filter(s.history.Live(), ids) {
		c := l.Clone()
		fn(&c)
		if err := c.Validate(); err != nil {
			verr = fmt.Errorf("update %s: %w", l.Name, err)
			break
		}
	}
	s.mu.RUnlock()
	if verr != nil {
		return s.fail("update layer", verr)
	}
	s.commit(final, func(live []layer.Layer) []layer.Layer {
		return selection.Update(live, ids, fn)
	})
	return nil
}

// BeginInteraction marks the start of a multi-step edit such as a slider
// drag, so its final commit is recorded as one entry.
func (s *Session) BeginInteraction() {
	s.mu.Lock()
	s.history.BeginInteraction()
	s.mu.Unlock()
}

// Undo steps back one history entry.
func (s *Session) Undo() bool {
	return s.step(func() bool { return s.history.Undo() })
}

// Redo steps forward one history entry.
func (s *Session) Redo() bool {
	return s.step(func() bool { return s.history.Redo() })
}

func (s *Session) step(fn func() bool) bool {
	s.mu.Lock()
	if s.drag != nil {
		s.mu.Unlock()
		return false
	}
	moved := fn()
	var dropped bool
	if moved {
		s.modified = true
		s.revision++
		dropped = s.retainSelectionLocked()
	}
	s.mu.Unlock()
	if moved {
		s.Emit(EventLayersChanged, nil)
	}
	if dropped {
		s.Emit(EventSelectionChanged, nil)
	}
	return moved
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanUndo()
}

// CanRedo reports whether Redo would do anything.
func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.CanRedo()
}

// SelectedIDs returns the selection, primary first.
func (s *Session) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection.IDs()
}

// Selected returns the selected layers in list order.
func (s *Session) Selected() []layer.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return layer.CloneList(layer.Filter(s.history.Live(), s.selection.IDs()))
}

func (s *Session) changeSelection(fn func(set *selection.Set)) {
	s.mu.Lock()
	before := s.selection.IDs()
	fn(s.selection)
	s.retainSelectionLocked()
	after := s.selection.IDs()
	s.mu.Unlock()
	if !sameIDs(before, after) {
		s.Emit(EventSelectionChanged, after)
	}
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Select selects id; additive toggles it within the current selection.
func (s *Session) Select(id string, additive bool) {
	s.changeSelection(func(set *selection.Set) {
		if additive {
			set.Toggle(id)
		} else {
			set.Select(id)
		}
	})
}

// SelectIDs replaces the selection.
func (s *Session) SelectIDs(ids []string) {
	s.changeSelection(func(set *selection.Set) { set.SetIDs(ids) })
}

// SelectAll selects every layer.
func (s *Session) SelectAll() {
	s.mu.RLock()
	live := s.history.Live()
	ids := make([]string, len(live))
	for i, l := range live {
		ids[i] = l.ID
	}
	s.mu.RUnlock()
	s.SelectIDs(ids)
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() {
	s.changeSelection(func(set *selection.Set) { set.Clear() })
}

// SelectAt selects the topmost layer under canvas point p. A miss without
// additive clears the selection. It reports whether a layer was hit.
func (s *Session) SelectAt(p geometry.Point2D, additive bool) bool {
	s.mu.RLock()
	id, ok := layer.TopmostAt(s.history.Live(), p)
	s.mu.RUnlock()
	switch {
	case ok:
		s.Select(id, additive)
	case !additive:
		s.ClearSelection()
	}
	return ok
}

// SelectInRect selects every visible layer intersecting r.
func (s *Session) SelectInRect(r geometry.Rect) {
	s.mu.RLock()
	ids := layer.Intersecting(s.history.Live(), r)
	s.mu.RUnlock()
	s.SelectIDs(ids)
}

// arrange commits a selection operation as one history entry.
func (s *Session) arrange(fn func(live []layer.Layer, ids []string) []layer.Layer) bool {
	ids := s.SelectedIDs()
	if len(ids) == 0 {
		return false
	}
	return s.commit(true, func(live []layer.Layer) []layer.Layer { return fn(live, ids) })
}

// Align aligns the selected layers.
func (s *Session) Align(mode selection.AlignMode) bool {
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		return selection.Align(live, ids, mode)
	})
}

// Distribute spaces the selected layers evenly along axis.
func (s *Session) Distribute(axis selection.Axis) bool {
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		return selection.Distribute(live, ids, axis)
	})
}

// DistributeAndScale lines the selected layers up along axis at a common
// size with the default gap.
func (s *Session) DistributeAndScale(axis selection.Axis) bool {
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		return selection.DistributeAndScale(live, ids, axis, selection.DefaultScaleGap)
	})
}

// ResizeToDimension sets the width (Horizontal) or height (Vertical) of the
// selected layers, keeping their aspect ratios.
func (s *Session) ResizeToDimension(axis selection.Axis, value float64) bool {
	if value <= 0 {
		return false
	}
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		return selection.ResizeToDimension(live, ids, axis, value)
	})
}

// Duplicate copies the selected layers and selects the copies.
func (s *Session) Duplicate() []string {
	var created []string
	s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		out, newIDs := selection.Duplicate(live, ids)
		created = newIDs
		return out
	})
	if len(created) > 0 {
		s.SelectIDs(created)
	}
	return created
}

// DeleteSelected removes the selected layers.
func (s *Session) DeleteSelected() bool {
	return s.arrange(selection.Delete)
}

// Reorder moves the selected layers one step up or down.
func (s *Session) Reorder(dir selection.Direction) bool {
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		out, _ := selection.Reorder(live, ids, dir)
		return out
	})
}

// BringToFront moves the selected layers to the top.
func (s *Session) BringToFront() bool {
	return s.arrange(selection.BringToFront)
}

// SendToBack moves the selected layers to the bottom.
func (s *Session) SendToBack() bool {
	return s.arrange(selection.SendToBack)
}

// Nudge moves the selected unlocked layers.
func (s *Session) Nudge(dx, dy float64) bool {
	return s.arrange(func(live []layer.Layer, ids []string) []layer.Layer {
		return selection.Nudge(live, ids, dx, dy)
	})
}

// HandleRadius is the hit radius of transform handles in screen pixels.
const HandleRadius = 6.0

// RotateHandleOffset is the screen distance of the rotate handle above a
// layer.
const RotateHandleOffset = 24.0

// BeginDrag starts a pointer interaction at canvas point p: a handle of the
// primary selection resizes or rotates it, a selected layer moves the
// selection, anything else selects the topmost layer under p first. It
// reports whether a drag started.
func (s *Session) BeginDrag(p geometry.Point2D, additive bool) bool {
	scale := s.viewport.Scale()
	s.mu.RLock()
	live := s.history.Live()
	var handle selection.Handle
	primary, hasPrimary := s.selection.Primary()
	if hasPrimary && s.selection.Len() == 1 {
		if l, ok := layer.Find(live, primary); ok && !l.Locked {
			handle = selection.HandleAt(l, p, HandleRadius/scale, RotateHandleOffset/scale)
		}
	}
	hitID, hit := layer.TopmostAt(live, p)
	hitSelected := hit && s.selection.Contains(hitID)
	s.mu.RUnlock()

	if handle == selection.HandleNone && !hitSelected {
		if !s.SelectAt(p, additive) {
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	live = s.history.Live()
	var d *selection.Drag
	switch handle {
	case selection.HandleNone:
		d = selection.BeginMove(live, s.selection.IDs(), p)
		d.WithSnapping(live, s.snapOptionsLocked(scale))
	case selection.HandleRotate:
		d = selection.BeginRotate(live, primary, p)
	default:
		d = selection.BeginResize(live, primary, handle, p)
	}
	if !d.Active() {
		return false
	}
	s.drag = d
	s.dragStart = s.history.Current()
	s.history.BeginInteraction()
	return true
}

func (s *Session) snapOptionsLocked(scale float64) selection.SnapOptions {
	opts := selection.SnapOptions{Threshold: selection.DefaultSnapThreshold / scale}
	if s.settings.Guides.Enabled {
		opts.Edges, opts.Centers = true, true
	}
	if s.settings.Grid.Snap {
		opts.GridSize = s.settings.Grid.Size
	}
	return opts
}

// Dragging reports whether a pointer interaction is in progress.
func (s *Session) Dragging() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drag != nil
}

// DragTo updates the interaction for pointer p with a non-final commit.
func (s *Session) DragTo(p geometry.Point2D, mods selection.Modifiers) {
	s.dragUpdate(p, mods, false)
}

// EndDrag finishes the interaction with one final commit.
func (s *Session) EndDrag(p geometry.Point2D, mods selection.Modifiers) {
	s.dragUpdate(p, mods, true)
}

func (s *Session) dragUpdate(p geometry.Point2D, mods selection.Modifiers, final bool) {
	s.mu.RLock()
	d := s.drag
	s.mu.RUnlock()
	if d == nil {
		return
	}
	s.commit(final, func(live []layer.Layer) []layer.Layer {
		return d.Update(live, p, mods)
	})
	s.mu.Lock()
	if final {
		s.drag = nil
		s.dragStart = nil
		s.guides = nil
	} else {
		s.guides = d.Guides
	}
	s.mu.Unlock()
}

// CancelDrag abandons the interaction and restores the list it started
// from.
func (s *Session) CancelDrag() {
	s.mu.Lock()
	if s.drag == nil {
		s.mu.Unlock()
		return
	}
	start := s.dragStart
	s.drag = nil
	s.dragStart = nil
	s.guides = nil
	s.mu.Unlock()
	s.commit(true, func([]layer.Layer) []layer.Layer { return start })
}

// Guides returns the smart guides of the drag in progress.
func (s *Session) Guides() []selection.GuideLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]selection.GuideLine(nil), s.guides...)
}
