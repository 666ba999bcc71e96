// Package viewport tracks pan and zoom of the canvas view and the active tool.
package viewport

import (
	"math"
	"sync"

	"layer-composer/pkg/geometry"
)

const (
	MinScale = 0.1
	MaxScale = 10.0
	ZoomStep = 1.25
)

// Tool represents the current interaction tool.
type Tool int

const (
	ToolSelect Tool = iota
	ToolHand
	ToolRectangle
	ToolEllipse
)

func (t Tool) String() string {
	switch t {
	case ToolSelect:
		return "select"
	case ToolHand:
		return "hand"
	case ToolRectangle:
		return "rectangle"
	case ToolEllipse:
		return "ellipse"
	default:
		return "unknown"
	}
}

// State is a snapshot handed to observers.
type State struct {
	Pan   geometry.Point2D
	Scale float64
	Tool  Tool // effective tool, hand while space is held
}

// Controller owns pan, scale and tool selection.
type Controller struct {
	mu sync.RWMutex

	pan   geometry.Point2D
	scale float64

	tool      Tool
	spaceHeld bool

	panning       bool
	panStart      geometry.Point2D
	pointerOrigin geometry.Point2D

	observers []func(State)
}

// New returns a controller at 100% with no pan and the select tool.
func New() *Controller {
	return &Controller{scale: 1, tool: ToolSelect}
}

// Observe registers fn to be called after every change.
func (c *Controller) Observe(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.RLock()
	st := c.stateLocked()
	obs := c.observers
	c.mu.RUnlock()
	for _, fn := range obs {
		fn(st)
	}
}

func (c *Controller) stateLocked() State {
	return State{Pan: c.pan, Scale: c.scale, Tool: c.effectiveLocked()}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// Pan returns the pan offset in screen units.
func (c *Controller) Pan() geometry.Point2D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pan
}

// Scale returns the zoom factor.
func (c *Controller) Scale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scale
}

// ZoomPercent returns the scale as a rounded percentage.
func (c *Controller) ZoomPercent() int {
	return int(math.Round(c.Scale() * 100))
}

// ScreenToCanvas maps a pointer position to canvas space.
func (c *Controller) ScreenToCanvas(p geometry.Point2D) geometry.Point2D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return p.Sub(c.pan).Div(c.scale)
}

// CanvasToScreen maps a canvas position to the screen.
func (c *Controller) CanvasToScreen(p geometry.Point2D) geometry.Point2D {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return p.Scale(c.scale).Add(c.pan)
}

// SetPan moves the view.
func (c *Controller) SetPan(p geometry.Point2D) {
	c.mu.Lock()
	c.pan = p
	c.mu.Unlock()
	c.notify()
}

// SetScale zooms about the screen origin, clamped to [MinScale, MaxScale].
func (c *Controller) SetScale(s float64) {
	c.mu.Lock()
	c.scale = clampScale(s)
	c.mu.Unlock()
	c.notify()
}

// ZoomAt multiplies the scale by factor keeping the canvas point under
// screen position anchor fixed.
func (c *Controller) ZoomAt(anchor geometry.Point2D, factor float64) {
	c.mu.Lock()
	canvasPt := anchor.Sub(c.pan).Div(c.scale)
	c.scale = clampScale(c.scale * factor)
	c.pan = anchor.Sub(canvasPt.Scale(c.scale))
	c.mu.Unlock()
	c.notify()
}

// ZoomIn zooms one step about anchor.
func (c *Controller) ZoomIn(anchor geometry.Point2D) { c.ZoomAt(anchor, ZoomStep) }

// ZoomOut zooms one step out about anchor.
func (c *Controller) ZoomOut(anchor geometry.Point2D) { c.ZoomAt(anchor, 1/ZoomStep) }

// Fit scales and pans so r fills a view of the given size with a margin.
func (c *Controller) Fit(r geometry.Rect, view geometry.Size, margin float64) {
	if r.Empty() || view.Width <= 0 || view.Height <= 0 {
		return
	}
	availW := math.Max(1, view.Width-2*margin)
	availH := math.Max(1, view.Height-2*margin)
	s := clampScale(math.Min(availW/r.Width, availH/r.Height))

	c.mu.Lock()
	c.scale = s
	c.pan = geometry.Point2D{
		X: (view.Width-r.Width*s)/2 - r.X*s,
		Y: (view.Height-r.Height*s)/2 - r.Y*s,
	}
	c.mu.Unlock()
	c.notify()
}

// Tool returns the selected tool, ignoring the space-bar override.
func (c *Controller) Tool() Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tool
}

// EffectiveTool returns the tool that pointer input should use.
func (c *Controller) EffectiveTool() Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.effectiveLocked()
}

func (c *Controller) effectiveLocked() Tool {
	if c.spaceHeld {
		return ToolHand
	}
	return c.tool
}

// SetTool selects a tool.
func (c *Controller) SetTool(t Tool) {
	c.mu.Lock()
	c.tool = t
	c.mu.Unlock()
	c.notify()
}

// SpaceDown starts hold-to-pan. Repeated key events are ignored.
func (c *Controller) SpaceDown() {
	c.mu.Lock()
	if c.spaceHeld {
		c.mu.Unlock()
		return
	}
	c.spaceHeld = true
	c.mu.Unlock()
	c.notify()
}

// SpaceUp ends hold-to-pan and restores the selected tool.
func (c *Controller) SpaceUp() {
	c.mu.Lock()
	if !c.spaceHeld {
		c.mu.Unlock()
		return
	}
	c.spaceHeld = false
	c.mu.Unlock()
	c.notify()
}

// SpaceHeld reports whether hold-to-pan is active.
func (c *Controller) SpaceHeld() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spaceHeld
}

// BeginPan records the pan and pointer position at the start of a drag.
func (c *Controller) BeginPan(pointer geometry.Point2D) {
	c.mu.Lock()
	c.panning = true
	c.panStart = c.pan
	c.pointerOrigin = pointer
	c.mu.Unlock()
}

// UpdatePan moves the view with the pointer. It is a no-op outside a pan.
func (c *Controller) UpdatePan(pointer geometry.Point2D) {
	c.mu.Lock()
	if !c.panning {
		c.mu.Unlock()
		return
	}
	c.pan = c.panStart.Add(pointer.Sub(c.pointerOrigin))
	c.mu.Unlock()
	c.notify()
}

// EndPan finishes a drag-to-pan.
func (c *Controller) EndPan() {
	c.mu.Lock()
	c.panning = false
	c.mu.Unlock()
}

// Panning reports whether a drag-to-pan is in progress.
func (c *Controller) Panning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.panning
}

func clampScale(s float64) float64 {
	if math.IsNaN(s) || s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
