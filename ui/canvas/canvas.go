// Package canvas provides the composer canvas widget: the flattened layers
// under pan and zoom, with selection, handles, grid and guides on top.
package canvas

import (
	"context"
	"image"
	"image/color"
	"math"

	"layer-composer/internal/app"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/selection"
	"layer-composer/internal/viewport"
	"layer-composer/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// pointer gesture in progress
type gesture int

const (
	gestureNone gesture = iota
	gesturePan
	gestureTransform
	gestureMarquee
	gestureShape
)

// ComposerCanvas displays a session and routes pointer and key input to it.
type ComposerCanvas struct {
	widget.BaseWidget

	session *app.Session
	raster  *fynecanvas.Raster

	// Interaction state
	gesture   gesture
	dragStart fyne.Position
	dragEnd   fyne.Position
	shift     bool

	// Last rendered output for sampling
	lastOutput *image.NRGBA

	// Callbacks
	onEditText func(id string)         // double-click on a text layer
	onPointer  func(p geometry.Point2D) // pointer position in canvas space
}

// NewComposerCanvas creates a canvas bound to session.
func NewComposerCanvas(session *app.Session) *ComposerCanvas {
	cc := &ComposerCanvas{session: session}

	// Create the raster for drawing
	cc.raster = fynecanvas.NewRaster(cc.draw)
	cc.raster.ScaleMode = fynecanvas.ImageScaleSmooth

	cc.ExtendBaseWidget(cc)
	return cc
}

// OnEditText sets the callback for double-clicks on text layers.
func (cc *ComposerCanvas) OnEditText(callback func(id string)) {
	cc.onEditText = callback
}

// OnPointer sets a callback receiving the canvas position under the
// pointer.
func (cc *ComposerCanvas) OnPointer(callback func(p geometry.Point2D)) {
	cc.onPointer = callback
}

// GetRenderedOutput returns the last rendered canvas output.
func (cc *ComposerCanvas) GetRenderedOutput() *image.NRGBA {
	return cc.lastOutput
}

// Refresh redraws the canvas.
func (cc *ComposerCanvas) Refresh() {
	cc.raster.Refresh()
}

// Resize records the new view size with the session.
func (cc *ComposerCanvas) Resize(size fyne.Size) {
	cc.BaseWidget.Resize(size)
	cc.session.SetViewSize(geometry.NewSize(float64(size.Width), float64(size.Height)))
}

func toPoint(p fyne.Position) geometry.Point2D {
	return geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

func (cc *ComposerCanvas) canvasPoint(p fyne.Position) geometry.Point2D {
	return cc.session.Viewport().ScreenToCanvas(toPoint(p))
}

// Tapped selects the topmost layer under the pointer.
func (cc *ComposerCanvas) Tapped(ev *fyne.PointEvent) {
	if c := fyne.CurrentApp(); c != nil {
		if d := c.Driver(); d != nil {
			if cv := d.CanvasForObject(cc); cv != nil {
				cv.Focus(cc)
			}
		}
	}
	if cc.session.Viewport().EffectiveTool() != viewport.ToolSelect {
		return
	}
	cc.session.SelectAt(cc.canvasPoint(ev.Position), cc.shift)
}

// DoubleTapped opens the text editor for text layers.
func (cc *ComposerCanvas) DoubleTapped(ev *fyne.PointEvent) {
	p := cc.canvasPoint(ev.Position)
	id, ok := layer.TopmostAt(cc.session.Layers(), p)
	if !ok {
		return
	}
	if l, ok := cc.session.Layer(id); ok && l.Kind == layer.KindText && cc.onEditText != nil {
		cc.session.Select(id, false)
		cc.onEditText(id)
	}
}

// Dragged dispatches on the effective tool when a drag starts and streams
// updates afterwards.
func (cc *ComposerCanvas) Dragged(ev *fyne.DragEvent) {
	vp := cc.session.Viewport()
	if cc.gesture == gestureNone {
		cc.dragStart = ev.Position.Subtract(ev.Dragged)
		switch vp.EffectiveTool() {
		case viewport.ToolHand:
			cc.gesture = gesturePan
			vp.BeginPan(toPoint(cc.dragStart))
		case viewport.ToolRectangle, viewport.ToolEllipse:
			cc.gesture = gestureShape
		default:
			if cc.session.BeginDrag(cc.canvasPoint(cc.dragStart), cc.shift) {
				cc.gesture = gestureTransform
			} else {
				cc.gesture = gestureMarquee
			}
		}
	}
	cc.dragEnd = ev.Position

	switch cc.gesture {
	case gesturePan:
		vp.UpdatePan(toPoint(ev.Position))
	case gestureTransform:
		cc.session.DragTo(cc.canvasPoint(ev.Position), selection.Modifiers{Shift: cc.shift})
	default:
		cc.Refresh()
	}
}

// DragEnd finishes the gesture.
func (cc *ComposerCanvas) DragEnd() {
	vp := cc.session.Viewport()
	g := cc.gesture
	cc.gesture = gestureNone

	switch g {
	case gesturePan:
		vp.EndPan()
	case gestureTransform:
		cc.session.EndDrag(cc.canvasPoint(cc.dragEnd), selection.Modifiers{Shift: cc.shift})
	case gestureMarquee:
		cc.session.SelectInRect(cc.dragRect())
	case gestureShape:
		r := cc.dragRect()
		if r.Width >= 2 && r.Height >= 2 {
			kind := layer.ShapeRectangle
			if vp.Tool() == viewport.ToolEllipse {
				kind = layer.ShapeEllipse
			}
			if _, err := cc.session.AddShape(kind, r); err != nil {
				logging.Logger().Warn("add shape failed", "err", err)
			}
			vp.SetTool(viewport.ToolSelect)
		}
	}
	cc.Refresh()
}

// dragRect returns the rubber band in canvas space.
func (cc *ComposerCanvas) dragRect() geometry.Rect {
	return geometry.RectFromPoints(cc.canvasPoint(cc.dragStart), cc.canvasPoint(cc.dragEnd))
}

// Scrolled zooms about the pointer.
func (cc *ComposerCanvas) Scrolled(ev *fyne.ScrollEvent) {
	vp := cc.session.Viewport()
	anchor := toPoint(ev.Position)
	if ev.Scrolled.DY > 0 {
		vp.ZoomIn(anchor)
	} else if ev.Scrolled.DY < 0 {
		vp.ZoomOut(anchor)
	}
}

// MouseMoved reports the canvas position under the pointer.
func (cc *ComposerCanvas) MouseMoved(ev *desktop.MouseEvent) {
	if cc.onPointer != nil {
		cc.onPointer(cc.canvasPoint(ev.Position))
	}
}

// MouseIn implements desktop.Hoverable.
func (cc *ComposerCanvas) MouseIn(*desktop.MouseEvent) {}

// MouseOut implements desktop.Hoverable.
func (cc *ComposerCanvas) MouseOut() {}

// MouseDown captures the modifier state for the next tap or drag.
func (cc *ComposerCanvas) MouseDown(ev *desktop.MouseEvent) {
	cc.shift = ev.Modifier&fyne.KeyModifierShift != 0
}

// MouseUp implements desktop.Mouseable.
func (cc *ComposerCanvas) MouseUp(*desktop.MouseEvent) {}

// FocusGained implements fyne.Focusable.
func (cc *ComposerCanvas) FocusGained() {}

// FocusLost drops held keys.
func (cc *ComposerCanvas) FocusLost() {
	cc.shift = false
	cc.session.HandleShortcut(app.Shortcut{Key: string(fyne.KeySpace), Release: true})
}

// TypedRune implements fyne.Focusable.
func (cc *ComposerCanvas) TypedRune(rune) {}

// TypedKey forwards plain key presses to the session.
func (cc *ComposerCanvas) TypedKey(ev *fyne.KeyEvent) {
	if ev.Name == fyne.KeySpace {
		return
	}
	cc.session.HandleShortcut(app.Shortcut{Key: string(ev.Name), Shift: cc.shift})
}

// KeyDown tracks space and shift.
func (cc *ComposerCanvas) KeyDown(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeySpace:
		cc.session.HandleShortcut(app.Shortcut{Key: string(ev.Name)})
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		cc.shift = true
	}
}

// KeyUp releases space and shift.
func (cc *ComposerCanvas) KeyUp(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeySpace:
		cc.session.HandleShortcut(app.Shortcut{Key: string(ev.Name), Release: true})
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		cc.shift = false
	}
}

// Cursor shows a grab hand while panning is possible.
func (cc *ComposerCanvas) Cursor() desktop.Cursor {
	switch cc.session.Viewport().EffectiveTool() {
	case viewport.ToolHand:
		return desktop.PointerCursor
	case viewport.ToolRectangle, viewport.ToolEllipse:
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

var workspaceColor = color.NRGBA{R: 0xe5, G: 0xe5, B: 0xe5, A: 0xff}

// draw is the raster drawing function. It renders in widget units and lets
// the raster scale to device pixels.
func (cc *ComposerCanvas) draw(w, h int) image.Image {
	size := cc.Size()
	vw, vh := int(math.Ceil(float64(size.Width))), int(math.Ceil(float64(size.Height)))
	if vw <= 0 || vh <= 0 {
		vw, vh = w, h
	}
	if vw <= 0 || vh <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, 1, 1))
	}

	output := image.NewNRGBA(image.Rect(0, 0, vw, vh))
	fillRect(output, output.Bounds(), workspaceColor)
	if !cc.session.IsOpen() {
		return output
	}

	rendered, err := cc.session.RenderView(context.Background(), geometry.NewSize(float64(vw), float64(vh)))
	if err != nil {
		logging.Logger().Warn("render failed", "err", err)
	} else {
		blendOver(output, rendered)
	}
	cc.lastOutput = output

	cc.drawOverlays(output)
	return output
}

// CreateRenderer implements fyne.Widget.
func (cc *ComposerCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &composerCanvasRenderer{canvas: cc}
}

type composerCanvasRenderer struct {
	canvas *ComposerCanvas
}

func (r *composerCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *composerCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 200)
}

func (r *composerCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *composerCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *composerCanvasRenderer) Destroy() {}
