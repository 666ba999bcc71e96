package canvas

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"layer-composer/internal/app"
	"layer-composer/internal/layer"
	"layer-composer/internal/selection"
	"layer-composer/pkg/colorutil"
	"layer-composer/pkg/geometry"
)

var (
	selectionColor = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}
	handleFill     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	marqueeColor   = color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xcc}
	labelFg        = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	labelBg        = color.NRGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xe0}
)

// Grid lines closer than this many screen pixels are skipped.
const minGridSpacing = 6.0

const handleSize = 7

// drawOverlays draws grid, selection, guides and the active rubber band in
// screen space.
func (cc *ComposerCanvas) drawOverlays(output *image.NRGBA) {
	settings := cc.session.Settings()
	if settings.Grid.Visible {
		cc.drawGrid(output, settings.Grid.Size, colorutil.MustParse(settings.Grid.Color, workspaceColor))
	}

	selected := cc.session.Selected()
	for _, l := range selected {
		cc.drawOutline(output, l)
	}
	if len(selected) == 1 && !selected[0].Locked {
		cc.drawHandles(output, selected[0])
	}
	if len(selected) > 1 {
		var rects []geometry.Rect
		for _, l := range selected {
			rects = append(rects, l.RotatedBounds())
		}
		if box, ok := geometry.UnionAll(rects); ok {
			drawDashedRect(output, cc.screenRect(box), selectionColor)
		}
	}

	if settings.Guides.Enabled {
		guideColor := colorutil.MustParse(settings.Guides.Color, selectionColor)
		for _, g := range cc.session.Guides() {
			cc.drawGuide(output, g, guideColor)
		}
	}

	switch cc.gesture {
	case gestureMarquee, gestureShape:
		r := cc.dragRect()
		drawDashedRect(output, cc.screenRect(r), marqueeColor)
		if cc.gesture == gestureShape {
			cc.drawDimensions(output, r)
		}
	case gestureTransform:
		if len(selected) == 1 {
			cc.drawDimensions(output, selected[0].Bounds())
		}
	}
}

func (cc *ComposerCanvas) screen(p geometry.Point2D) image.Point {
	s := cc.session.Viewport().CanvasToScreen(p)
	return image.Pt(int(math.Round(s.X)), int(math.Round(s.Y)))
}

func (cc *ComposerCanvas) screenRect(r geometry.Rect) image.Rectangle {
	return image.Rectangle{Min: cc.screen(r.TopLeft()), Max: cc.screen(r.BottomRight())}.Canon()
}

// drawGrid draws grid lines over the visible part of the canvas.
func (cc *ComposerCanvas) drawGrid(output *image.NRGBA, size float64, col color.NRGBA) {
	vp := cc.session.Viewport()
	scale := vp.Scale()
	if size <= 0 || size*scale < minGridSpacing {
		return
	}
	b := output.Bounds()
	tl := vp.ScreenToCanvas(geometry.Point2D{})
	br := vp.ScreenToCanvas(geometry.Point2D{X: float64(b.Dx()), Y: float64(b.Dy())})

	for x := math.Floor(tl.X/size) * size; x <= br.X; x += size {
		sx := cc.screen(geometry.Point2D{X: x}).X
		drawLine(output, sx, b.Min.Y, sx, b.Max.Y-1, col, 1)
	}
	for y := math.Floor(tl.Y/size) * size; y <= br.Y; y += size {
		sy := cc.screen(geometry.Point2D{Y: y}).Y
		drawLine(output, b.Min.X, sy, b.Max.X-1, sy, col, 1)
	}
}

// drawOutline traces the rotated box of l.
func (cc *ComposerCanvas) drawOutline(output *image.NRGBA, l layer.Layer) {
	corners := geometry.RotatedCorners(l.Bounds(), l.Rotation)
	for i := range corners {
		a := cc.screen(corners[i])
		b := cc.screen(corners[(i+1)%4])
		drawLine(output, a.X, a.Y, b.X, b.Y, selectionColor, 1)
	}
}

// drawHandles draws the eight resize grips and the rotate grip.
func (cc *ComposerCanvas) drawHandles(output *image.NRGBA, l layer.Layer) {
	scale := cc.session.Viewport().Scale()
	b := l.Bounds()
	c := b.Center()
	rot := geometry.RotationAbout(c, l.Rotation*math.Pi/180)

	grips := []geometry.Point2D{
		{X: b.X, Y: b.Y}, {X: c.X, Y: b.Y}, {X: b.Right(), Y: b.Y},
		{X: b.Right(), Y: c.Y}, {X: b.Right(), Y: b.Bottom()},
		{X: c.X, Y: b.Bottom()}, {X: b.X, Y: b.Bottom()}, {X: b.X, Y: c.Y},
	}
	for _, g := range grips {
		drawGrip(output, cc.screen(rot.Apply(g)))
	}

	top := cc.screen(rot.Apply(geometry.Point2D{X: c.X, Y: b.Y}))
	knob := cc.screen(rot.Apply(geometry.Point2D{X: c.X, Y: b.Y - app.RotateHandleOffset/scale}))
	drawLine(output, top.X, top.Y, knob.X, knob.Y, selectionColor, 1)
	drawGrip(output, knob)
}

func drawGrip(output *image.NRGBA, p image.Point) {
	half := handleSize / 2
	r := image.Rect(p.X-half, p.Y-half, p.X+half+1, p.Y+half+1)
	fillRect(output, r, selectionColor)
	fillRect(output, r.Inset(1), handleFill)
}

// drawGuide draws one smart guide across its extent.
func (cc *ComposerCanvas) drawGuide(output *image.NRGBA, g selection.GuideLine, col color.NRGBA) {
	var a, b image.Point
	if g.Orientation == selection.GuideVertical {
		a = cc.screen(geometry.Point2D{X: g.Position, Y: g.From})
		b = cc.screen(geometry.Point2D{X: g.Position, Y: g.To})
	} else {
		a = cc.screen(geometry.Point2D{X: g.From, Y: g.Position})
		b = cc.screen(geometry.Point2D{X: g.To, Y: g.Position})
	}
	drawLine(output, a.X, a.Y, b.X, b.Y, col, 1)
}

// drawDimensions puts a W x H badge under r.
func (cc *ComposerCanvas) drawDimensions(output *image.NRGBA, r geometry.Rect) {
	sr := cc.screenRect(r)
	label := fmt.Sprintf("%dx%d", int(math.Round(r.Width)), int(math.Round(r.Height)))
	drawLabel(output, label, sr.Min.X, sr.Max.Y+6, labelFg, labelBg, 2)
}
