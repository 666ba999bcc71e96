// Package canvas provides drawing primitives for the composer canvas.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// symbolPatterns covers the few non-digit glyphs dimension badges need.
var symbolPatterns = map[rune][5]uint8{
	'X': {0b000, 0b101, 0b010, 0b101, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'%': {0b101, 0b001, 0b010, 0b100, 0b101},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	if ch == 'x' {
		ch = 'X'
	}
	if pattern, ok := symbolPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// fillRect paints r with c.
func fillRect(output *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(output, r.Intersect(output.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// blendOver composites src onto output with source-over.
func blendOver(output, src *image.NRGBA) {
	draw.Draw(output, output.Bounds(), src, image.Point{}, draw.Over)
}

// setBlend draws one pixel with alpha blending.
func setBlend(output *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}).In(output.Bounds()) {
		return
	}
	if c.A == 255 {
		output.SetNRGBA(x, y, c)
		return
	}
	d := output.NRGBAAt(x, y)
	a := float64(c.A) / 255
	mix := func(s, b uint8) uint8 { return uint8(float64(s)*a + float64(b)*(1-a) + 0.5) }
	output.SetNRGBA(x, y, color.NRGBA{mix(c.R, d.R), mix(c.G, d.G), mix(c.B, d.B), 255})
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.NRGBA, x1, y1, x2, y2 int, col color.NRGBA, thickness int) {
	drawLinePattern(output, x1, y1, x2, y2, col, thickness, 0)
}

// drawDashedLine draws a line whose pixels alternate on and off every dash
// steps.
func drawDashedLine(output *image.NRGBA, x1, y1, x2, y2 int, col color.NRGBA, dash int) {
	drawLinePattern(output, x1, y1, x2, y2, col, 1, dash)
}

func drawLinePattern(output *image.NRGBA, x1, y1, x2, y2 int, col color.NRGBA, thickness, dash int) {
	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy
	for step := 0; ; step++ {
		if dash <= 0 || (step/dash)%2 == 0 {
			// Draw thick point
			for t := -thickness / 2; t <= thickness/2; t++ {
				for s := -thickness / 2; s <= thickness/2; s++ {
					setBlend(output, x1+s, y1+t, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// drawDashedRect draws a rubber-band rectangle outline.
func drawDashedRect(output *image.NRGBA, r image.Rectangle, col color.NRGBA) {
	x1, y1, x2, y2 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	drawDashedLine(output, x1, y1, x2, y1, col, 4)
	drawDashedLine(output, x2, y1, x2, y2, col, 4)
	drawDashedLine(output, x2, y2, x1, y2, col, 4)
	drawDashedLine(output, x1, y2, x1, y1, col, 4)
}

// drawLabel draws label on a filled badge whose top-left is (x, y).
func drawLabel(output *image.NRGBA, label string, x, y int, fg, bg color.NRGBA, scale int) {
	if scale < 1 {
		scale = 1
	}
	charWidth := 3 * scale
	charHeight := 5 * scale
	spacing := scale
	n := len([]rune(label))
	labelWidth := n*charWidth + (n-1)*spacing
	pad := 2 * scale
	fillRect(output, image.Rect(x, y, x+labelWidth+2*pad, y+charHeight+2*pad), bg)

	i := 0
	for _, ch := range label {
		pattern := getCharPattern(ch)
		charX := x + pad + i*(charWidth+spacing)
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if (pattern[row] & (1 << (2 - c))) == 0 {
					continue
				}
				// Draw a scaled pixel block
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						setBlend(output, charX+c*scale+dx, y+pad+row*scale+dy, fg)
					}
				}
			}
		}
		i++
	}
}
