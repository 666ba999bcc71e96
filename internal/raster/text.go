package raster

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"

	"layer-composer/internal/layer"
	"layer-composer/pkg/colorutil"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type fontKey struct {
	mono, bold, italic bool
}

var fontData = map[fontKey][]byte{
	{false, false, false}: goregular.TTF,
	{false, true, false}:  gobold.TTF,
	{false, false, true}:  goitalic.TTF,
	{false, true, true}:   gobolditalic.TTF,
	{true, false, false}:  gomono.TTF,
	{true, true, false}:   gomonobold.TTF,
	{true, false, true}:   gomonoitalic.TTF,
	{true, true, true}:    gomonobolditalic.TTF,
}

var (
	fontsMu sync.Mutex
	fonts   = map[fontKey]*opentype.Font{}
)

// IsBold reports whether a CSS-like font weight renders bold.
func IsBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	switch w {
	case "bold", "bolder":
		return true
	case "", "normal", "lighter":
		return false
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 600
}

func keyFor(t *layer.TextContent) fontKey {
	family := strings.ToLower(t.FontFamily)
	return fontKey{
		mono:   strings.Contains(family, "mono") || strings.Contains(family, "courier"),
		bold:   IsBold(t.FontWeight),
		italic: strings.EqualFold(t.FontStyle, "italic") || strings.EqualFold(t.FontStyle, "oblique"),
	}
}

// faceFor returns a new face for the content at size pixels. Faces are not
// safe for concurrent use, so only the parsed fonts are shared.
func faceFor(t *layer.TextContent, size float64) (font.Face, error) {
	k := keyFor(t)

	fontsMu.Lock()
	otf, ok := fonts[k]
	if !ok {
		var err error
		otf, err = opentype.Parse(fontData[k])
		if err != nil {
			fontsMu.Unlock()
			return nil, fmt.Errorf("parse font: %w", err)
		}
		fonts[k] = otf
	}
	fontsMu.Unlock()

	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    math.Round(size*64) / 64,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

// DisplayText applies the content's text transform.
func DisplayText(t *layer.TextContent) string {
	if t.Transform == layer.TransformUppercase {
		return cases.Upper(language.Und).String(t.Text)
	}
	return t.Text
}

// WrapText greedily breaks text into lines no wider than maxWidth. Explicit
// newlines always break; a single word wider than maxWidth gets its own line.
func WrapText(face font.Face, text string, maxWidth float64) []string {
	limit := fixed.Int26_6(maxWidth * 64)
	space := font.MeasureString(face, " ")

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		width := font.MeasureString(face, line)
		for _, w := range words[1:] {
			ww := font.MeasureString(face, w)
			if width+space+ww > limit {
				lines = append(lines, line)
				line, width = w, ww
				continue
			}
			line += " " + w
			width += space + ww
		}
		lines = append(lines, line)
	}
	return lines
}

// renderText draws the text layer into a w×h sprite at scale (sx, sy). Font
// size follows the vertical scale.
func renderText(l layer.Layer, w, h int, sx, sy float64) (*image.NRGBA, error) {
	sprite := image.NewNRGBA(image.Rect(0, 0, w, h))
	t := l.Text
	if t == nil || t.Text == "" || t.FontSize <= 0 {
		return sprite, nil
	}
	face, err := faceFor(t, t.FontSize*sy)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	lineHeight := t.LineHeight
	if lineHeight <= 0 {
		lineHeight = 1.2
	}
	lineBox := t.FontSize * sy * lineHeight
	metrics := face.Metrics()
	ascent := float64(metrics.Ascent) / 64
	glyphs := ascent + float64(metrics.Descent)/64
	lead := (lineBox - glyphs) / 2

	d := &font.Drawer{
		Dst:  sprite,
		Src:  image.NewUniform(colorutil.MustParse(t.Color, colorutil.Black)),
		Face: face,
	}
	boxW := l.Width * sx
	for i, line := range WrapText(face, DisplayText(t), boxW) {
		adv := float64(font.MeasureString(face, line)) / 64
		x := 0.0
		switch t.Align {
		case layer.AlignCenter:
			x = (boxW - adv) / 2
		case layer.AlignRight:
			x = boxW - adv
		}
		y := float64(i)*lineBox + lead + ascent
		d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)}
		d.DrawString(line)
	}
	return sprite, nil
}
