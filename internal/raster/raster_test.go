package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	"github.com/tdewolff/test"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type mapLoader map[string]image.Image

func (m mapLoader) Load(_ context.Context, ref string) (image.Image, error) {
	img, ok := m[ref]
	if !ok {
		return nil, errors.New("missing " + ref)
	}
	return img, nil
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func shape(t *testing.T, fill string, x, y, w, h float64) layer.Layer {
	t.Helper()
	l, err := layer.NewShape(layer.ShapeRectangle, fill, geometry.NewRect(x, y, w, h))
	test.Error(t, err)
	return l
}

var (
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

func TestDataURLRoundTrip(t *testing.T) {
	src := solid(3, 2, red)
	u, err := EncodeDataURL(src)
	test.Error(t, err)
	test.That(t, IsDataURL(u))

	mime, data, err := DecodeDataURL(u)
	test.Error(t, err)
	test.String(t, mime, "image/png")
	test.That(t, len(data) > 0)

	img, err := NewSourceLoader(4).Load(context.Background(), u)
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 3, 2))
}

func TestDecodeDataURLPlain(t *testing.T) {
	mime, data, err := DecodeDataURL("data:,hello%20world")
	test.Error(t, err)
	test.String(t, mime, "text/plain")
	test.String(t, string(data), "hello world")

	_, _, err = DecodeDataURL("https://example.com/a.png")
	test.That(t, errors.Is(err, ErrNotDataURL))
}

func TestCaptureRegionOrderAndBackground(t *testing.T) {
	top := shape(t, "#0000ff", 10, 10, 20, 20)
	bottom := shape(t, "#ff0000", 0, 0, 40, 40)
	c := NewCapturer(nil)

	img, err := c.CaptureRegion(context.Background(), []layer.Layer{top, bottom}, geometry.NewRect(0, 0, 50, 50), "#ffffff")
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 50, 50))
	test.T(t, img.NRGBAAt(20, 20), blue)
	test.T(t, img.NRGBAAt(5, 5), red)
	test.T(t, img.NRGBAAt(45, 45), white)
}

func TestCaptureRegionOffsetAndTransparent(t *testing.T) {
	l := shape(t, "#ff0000", 100, 100, 10, 10)
	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{l}, geometry.NewRect(95, 95, 20, 20), "")
	test.Error(t, err)
	test.T(t, img.NRGBAAt(2, 2).A, uint8(0))
	test.T(t, img.NRGBAAt(10, 10), red)
}

func TestCaptureSkipsHiddenAndAppliesOpacity(t *testing.T) {
	hidden := shape(t, "#0000ff", 0, 0, 10, 10)
	hidden.Visible = false
	half := shape(t, "#000000", 0, 0, 10, 10)
	half.Opacity = 50

	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{hidden, half}, geometry.NewRect(0, 0, 10, 10), "#ffffff")
	test.Error(t, err)
	px := img.NRGBAAt(5, 5)
	test.That(t, px.R >= 126 && px.R <= 129, "half black over white is mid grey, got", px.R)
	test.T(t, px.A, uint8(255))
}

func TestCaptureMultiplyBlend(t *testing.T) {
	top := shape(t, "#ff0000", 0, 0, 10, 10)
	top.BlendMode = layer.BlendMultiply
	bottom := shape(t, "#00ff00", 0, 0, 10, 10)

	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{top, bottom}, geometry.NewRect(0, 0, 10, 10), "")
	test.Error(t, err)
	test.T(t, img.NRGBAAt(5, 5), color.NRGBA{0, 0, 0, 255})
}

func TestBlendPixelModes(t *testing.T) {
	grey := color.NRGBA{128, 128, 128, 255}
	test.T(t, blendPixel(grey, white, layer.BlendDarken, 1), grey)
	test.T(t, blendPixel(grey, white, layer.BlendLighten, 1), white)
	test.T(t, blendPixel(white, white, layer.BlendDifference, 1), color.NRGBA{0, 0, 0, 255})
	// Over a transparent backdrop the source is copied regardless of mode.
	test.T(t, blendPixel(color.NRGBA{}, red, layer.BlendMultiply, 1), red)
}

func TestCaptureRotatedQuarterTurn(t *testing.T) {
	// A 40×10 bar rotated 90° about (20,5) covers x 15..25, y -15..25.
	bar := shape(t, "#ff0000", 0, 0, 40, 10)
	bar.Rotation = 90
	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{bar}, geometry.NewRect(0, -20, 40, 50), "")
	test.Error(t, err)
	test.That(t, img.NRGBAAt(20, 30).A > 250) // canvas (20, 10)
	test.T(t, img.NRGBAAt(5, 22).A, uint8(0))    // canvas (5, 2)
}

func TestCaptureImageStretched(t *testing.T) {
	loader := mapLoader{"img": solid(2, 2, blue)}
	l, err := layer.NewImage("img", geometry.NewRect(0, 0, 20, 20))
	test.Error(t, err)

	img, err := NewCapturer(loader).CaptureRegion(context.Background(), []layer.Layer{l}, geometry.NewRect(0, 0, 20, 20), "")
	test.Error(t, err)
	px := img.NRGBAAt(10, 10)
	test.That(t, px.B > 250 && px.R < 5 && px.A > 250, "stretched pixel", px)

	native, err := NewCapturer(loader).CaptureLayer(context.Background(), l)
	test.Error(t, err)
	test.T(t, native.Bounds(), image.Rect(0, 0, 2, 2))
}

func TestCaptureFailsOnMissingBitmap(t *testing.T) {
	ok, err := layer.NewImage("ok", geometry.NewRect(0, 0, 5, 5))
	test.Error(t, err)
	missing, err := layer.NewImage("missing", geometry.NewRect(0, 0, 5, 5))
	test.Error(t, err)

	loader := mapLoader{"ok": solid(1, 1, red)}
	_, err = NewCapturer(loader).CaptureRegion(context.Background(), []layer.Layer{ok, missing}, geometry.NewRect(0, 0, 5, 5), "")
	test.That(t, errors.Is(err, ErrBitmapLoad))
}

func TestCaptureLayerHiddenImage(t *testing.T) {
	l, err := layer.NewImage("img", geometry.NewRect(0, 0, 20, 10))
	test.Error(t, err)
	l.Visible = false

	img, err := NewCapturer(mapLoader{"img": solid(6, 3, blue)}).CaptureLayer(context.Background(), l)
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 6, 3))
	test.T(t, img.NRGBAAt(2, 1), blue)

	_, err = NewCapturer(mapLoader{}).CaptureLayer(context.Background(), l)
	test.That(t, errors.Is(err, ErrBitmapLoad), "missing bitmap", err)

	_, err = NewCapturer(nil).CaptureLayer(context.Background(), l)
	test.That(t, errors.Is(err, ErrBitmapLoad), "no loader", err)
}

func TestCaptureLayerUpscalesShapes(t *testing.T) {
	l := shape(t, "#ff0000", 0, 0, 30, 20)
	img, err := NewCapturer(nil).CaptureLayer(context.Background(), l)
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 120, 80))
	test.T(t, img.NRGBAAt(60, 40), red)
}

func TestEllipseCornersEmpty(t *testing.T) {
	l, err := layer.NewShape(layer.ShapeEllipse, "#ff0000", geometry.NewRect(0, 0, 40, 40))
	test.Error(t, err)
	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{l}, geometry.NewRect(0, 0, 40, 40), "")
	test.Error(t, err)
	test.T(t, img.NRGBAAt(1, 1).A, uint8(0))
	test.T(t, img.NRGBAAt(20, 20), red)
}

func TestWrapText(t *testing.T) {
	f, err := opentype.Parse(goregular.TTF)
	test.Error(t, err)
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: 20, DPI: 72})
	test.Error(t, err)
	defer face.Close()

	lines := WrapText(face, "one two three four", 1e6)
	test.T(t, lines, []string{"one two three four"})

	lines = WrapText(face, "one two three four", 1)
	test.T(t, lines, []string{"one", "two", "three", "four"})

	lines = WrapText(face, "a\n\nb", 1e6)
	test.T(t, lines, []string{"a", "", "b"})
}

func TestDisplayTextUppercase(t *testing.T) {
	content := layer.DefaultTextContent()
	content.Text = "straße"
	content.Transform = layer.TransformUppercase
	test.String(t, DisplayText(&content), "STRASSE")
}

func TestRenderTextDrawsInk(t *testing.T) {
	content := layer.DefaultTextContent()
	content.Text = "Hello"
	content.Color = "#000000"
	l, err := layer.NewText(content, geometry.NewRect(0, 0, 300, 80))
	test.Error(t, err)

	img, err := NewCapturer(nil).CaptureRegion(context.Background(), []layer.Layer{l}, l.Bounds(), "")
	test.Error(t, err)
	ink := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A > 0 {
				ink++
			}
		}
	}
	test.That(t, ink > 0, "expected glyph pixels")
}

func TestIsBold(t *testing.T) {
	test.That(t, IsBold("bold"))
	test.That(t, IsBold("700"))
	test.That(t, !IsBold("400"))
	test.That(t, !IsBold("normal"))
}
