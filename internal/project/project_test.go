package project

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	"github.com/tdewolff/test"
)

func sampleDocument(t *testing.T) *Document {
	t.Helper()
	text, err := layer.NewText(layer.DefaultTextContent(), geometry.NewRect(10, 20, 300, 60))
	test.Error(t, err)
	shape, err := layer.NewShape(layer.ShapeEllipse, "#ff00ff", geometry.NewRect(0, 0, 50, 40))
	test.Error(t, err)
	shape.Rotation = 30
	shape.BlendMode = layer.BlendScreen
	doc := &Document{CanvasSettings: DefaultCanvasSettings(), Layers: []layer.Layer{text, shape}}
	doc.CanvasSettings.Grid.Visible = true
	return doc
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := sampleDocument(t)
	var buf bytes.Buffer
	test.Error(t, doc.Encode(&buf))

	got, err := Decode(&buf)
	test.Error(t, err)
	test.T(t, got.CanvasSettings, doc.CanvasSettings)
	test.That(t, layer.ListEqual(got.Layers, doc.Layers))
}

func TestDecodeRejectsWrongShapes(t *testing.T) {
	var tests = []string{
		`{"canvasSettings": [], "layers": []}`,
		`{"canvasSettings": {}, "layers": {}}`,
		`{"layers": []}`,
		`{"canvasSettings": {}}`,
		`not json`,
		`{"canvasSettings": {}, "layers": [{"type":"shape","width":0,"height":10}]}`,
	}
	for _, tt := range tests {
		t.Run(tt, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt))
			test.That(t, errors.Is(err, ErrInvalidDocument), "got", err)
		})
	}
}

func TestDecodeFillsDefaults(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"canvasSettings": {"background": "transparent"}, "layers": []}`))
	test.Error(t, err)
	test.T(t, doc.CanvasSettings.Width, DefaultWidth)
	test.String(t, doc.CanvasSettings.Background, "transparent")
	test.String(t, doc.CanvasSettings.Guides.Color, DefaultGuideColor)
}

func TestPNGEmbedRoundTrip(t *testing.T) {
	doc := sampleDocument(t)
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	data, err := EmbedInPNG(img, doc)
	test.Error(t, err)

	// Still a valid PNG.
	decoded, _, err := image.Decode(bytes.NewReader(data))
	test.Error(t, err)
	test.T(t, decoded.Bounds(), img.Bounds())

	got, err := ExtractFromPNG(data)
	test.Error(t, err)
	test.That(t, layer.ListEqual(got.Layers, doc.Layers))

	// Embedding again replaces the chunk instead of adding a second one.
	again, err := EmbedInPNGData(data, &Document{CanvasSettings: DefaultCanvasSettings()})
	test.Error(t, err)
	got, err = ExtractFromPNG(again)
	test.Error(t, err)
	test.T(t, len(got.Layers), 0)
}

func TestExtractWithoutChunk(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	_, err := ExtractFromPNG(pngBytes(t, img))
	test.That(t, errors.Is(err, ErrNoEmbeddedPreset))
}

func TestFileRelativePaths(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "assets", "photo.png")
	l, err := layer.NewImage(imgPath, geometry.NewRect(0, 0, 10, 10))
	test.Error(t, err)
	doc := &Document{CanvasSettings: DefaultCanvasSettings(), Layers: []layer.Layer{l}}

	path := filepath.Join(dir, "session.json")
	test.Error(t, doc.SaveFile(path))
	raw, err := os.ReadFile(path)
	test.Error(t, err)
	test.That(t, bytes.Contains(raw, []byte(`"assets/photo.png"`)), string(raw))
	test.String(t, doc.Layers[0].Image.URL, imgPath)

	got, err := LoadFile(path)
	test.Error(t, err)
	test.String(t, got.Layers[0].Image.URL, imgPath)
}

func TestDocumentBounds(t *testing.T) {
	doc := sampleDocument(t)
	r, ok := doc.Bounds()
	test.That(t, ok)
	test.T(t, r, geometry.NewRect(0, 0, DefaultWidth, DefaultHeight))

	doc.CanvasSettings.IsInfinite = true
	doc.Layers = doc.Layers[:1]
	r, ok = doc.Bounds()
	test.That(t, ok)
	test.T(t, r, geometry.NewRect(10, 20, 300, 60))

	doc.Layers = nil
	_, ok = doc.Bounds()
	test.That(t, !ok)
}
