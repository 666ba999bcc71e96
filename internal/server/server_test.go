package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"layer-composer/internal/gallery"
	"layer-composer/internal/layer"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"
	"layer-composer/pkg/geometry"

	"github.com/gofiber/fiber/v3"
	"github.com/tdewolff/test"
)

func testConfig() *Config {
	return &Config{
		ReadTimeout:   time.Second,
		WriteTimeout:  time.Second,
		RenderTimeout: 5 * time.Second,
		MaxScale:      4,
		BodyLimit:     4 << 20,
	}
}

func newTestApp(t *testing.T) (*fiber.App, gallery.Store) {
	t.Helper()
	store := gallery.NewMemoryStore()
	return New(testConfig(), store).App(), store
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func do(t *testing.T, app *fiber.App, method, target string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	test.Error(t, err)
	data, err := io.ReadAll(resp.Body)
	test.Error(t, err)
	resp.Body.Close()
	return resp, data
}

// redDocument is a 4x3 canvas fully covered by a red rectangle.
func redDocument(t *testing.T) (*project.Document, []byte) {
	t.Helper()
	shape, err := layer.NewShape(layer.ShapeRectangle, "#ff0000", geometry.NewRect(0, 0, 4, 3))
	test.Error(t, err)
	doc := &project.Document{CanvasSettings: project.DefaultCanvasSettings(), Layers: []layer.Layer{shape}}
	doc.CanvasSettings.Width, doc.CanvasSettings.Height = 4, 3

	var buf bytes.Buffer
	test.Error(t, doc.Encode(&buf))
	return doc, buf.Bytes()
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/health/live", nil)
	test.T(t, resp.StatusCode, http.StatusOK)
	test.That(t, strings.Contains(string(body), "alive"))

	resp, _ = do(t, app, http.MethodGet, "/health/ready", nil)
	test.T(t, resp.StatusCode, http.StatusOK)
}

func TestRender(t *testing.T) {
	app, _ := newTestApp(t)
	_, body := redDocument(t)

	resp, data := do(t, app, http.MethodPost, "/render?scale=2", body)
	test.T(t, resp.StatusCode, http.StatusOK)
	test.String(t, resp.Header.Get("Content-Type"), "image/png")

	img, err := png.Decode(bytes.NewReader(data))
	test.Error(t, err)
	test.T(t, img.Bounds().Dx(), 8)
	test.T(t, img.Bounds().Dy(), 6)
	r, g, b, a := img.At(3, 3).RGBA()
	test.T(t, [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8}, [4]uint32{255, 0, 0, 255})
}

func TestRenderEmbedsPreset(t *testing.T) {
	app, _ := newTestApp(t)
	doc, body := redDocument(t)

	resp, data := do(t, app, http.MethodPost, "/render?embed=true", body)
	test.T(t, resp.StatusCode, http.StatusOK)

	got, err := project.ExtractFromPNG(data)
	test.Error(t, err)
	test.T(t, len(got.Layers), 1)
	test.String(t, got.Layers[0].ID, doc.Layers[0].ID)
}

func TestRenderRejects(t *testing.T) {
	app, _ := newTestApp(t)
	_, body := redDocument(t)

	resp, _ := do(t, app, http.MethodPost, "/render", nil)
	test.T(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = do(t, app, http.MethodPost, "/render", []byte(`{"layers": {}}`))
	test.T(t, resp.StatusCode, http.StatusBadRequest)

	resp, _ = do(t, app, http.MethodPost, "/render?scale=100", body)
	test.T(t, resp.StatusCode, http.StatusBadRequest)

	empty := []byte(`{"canvasSettings": {"isInfinite": true}, "layers": []}`)
	resp, _ = do(t, app, http.MethodPost, "/render", empty)
	test.T(t, resp.StatusCode, http.StatusUnprocessableEntity)
}

func TestRenderLayer(t *testing.T) {
	app, _ := newTestApp(t)
	doc, body := redDocument(t)

	resp, data := do(t, app, http.MethodPost, "/render/layers/"+doc.Layers[0].ID, body)
	test.T(t, resp.StatusCode, http.StatusOK)
	_, err := png.Decode(bytes.NewReader(data))
	test.Error(t, err)

	resp, _ = do(t, app, http.MethodPost, "/render/layers/missing", body)
	test.T(t, resp.StatusCode, http.StatusNotFound)
}

func TestRenderResolvesGalleryRefs(t *testing.T) {
	app, store := newTestApp(t)

	url, err := raster.EncodeDataURL(solid(2, 2, color.NRGBA{0, 0, 255, 255}))
	test.Error(t, err)
	added, err := store.Add(t.Context(), []string{url})
	test.Error(t, err)

	img, err := layer.NewImage(gallery.Ref(added[0].ID), geometry.NewRect(0, 0, 2, 2))
	test.Error(t, err)
	doc := &project.Document{CanvasSettings: project.DefaultCanvasSettings(), Layers: []layer.Layer{img}}
	doc.CanvasSettings.Width, doc.CanvasSettings.Height = 2, 2
	var buf bytes.Buffer
	test.Error(t, doc.Encode(&buf))

	resp, data := do(t, app, http.MethodPost, "/render", buf.Bytes())
	test.T(t, resp.StatusCode, http.StatusOK)
	out, err := png.Decode(bytes.NewReader(data))
	test.Error(t, err)
	_, _, b, _ := out.At(1, 1).RGBA()
	test.T(t, b>>8, uint32(255))
}

func TestExpandPrompt(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodPost, "/prompts/expand", []byte(`{"prompt": "a {red|blue} car"}`))
	test.T(t, resp.StatusCode, http.StatusOK)

	var out struct {
		Prompts []string `json:"prompts"`
	}
	test.Error(t, json.Unmarshal(body, &out))
	test.T(t, out.Prompts, []string{"a red car", "a blue car"})

	resp, _ = do(t, app, http.MethodPost, "/prompts/expand", []byte(`{"prompt": "  "}`))
	test.T(t, resp.StatusCode, http.StatusBadRequest)
}

func TestPresets(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/presets", nil)
	test.T(t, resp.StatusCode, http.StatusOK)

	var out struct {
		Presets []presetView `json:"presets"`
	}
	test.Error(t, json.Unmarshal(body, &out))
	test.That(t, len(out.Presets) > 0)
	for _, p := range out.Presets {
		test.That(t, p.ID != "" && p.Name != "", "preset", p.ID)
	}
}

func TestFormats(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, http.MethodGet, "/formats", nil)
	test.T(t, resp.StatusCode, http.StatusOK)

	var out struct {
		Formats []formatView `json:"formats"`
	}
	test.Error(t, json.Unmarshal(body, &out))
	test.That(t, len(out.Formats) > 0)
	test.String(t, out.Formats[0].Name, "Square 2048")
	test.T(t, out.Formats[0].Width, 2048)
}

func TestGalleryRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	url, err := raster.EncodeDataURL(solid(1, 1, color.NRGBA{0, 255, 0, 255}))
	test.Error(t, err)
	payload, err := json.Marshal(addRequest{URLs: []string{url}})
	test.Error(t, err)

	resp, body := do(t, app, http.MethodPost, "/gallery", payload)
	test.T(t, resp.StatusCode, http.StatusCreated)
	var added struct {
		Images []gallery.Image `json:"images"`
	}
	test.Error(t, json.Unmarshal(body, &added))
	test.T(t, len(added.Images), 1)
	id := added.Images[0].ID

	resp, body = do(t, app, http.MethodGet, "/gallery?limit=10", nil)
	test.T(t, resp.StatusCode, http.StatusOK)
	test.That(t, strings.Contains(string(body), id))

	resp, body = do(t, app, http.MethodGet, "/gallery/"+id+"/image", nil)
	test.T(t, resp.StatusCode, http.StatusOK)
	test.String(t, resp.Header.Get("Content-Type"), "image/png")
	_, err = png.Decode(bytes.NewReader(body))
	test.Error(t, err)

	resp, _ = do(t, app, http.MethodDelete, "/gallery/"+id, nil)
	test.T(t, resp.StatusCode, http.StatusNoContent)
	resp, _ = do(t, app, http.MethodGet, "/gallery/"+id, nil)
	test.T(t, resp.StatusCode, http.StatusNotFound)
	resp, _ = do(t, app, http.MethodDelete, "/gallery/"+id, nil)
	test.T(t, resp.StatusCode, http.StatusNotFound)

	resp, _ = do(t, app, http.MethodPost, "/gallery", []byte(`{"urls": []}`))
	test.T(t, resp.StatusCode, http.StatusBadRequest)
	resp, _ = do(t, app, http.MethodGet, "/gallery?limit=zero", nil)
	test.T(t, resp.StatusCode, http.StatusBadRequest)
}
