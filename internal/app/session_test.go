package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/layer"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"
	"layer-composer/internal/selection"
	"layer-composer/internal/viewport"
	"layer-composer/pkg/geometry"

	"github.com/tdewolff/test"
)

func solidURL(t *testing.T, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	u, err := raster.EncodeDataURL(img)
	test.Error(t, err)
	return u
}

// stubClient answers every call with url. With block set, AnalyzePrompt
// waits for cancellation after signalling entered.
type stubClient struct {
	url     string
	block   bool
	entered chan struct{}
	once    sync.Once
}

func (c *stubClient) GenerateFromPreset(ctx context.Context, _ generate.PresetCall, _ []string) ([]string, error) {
	return []string{c.url}, nil
}

func (c *stubClient) EditImageWithPrompt(ctx context.Context, _, _ string) (string, error) {
	return c.url, nil
}

func (c *stubClient) GenerateFromMultipleImages(ctx context.Context, _ []string, _ string) (string, error) {
	return c.url, nil
}

func (c *stubClient) GenerateFreeImage(ctx context.Context, _ string, count int, _ string) ([]string, error) {
	out := make([]string, count)
	for i := range out {
		out[i] = c.url
	}
	return out, nil
}

func (c *stubClient) RefineImageAndPrompt(ctx context.Context, _, userText string, _ []string) (string, error) {
	return userText, nil
}

func (c *stubClient) RefinePresetPrompt(ctx context.Context, _, userText string, _ []string) (string, error) {
	return userText, nil
}

func (c *stubClient) AnalyzePrompt(ctx context.Context, prompt string) (generate.PromptParams, error) {
	if c.block {
		c.once.Do(func() { close(c.entered) })
		<-ctx.Done()
		return generate.PromptParams{}, ctx.Err()
	}
	return generate.PromptParams{NumberOfImages: 2}, nil
}

func newTestSession(t *testing.T, client generate.Client) (*Session, *gallery.MemoryStore, *raster.SourceLoader) {
	t.Helper()
	store := gallery.NewMemoryStore()
	loader := raster.NewSourceLoader(32)
	loader.Resolver = gallery.Resolver(store)
	s := NewSession(Config{AppID: "composer", Loader: loader, Gallery: store, Client: client})
	return s, store, loader
}

func TestBlankTextSaveToGallery(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t, nil)
	s.NewBlank()
	txt, err := s.AddText()
	test.Error(t, err)
	test.T(t, s.SelectedIDs(), []string{txt.ID})
	test.That(t, s.RequestClose(), "unsaved layers need confirmation")

	saved, err := s.Save(ctx, nil)
	test.Error(t, err)
	test.That(t, !s.IsOpen())

	list, err := store.List(ctx, 0)
	test.Error(t, err)
	test.T(t, len(list), 1)
	test.String(t, list[0].ID, saved.ID)

	_, data, err := raster.DecodeDataURL(saved.URL)
	test.Error(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 2048, 2048))
	r, g, b, a := img.At(5, 5).RGBA()
	test.T(t, []uint32{r >> 8, g >> 8, b >> 8, a >> 8}, []uint32{255, 255, 255, 255})

	ink := false
	box := txt.Bounds()
	for y := int(box.Y); y < int(box.Bottom()) && !ink; y++ {
		for x := int(box.X); x < int(box.Right()); x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r>>8 < 128 {
				ink = true
				break
			}
		}
	}
	test.That(t, ink, "text is drawn over the background")
}

func TestDuplicateDeleteUndo(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewBlank()
	sh, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(10, 10, 100, 50))
	test.Error(t, err)

	ids := s.Duplicate()
	test.T(t, len(ids), 1)
	test.T(t, len(s.Layers()), 2)
	test.T(t, s.SelectedIDs(), ids)
	dup, ok := s.Layer(ids[0])
	test.That(t, ok)
	test.Float(t, dup.X, 30)
	test.Float(t, dup.Y, 30)

	test.That(t, s.DeleteSelected())
	test.T(t, len(s.Layers()), 1)
	test.String(t, s.Layers()[0].ID, sh.ID)
	test.T(t, len(s.SelectedIDs()), 0)

	test.That(t, s.Undo())
	test.T(t, len(s.Layers()), 2)
	test.That(t, s.Redo())
	test.T(t, len(s.Layers()), 1)
}

func TestMergeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, store, loader := newTestSession(t, nil)
	s.NewBlank()
	a, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(0, 0, 50, 50))
	test.Error(t, err)
	b, err := s.AddShape(layer.ShapeEllipse, geometry.NewRect(100, 0, 50, 50))
	test.Error(t, err)

	s.SelectIDs([]string{a.ID})
	_, err = s.Merge(ctx)
	test.That(t, errors.Is(err, ErrMergeNeedsTwo))
	test.That(t, s.Err() != "")
	s.ClearErr()

	s.SelectIDs([]string{a.ID, b.ID})
	merged, err := s.Merge(ctx)
	test.Error(t, err)
	test.T(t, merged.Bounds(), geometry.NewRect(0, 0, 150, 50))
	layers := s.Layers()
	test.T(t, len(layers), 1)
	test.T(t, layers[0].Kind, layer.KindImage)
	test.T(t, s.SelectedIDs(), []string{merged.ID})

	img, err := loader.Load(ctx, merged.Image.URL)
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 150, 50))
	_, _, _, alpha := img.At(25, 25).RGBA()
	test.T(t, alpha>>8, uint32(255))
	_, _, _, alpha = img.At(75, 25).RGBA()
	test.T(t, alpha, uint32(0))

	list, err := store.List(ctx, 0)
	test.Error(t, err)
	test.T(t, len(list), 1)

	test.That(t, s.Undo())
	test.T(t, len(s.Layers()), 2)
	test.That(t, s.Redo())
	test.T(t, len(s.Layers()), 1)
}

func TestInfiniteSaveJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	s.NewInfinite()
	_, err := s.AddShape(layer.ShapeEllipse, geometry.NewRect(-40, 20, 80, 60))
	test.Error(t, err)
	_, err = s.AddText()
	test.Error(t, err)

	var buf bytes.Buffer
	saved, err := s.Save(ctx, &buf)
	test.Error(t, err)
	test.That(t, saved == nil)
	test.That(t, s.IsOpen())
	test.That(t, !s.Modified())
	test.That(t, !s.RequestClose())

	other, _, _ := newTestSession(t, nil)
	test.Error(t, other.ImportJSON(&buf))
	test.That(t, layer.ListEqual(other.Layers(), s.Layers()))
	test.T(t, other.Settings(), s.Settings())
}

func TestImportJSONRejectsMalformed(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	err := s.ImportJSON(bytes.NewReader([]byte(`{"canvasSettings":[],"layers":{}}`)))
	test.That(t, errors.Is(err, project.ErrInvalidDocument))
	test.That(t, !s.IsOpen())
	test.That(t, s.Err() != "")
}

func TestImportPNGPresetUnsupported(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	err := s.ImportPNGPreset([]byte("\x89PNG"), false)
	test.That(t, errors.Is(err, project.ErrPresetsUnsupported))
}

func TestImportPNGPreset(t *testing.T) {
	doc := &project.Document{CanvasSettings: project.DefaultCanvasSettings()}
	doc.CanvasSettings.Width = 640
	shape, err := layer.NewShape(layer.ShapeRectangle, "#ff0000", geometry.NewRect(0, 0, 10, 10))
	test.Error(t, err)
	doc.Layers = []layer.Layer{shape}
	data, err := project.EmbedInPNG(image.NewNRGBA(image.Rect(0, 0, 4, 4)), doc)
	test.Error(t, err)

	s, _, _ := newTestSession(t, nil)
	test.Error(t, s.ImportPNGPreset(data, s.SupportsCanvasPresets()))
	test.T(t, s.Settings().Width, 640)
	test.T(t, len(s.Layers()), 1)
}

func TestImportImagesSizesCanvas(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	url := solidURL(t, 300, 200, color.NRGBA{0, 128, 0, 255})

	created, err := s.ImportImages(ctx, []string{url})
	test.Error(t, err)
	test.That(t, s.IsOpen())
	test.T(t, s.Settings().Width, 300)
	test.T(t, s.Settings().Height, 200)
	test.T(t, created[0].Bounds(), geometry.NewRect(0, 0, 300, 200))

	second, err := s.ImportImages(ctx, []string{url})
	test.Error(t, err)
	test.T(t, len(s.Layers()), 2)
	test.T(t, second[0].Center(), geometry.Point2D{X: 150, Y: 100})
}

func TestImportFromGallery(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestSession(t, nil)
	added, err := store.Add(ctx, []string{solidURL(t, 8, 8, color.NRGBA{255, 0, 0, 255})})
	test.Error(t, err)

	created, err := s.ImportFromGallery(ctx, added[0].ID)
	test.Error(t, err)
	test.T(t, len(created), 1)

	_, err = s.ImportFromGallery(ctx, "missing")
	test.That(t, errors.Is(err, gallery.ErrNotFound))
}

func TestBakeTextKeepsGeometry(t *testing.T) {
	ctx := context.Background()
	s, _, loader := newTestSession(t, nil)
	s.NewBlank()
	txt, err := s.AddText()
	test.Error(t, err)
	test.Error(t, s.UpdateLayer(txt.ID, func(l *layer.Layer) { l.Rotation = 30 }, true))

	baked, err := s.Bake(ctx, txt.ID)
	test.Error(t, err)
	test.T(t, baked.Kind, layer.KindImage)
	test.String(t, baked.ID, txt.ID)
	test.T(t, baked.Bounds(), txt.Bounds())
	test.Float(t, baked.Rotation, 30)

	img, err := loader.Load(ctx, baked.Image.URL)
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, int(DefaultTextWidth*raster.UpscaleFactor), int(DefaultTextHeight*raster.UpscaleFactor)))
}

func TestUpdateLayerRejectsInvalid(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewBlank()
	sh, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(0, 0, 10, 10))
	test.Error(t, err)
	entries := s.history.Len()

	err = s.UpdateLayer(sh.ID, func(l *layer.Layer) { l.Width = 0 }, true)
	test.That(t, errors.Is(err, layer.ErrDegenerate))
	l, _ := s.Layer(sh.ID)
	test.Float(t, l.Width, 10)
	test.T(t, s.history.Len(), entries)
}

func TestDragMovesWithOneEntry(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewBlank()
	sh, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(0, 0, 100, 100))
	test.Error(t, err)
	entries := s.history.Len()

	test.That(t, s.BeginDrag(geometry.Point2D{X: 50, Y: 50}, false))
	s.DragTo(geometry.Point2D{X: 55, Y: 60}, selection.Modifiers{})
	s.DragTo(geometry.Point2D{X: 60, Y: 70}, selection.Modifiers{})
	test.That(t, !s.Undo(), "undo is blocked mid-drag")
	s.EndDrag(geometry.Point2D{X: 60, Y: 70}, selection.Modifiers{})

	l, _ := s.Layer(sh.ID)
	test.Float(t, l.X, 10)
	test.Float(t, l.Y, 20)
	test.T(t, s.history.Len(), entries+1)

	test.That(t, s.Undo())
	l, _ = s.Layer(sh.ID)
	test.Float(t, l.X, 0)
}

func TestCancelDragRestores(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewBlank()
	sh, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(0, 0, 100, 100))
	test.Error(t, err)
	entries := s.history.Len()

	test.That(t, s.BeginDrag(geometry.Point2D{X: 50, Y: 50}, false))
	s.DragTo(geometry.Point2D{X: 90, Y: 90}, selection.Modifiers{})
	test.That(t, s.HandleShortcut(Shortcut{Key: "Escape"}))
	test.That(t, !s.Dragging())

	l, _ := s.Layer(sh.ID)
	test.Float(t, l.X, 0)
	test.T(t, s.history.Len(), entries)
}

func TestShortcuts(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewBlank()
	sh, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(0, 0, 10, 10))
	test.Error(t, err)

	test.That(t, s.HandleShortcut(Shortcut{Key: "Right", Shift: true}))
	l, _ := s.Layer(sh.ID)
	test.Float(t, l.X, 10)

	test.That(t, s.HandleShortcut(Shortcut{Key: "z", Ctrl: true}))
	l, _ = s.Layer(sh.ID)
	test.Float(t, l.X, 0)
	test.That(t, s.HandleShortcut(Shortcut{Key: "Z", Ctrl: true, Shift: true}))
	l, _ = s.Layer(sh.ID)
	test.Float(t, l.X, 10)

	test.That(t, s.HandleShortcut(Shortcut{Key: "h"}))
	test.T(t, s.Viewport().Tool(), viewport.ToolHand)
	test.That(t, s.HandleShortcut(Shortcut{Key: "V"}))
	test.That(t, s.HandleShortcut(Shortcut{Key: "Space"}))
	test.T(t, s.Viewport().EffectiveTool(), viewport.ToolHand)
	test.That(t, s.HandleShortcut(Shortcut{Key: "Space", Release: true}))
	test.T(t, s.Viewport().EffectiveTool(), viewport.ToolSelect)

	test.That(t, s.HandleShortcut(Shortcut{Key: "Escape"}))
	test.T(t, len(s.SelectedIDs()), 0)
	test.That(t, s.HandleShortcut(Shortcut{Key: "a", Ctrl: true}))
	test.T(t, s.SelectedIDs(), []string{sh.ID})
	test.That(t, s.HandleShortcut(Shortcut{Key: "Delete"}))
	test.T(t, len(s.Layers()), 0)
	test.That(t, !s.HandleShortcut(Shortcut{Key: "q"}))
}

func TestGenerateInsertsResults(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{url: solidURL(t, 16, 8, color.NRGBA{255, 0, 0, 255})}
	s, store, _ := newTestSession(t, client)
	s.NewBlank()

	created, err := s.Generate(ctx, "sunset", GenerateOptions{})
	test.Error(t, err)
	test.T(t, len(created), 2)
	test.T(t, len(s.Layers()), 2)
	test.T(t, s.SelectedIDs(), []string{created[0].ID, created[1].ID})
	test.T(t, s.Generating(), 0)

	list, err := store.List(ctx, 0)
	test.Error(t, err)
	test.T(t, len(list), 2)
	last, ok := s.Log().Last()
	test.That(t, ok)
	test.T(t, last.Level, generate.LevelSuccess)
}

func TestGenerateCancelled(t *testing.T) {
	client := &stubClient{block: true, entered: make(chan struct{})}
	s, _, _ := newTestSession(t, client)
	s.NewBlank()

	done := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), "sunset", GenerateOptions{})
		done <- err
	}()
	<-client.entered
	test.T(t, s.Generating(), 1)
	test.That(t, s.CancelGeneration())

	select {
	case err := <-done:
		test.That(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not stop")
	}
	test.String(t, s.Err(), "")
	test.T(t, len(s.Layers()), 0)
	test.T(t, s.Generating(), 0)
}

func TestHiddenSelectionExportsAndGenerates(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{url: solidURL(t, 4, 4, color.NRGBA{0, 0, 255, 255})}
	s, _, _ := newTestSession(t, client)
	created, err := s.ImportImages(ctx, []string{solidURL(t, 12, 6, color.NRGBA{0, 255, 0, 255})})
	test.Error(t, err)
	id := created[0].ID
	test.Error(t, s.UpdateLayer(id, func(l *layer.Layer) { l.Visible = false }, true))
	s.Select(id, false)

	paths, err := s.ExportSelected(ctx, t.TempDir())
	test.Error(t, err)
	test.T(t, len(paths), 1)
	data, err := os.ReadFile(paths[0])
	test.Error(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	test.Error(t, err)
	test.T(t, img.Bounds(), image.Rect(0, 0, 12, 6))

	generated, err := s.Generate(ctx, "make it blue", GenerateOptions{})
	test.Error(t, err)
	test.That(t, len(generated) > 0)
	test.T(t, s.Generating(), 0)
}

func TestCancelGenerationIdle(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, &stubClient{url: solidURL(t, 2, 2, color.NRGBA{255, 0, 0, 255})})
	s.NewBlank()
	test.That(t, !s.CancelGeneration(), "nothing running")

	_, err := s.Generate(ctx, "sunset", GenerateOptions{})
	test.Error(t, err)
	test.That(t, !s.CancelGeneration(), "finished job is not cancellable")
}

func TestGeneratePresetNeedsSelection(t *testing.T) {
	s, _, _ := newTestSession(t, &stubClient{url: "unused"})
	s.NewBlank()
	_, err := s.Generate(context.Background(), "a chair", GenerateOptions{PresetID: "product-shot"})
	test.That(t, errors.Is(err, generate.ErrPresetNeedsImages))
	test.That(t, s.Err() != "")
}

func TestLifecycleEvents(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	var mu sync.Mutex
	var got []EventType
	for _, ev := range []EventType{EventOpened, EventClosed, EventVisibilityChanged} {
		ev := ev
		s.On(ev, func(interface{}) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})
	}

	s.Open()
	test.That(t, s.IsOpen())
	test.That(t, !s.RequestClose())
	s.Hide()
	test.That(t, s.IsHidden())
	s.Show()
	s.Close()
	test.That(t, !s.IsOpen())
	_, err := s.AddText()
	test.That(t, errors.Is(err, ErrClosed))

	mu.Lock()
	defer mu.Unlock()
	test.T(t, got, []EventType{EventOpened, EventVisibilityChanged, EventVisibilityChanged, EventClosed})
}

func TestAutosave(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	a := NewAutosaver(s, t.TempDir(), time.Hour)
	s.NewBlank()

	wrote, err := a.SaveIfChanged()
	test.Error(t, err)
	test.That(t, !wrote, "unmodified session is not written")

	_, err = s.AddText()
	test.Error(t, err)
	wrote, err = a.SaveIfChanged()
	test.Error(t, err)
	test.That(t, wrote)
	wrote, err = a.SaveIfChanged()
	test.Error(t, err)
	test.That(t, !wrote, "no change since last write")

	data, err := os.ReadFile(a.Path())
	test.Error(t, err)
	doc, err := project.Decode(bytes.NewReader(data))
	test.Error(t, err)
	test.T(t, len(doc.Layers), 1)

	test.Error(t, a.Discard())
	test.Error(t, a.Discard())
}
