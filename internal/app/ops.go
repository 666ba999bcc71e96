package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"layer-composer/internal/gallery"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/raster"
	"layer-composer/pkg/geometry"
)

var (
	// ErrNothingSelected is returned by operations that act on the
	// selection when it is empty.
	ErrNothingSelected = errors.New("no layer selected")
	// ErrMergeNeedsTwo is returned when fewer than two layers are selected
	// for a merge.
	ErrMergeNeedsTwo = errors.New("select at least two layers to merge")
	// ErrLayerGone is returned when the layers an operation captured were
	// removed before it finished.
	ErrLayerGone = errors.New("layer no longer exists")
)

// cacheSeeder is implemented by loaders that accept already decoded
// bitmaps, so a freshly captured data URL is not decoded again.
type cacheSeeder interface {
	Put(ref string, img image.Image)
}

func (s *Session) seed(ref string, img image.Image) {
	if c, ok := s.cfg.Loader.(cacheSeeder); ok {
		c.Put(ref, img)
	}
}

func (s *Session) addToGallery(ctx context.Context, urls []string) {
	if s.cfg.Gallery == nil || len(urls) == 0 {
		return
	}
	if _, err := s.cfg.Gallery.Add(ctx, urls); err != nil {
		logging.Logger().Warn("gallery add failed", "count", len(urls), "err", err)
	}
}

// Merge flattens the selected layers into one image layer placed where the
// topmost of them was. The sources are removed in the same history entry.
func (s *Session) Merge(ctx context.Context) (layer.Layer, error) {
	s.mu.RLock()
	sources := layer.CloneList(layer.Filter(s.history.Live(), s.selection.IDs()))
	s.mu.RUnlock()
	if len(sources) < 2 {
		return layer.Layer{}, s.fail("merge", ErrMergeNeedsTwo)
	}
	box, _ := layer.BoundingBoxOf(sources)
	img, err := s.capturer.CaptureRegion(ctx, sources, box, "")
	if err != nil {
		return layer.Layer{}, s.fail("merge", err)
	}
	url, err := raster.EncodeDataURL(img)
	if err != nil {
		return layer.Layer{}, s.fail("merge", err)
	}
	s.seed(url, img)

	merged, err := layer.NewImage(url, box)
	if err != nil {
		return layer.Layer{}, s.fail("merge", err)
	}
	merged.Name = "Merged"

	ids := make([]string, len(sources))
	for i, l := range sources {
		ids[i] = l.ID
	}
	var gone bool
	s.commit(true, func(live []layer.Layer) []layer.Layer {
		at := -1
		for i, l := range live {
			if containsID(ids, l.ID) {
				at = i
				break
			}
		}
		if at < 0 {
			gone = true
			return live
		}
		out := make([]layer.Layer, 0, len(live))
		for i, l := range live {
			if i == at {
				out = append(out, merged)
			}
			if !containsID(ids, l.ID) {
				out = append(out, l)
			}
		}
		return out
	})
	if gone {
		return layer.Layer{}, s.fail("merge", ErrLayerGone)
	}
	s.SelectIDs([]string{merged.ID})
	s.addToGallery(ctx, []string{url})
	logging.Logger().Info("layers merged", "count", len(sources), "id", merged.ID)
	return merged, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Bake replaces a text or shape layer with an image layer rendered at
// UpscaleFactor, keeping its bounds, rotation, opacity and blend mode.
// Image layers are returned unchanged.
func (s *Session) Bake(ctx context.Context, id string) (layer.Layer, error) {
	l, ok := s.Layer(id)
	if !ok {
		return layer.Layer{}, s.fail("bake", fmt.Errorf("%w: %s", ErrLayerGone, id))
	}
	if l.Kind == layer.KindImage {
		return l, nil
	}
	img, err := s.capturer.CaptureLayer(ctx, l)
	if err != nil {
		return layer.Layer{}, s.fail("bake", err)
	}
	url, err := raster.EncodeDataURL(img)
	if err != nil {
		return layer.Layer{}, s.fail("bake", err)
	}
	s.seed(url, img)

	baked := l.Clone()
	baked.Kind = layer.KindImage
	baked.Text = nil
	baked.Shape = nil
	baked.Image = &layer.ImageContent{URL: url}

	var gone bool
	s.commit(true, func(live []layer.Layer) []layer.Layer {
		i := layer.IndexOf(live, id)
		if i < 0 {
			gone = true
			return live
		}
		live[i] = baked
		return live
	})
	if gone {
		return layer.Layer{}, s.fail("bake", fmt.Errorf("%w: %s", ErrLayerGone, id))
	}
	logging.Logger().Info("layer baked", "id", id)
	return baked, nil
}

// ExportSelected writes every selected layer as a PNG file in dir and adds
// the bitmaps to the gallery. It returns the written paths.
func (s *Session) ExportSelected(ctx context.Context, dir string) ([]string, error) {
	sources := s.Selected()
	if len(sources) == 0 {
		return nil, s.fail("export", ErrNothingSelected)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, s.fail("export", err)
	}

	paths := make([]string, 0, len(sources))
	urls := make([]string, 0, len(sources))
	for i, l := range sources {
		img, err := s.capturer.CaptureLayer(ctx, l)
		if err != nil {
			return nil, s.fail("export", err)
		}
		data, err := raster.EncodePNG(img)
		if err != nil {
			return nil, s.fail("export", err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%02d-%s.png", i+1, fileSafe(l.Name)))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, s.fail("export", err)
		}
		paths = append(paths, path)
		urls = append(urls, raster.PNGDataURL(data))
	}
	s.addToGallery(ctx, urls)
	logging.Logger().Info("layers exported", "count", len(paths), "dir", dir)
	return paths, nil
}

func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSpace(name))
	if name == "" {
		return "layer"
	}
	return name
}

// Flatten renders the whole finite canvas over its background.
func (s *Session) Flatten(ctx context.Context) (*image.NRGBA, error) {
	doc := s.Document()
	bounds, ok := doc.Bounds()
	if !ok {
		return nil, ErrNothingSelected
	}
	return s.capturer.CaptureRegion(ctx, doc.Layers, bounds, doc.CanvasSettings.Background)
}

// Save finishes the session. A finite canvas is flattened, added to the
// gallery and the session closes; the stored image is returned. An infinite
// canvas is written to w as a session document and stays open.
func (s *Session) Save(ctx context.Context, w io.Writer) (*gallery.Image, error) {
	if !s.IsOpen() {
		return nil, ErrClosed
	}
	if s.Settings().IsInfinite {
		if w == nil {
			return nil, s.fail("save", fmt.Errorf("no destination for session document"))
		}
		if err := s.Document().Encode(w); err != nil {
			return nil, s.fail("save", err)
		}
		s.markSaved()
		logging.Logger().Info("session saved", "mode", "document")
		return nil, nil
	}

	img, err := s.Flatten(ctx)
	if err != nil {
		return nil, s.fail("save", err)
	}
	url, err := raster.EncodeDataURL(img)
	if err != nil {
		return nil, s.fail("save", err)
	}
	var saved *gallery.Image
	if s.cfg.Gallery != nil {
		added, err := s.cfg.Gallery.Add(ctx, []string{url})
		if err != nil {
			return nil, s.fail("save", err)
		}
		saved = &added[0]
	} else {
		saved = &gallery.Image{URL: url}
	}
	logging.Logger().Info("session saved", "mode", "gallery", "id", saved.ID)
	s.Close()
	return saved, nil
}

// SaveDocument writes the session document to w regardless of canvas mode.
func (s *Session) SaveDocument(w io.Writer) error {
	if err := s.Document().Encode(w); err != nil {
		return s.fail("save", err)
	}
	s.markSaved()
	return nil
}

func (s *Session) markSaved() {
	s.mu.Lock()
	s.modified = false
	s.mu.Unlock()
	s.Emit(EventModified, false)
}

// RenderView renders the part of the canvas visible in a view of size
// view at the current pan and zoom. A finite canvas shows its background
// only inside its bounds.
func (s *Session) RenderView(ctx context.Context, view geometry.Size) (*image.NRGBA, error) {
	st := s.viewport.State()
	doc := s.Document()
	cs := doc.CanvasSettings
	region := geometry.NewRect(-st.Pan.X/st.Scale, -st.Pan.Y/st.Scale, view.Width/st.Scale, view.Height/st.Scale)

	layers := doc.Layers
	background := cs.Background
	if !cs.IsInfinite {
		paper, err := layer.NewShape(layer.ShapeRectangle, cs.Background, geometry.NewRect(0, 0, float64(cs.Width), float64(cs.Height)))
		if err != nil {
			return nil, err
		}
		layers = append(layers, paper)
		background = ""
	}
	return s.capturer.CaptureRegionScaled(ctx, layers, region, background, st.Scale)
}
