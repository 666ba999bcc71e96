package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"layer-composer/internal/gallery"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/project"
	"layer-composer/pkg/geometry"
)

// NewBlank opens an empty 2048×2048 canvas.
func (s *Session) NewBlank() {
	s.reset(project.DefaultCanvasSettings(), nil)
	logging.Logger().Info("session opened", "mode", "blank")
}

// NewCanvas opens an empty canvas with the given settings.
func (s *Session) NewCanvas(cs project.CanvasSettings) error {
	doc := project.Document{CanvasSettings: cs}
	if err := doc.Validate(); err != nil {
		return err
	}
	s.reset(cs, nil)
	logging.Logger().Info("session opened", "mode", "sized", "width", cs.Width, "height", cs.Height)
	return nil
}

// NewInfinite opens an empty unbounded canvas.
func (s *Session) NewInfinite() {
	cs := project.DefaultCanvasSettings()
	cs.IsInfinite = true
	s.reset(cs, nil)
	logging.Logger().Info("session opened", "mode", "infinite")
}

// Open shows the composer, starting a blank canvas when nothing is loaded.
func (s *Session) Open() {
	s.mu.Lock()
	wasOpen := s.open
	s.mu.Unlock()
	if !wasOpen {
		s.NewBlank()
		return
	}
	s.Show()
}

// Hide keeps the session alive but out of view. Jobs keep running.
func (s *Session) Hide() {
	s.setHidden(true)
}

// Show brings a hidden session back.
func (s *Session) Show() {
	s.setHidden(false)
}

func (s *Session) setHidden(hidden bool) {
	s.mu.Lock()
	changed := s.open && s.hidden != hidden
	if changed {
		s.hidden = hidden
	}
	s.mu.Unlock()
	if changed {
		s.Emit(EventVisibilityChanged, hidden)
	}
}

// RequestClose reports whether closing needs the user's confirmation, which
// is the case when layers exist and have not been saved.
func (s *Session) RequestClose() (needsConfirm bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open && s.modified && len(s.history.Live()) > 0
}

// Close discards the session and aborts the latest generation job.
func (s *Session) Close() {
	s.generator.Cancel()
	s.mu.Lock()
	wasOpen := s.open
	s.open = false
	s.hidden = false
	s.modified = false
	s.history.Reset(nil)
	s.selection.Clear()
	s.drag = nil
	s.guides = nil
	s.errMsg = ""
	s.mu.Unlock()
	if wasOpen {
		logging.Logger().Info("session closed")
		s.Emit(EventClosed, nil)
	}
}

// ImportJSON opens a session document.
func (s *Session) ImportJSON(r io.Reader) error {
	doc, err := project.Decode(r)
	if err != nil {
		return s.fail("import json", err)
	}
	s.reset(doc.CanvasSettings, doc.Layers)
	logging.Logger().Info("session opened", "mode", "json", "layers", len(doc.Layers))
	return nil
}

// ImportPNGPreset opens the document embedded in a PNG. supportsPresets is
// the host application's capability flag.
func (s *Session) ImportPNGPreset(data []byte, supportsPresets bool) error {
	if !supportsPresets {
		return s.fail("import preset", project.ErrPresetsUnsupported)
	}
	doc, err := project.ExtractFromPNG(data)
	if err != nil {
		return s.fail("import preset", err)
	}
	s.reset(doc.CanvasSettings, doc.Layers)
	logging.Logger().Info("session opened", "mode", "preset", "layers", len(doc.Layers))
	return nil
}

// ImportFile opens a .json session, a PNG carrying a preset, or any other
// supported bitmap as an image layer.
func (s *Session) ImportFile(ctx context.Context, path string, data []byte) error {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return s.ImportJSON(bytes.NewReader(data))
	case strings.HasSuffix(lower, ".png") && s.SupportsCanvasPresets():
		if _, err := project.ExtractFromPNG(data); err == nil {
			return s.ImportPNGPreset(data, true)
		}
	}
	_, err := s.ImportImages(ctx, []string{path})
	return err
}

// ImportFromGallery adds a gallery image as a layer.
func (s *Session) ImportFromGallery(ctx context.Context, id string) ([]layer.Layer, error) {
	if s.cfg.Gallery == nil {
		return nil, s.fail("import gallery", fmt.Errorf("%w: no gallery configured", gallery.ErrNotFound))
	}
	img, err := s.cfg.Gallery.Get(ctx, id)
	if err != nil {
		return nil, s.fail("import gallery", err)
	}
	return s.ImportImages(ctx, []string{img.URL})
}

// ImportImages loads refs and adds them as image layers at their intrinsic
// size. On an empty session the first image sizes a finite canvas and sits
// at its origin; later images cascade from there.
func (s *Session) ImportImages(ctx context.Context, refs []string) ([]layer.Layer, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if s.cfg.Loader == nil {
		return nil, s.fail("import images", fmt.Errorf("no bitmap loader configured"))
	}
	sizes := make([]geometry.Size, len(refs))
	for i, ref := range refs {
		img, err := s.cfg.Loader.Load(ctx, ref)
		if err != nil {
			return nil, s.fail("import images", fmt.Errorf("load %.60s: %w", ref, err))
		}
		b := img.Bounds()
		sizes[i] = geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
	}

	s.mu.Lock()
	if !s.open {
		s.settings = project.DefaultCanvasSettings()
		s.history.Reset(nil)
		s.selection.Clear()
		s.open = true
		s.hidden = false
		s.mu.Unlock()
		s.Emit(EventOpened, nil)
		s.mu.Lock()
	}
	empty := len(s.history.Live()) == 0
	var origin geometry.Point2D
	if empty && !s.settings.IsInfinite {
		s.settings.Width = int(sizes[0].Width)
		s.settings.Height = int(sizes[0].Height)
	} else {
		origin = s.insertOriginLocked(sizes[0])
	}
	cs := s.settings
	view := s.viewSize
	s.mu.Unlock()

	created := make([]layer.Layer, len(refs))
	for i, ref := range refs {
		off := float64(i) * 20
		l, err := layer.NewImage(ref, geometry.NewRect(origin.X+off, origin.Y+off, sizes[i].Width, sizes[i].Height))
		if err != nil {
			return nil, s.fail("import images", err)
		}
		created[i] = l
	}
	s.insertAndSelect(created)

	if empty {
		s.Emit(EventSettingsChanged, cs)
		if !cs.IsInfinite && view.Width > 0 {
			s.viewport.Fit(geometry.NewRect(0, 0, float64(cs.Width), float64(cs.Height)), view, 40)
		}
	}
	logging.Logger().Info("images imported", "count", len(created))
	return created, nil
}

// insertOriginLocked returns the top-left for a new item of size sz,
// centred in the visible part of the canvas.
func (s *Session) insertOriginLocked(sz geometry.Size) geometry.Point2D {
	c := s.centerLocked()
	return geometry.Point2D{X: c.X - sz.Width/2, Y: c.Y - sz.Height/2}
}

func (s *Session) centerLocked() geometry.Point2D {
	if s.viewSize.Width > 0 && s.viewSize.Height > 0 {
		return s.viewport.ScreenToCanvas(geometry.Point2D{X: s.viewSize.Width / 2, Y: s.viewSize.Height / 2})
	}
	if s.settings.IsInfinite {
		return geometry.Point2D{}
	}
	return geometry.Point2D{X: float64(s.settings.Width) / 2, Y: float64(s.settings.Height) / 2}
}

// SetViewSize records the size of the widget showing the canvas.
func (s *Session) SetViewSize(sz geometry.Size) {
	s.mu.Lock()
	s.viewSize = sz
	s.mu.Unlock()
}

// FitToView zooms so the canvas, or the layers of an infinite canvas, fill
// the view.
func (s *Session) FitToView() {
	s.mu.RLock()
	view := s.viewSize
	r := geometry.NewRect(0, 0, float64(s.settings.Width), float64(s.settings.Height))
	if s.settings.IsInfinite {
		box, ok := layer.BoundingBoxOf(s.history.Live())
		if !ok {
			box = geometry.NewRect(0, 0, float64(s.settings.Width), float64(s.settings.Height))
		}
		r = box
	}
	s.mu.RUnlock()
	s.viewport.Fit(r, view, 40)
}

// insertAndSelect puts ls on top of the live list as one entry and selects
// them.
func (s *Session) insertAndSelect(ls []layer.Layer) {
	s.commit(true, func(live []layer.Layer) []layer.Layer {
		return append(layer.CloneList(ls), live...)
	})
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	s.SelectIDs(ids)
}
