// Package app holds the composer session: the single state object that owns
// the layer list, history, selection, viewport and generation jobs, and
// notifies views through events.
package app

import (
	"errors"
	"sync"

	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/history"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"
	"layer-composer/internal/selection"
	"layer-composer/internal/viewport"
	"layer-composer/pkg/geometry"
)

// ErrClosed is returned by operations on a session that is not open.
var ErrClosed = errors.New("session is closed")

// EventType identifies different session events.
type EventType int

const (
	EventOpened EventType = iota
	EventClosed
	EventLayersChanged
	EventSelectionChanged
	EventViewportChanged
	EventSettingsChanged
	EventLogAppended
	EventErrorChanged
	EventGenerationChanged
	EventModified
	EventVisibilityChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Config wires a session to its collaborators. Nil fields disable the
// features that need them.
type Config struct {
	AppID   string
	Loader  raster.Loader
	Gallery gallery.Store
	Client  generate.Client
	Presets *generate.PresetCatalog
}

// Session is the editing state of one composer window.
type Session struct {
	mu sync.RWMutex

	cfg       Config
	capturer  *raster.Capturer
	generator *generate.Orchestrator

	settings  project.CanvasSettings
	history   *history.Manager
	selection *selection.Set
	viewport  *viewport.Controller
	viewSize  geometry.Size
	drag      *selection.Drag
	dragStart []layer.Layer
	guides    []selection.GuideLine

	open     bool
	hidden   bool
	modified bool
	revision int
	errMsg   string

	// Event listeners
	listeners map[EventType][]EventListener
}

// NewSession creates a closed session.
func NewSession(cfg Config) *Session {
	if cfg.Presets == nil {
		cfg.Presets = generate.DefaultCatalog()
	}
	capturer := raster.NewCapturer(cfg.Loader)
	s := &Session{
		cfg:       cfg,
		capturer:  capturer,
		settings:  project.DefaultCanvasSettings(),
		history:   history.New(nil),
		selection: selection.NewSet(),
		viewport:  viewport.New(),
		listeners: make(map[EventType][]EventListener),
	}
	s.generator = generate.New(cfg.Client, capturer, cfg.Loader, cfg.Presets, cfg.AppID)
	s.generator.Gallery = cfg.Gallery
	s.generator.OnState = func(generate.State) { s.Emit(EventGenerationChanged, s.generator.Running()) }
	s.generator.Log.Observe(func(e generate.Entry) { s.Emit(EventLogAppended, e) })
	s.viewport.Observe(func(st viewport.State) { s.Emit(EventViewportChanged, st) })
	return s
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type. It must not be
// called with the session lock held.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Capturer returns the rasterizer the session renders with.
func (s *Session) Capturer() *raster.Capturer { return s.capturer }

// Viewport returns the pan/zoom controller.
func (s *Session) Viewport() *viewport.Controller { return s.viewport }

// Log returns the user-facing generation log.
func (s *Session) Log() *generate.Log { return s.generator.Log }

// Presets returns the presets offered by this application.
func (s *Session) Presets() []generate.Preset {
	return s.cfg.Presets.Presets(s.cfg.AppID)
}

// SupportsCanvasPresets reports whether PNG-embedded presets may be imported.
func (s *Session) SupportsCanvasPresets() bool {
	return s.cfg.Presets.SupportsCanvasPresets(s.cfg.AppID)
}

// Gallery returns the configured gallery store, which may be nil.
func (s *Session) Gallery() gallery.Store { return s.cfg.Gallery }

// IsOpen reports whether the composer is open.
func (s *Session) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// IsHidden reports whether the open composer is hidden.
func (s *Session) IsHidden() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hidden
}

// Modified reports whether the session has unsaved changes.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// Revision increases with every committed change.
func (s *Session) Revision() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Settings returns the canvas settings.
func (s *Session) Settings() project.CanvasSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the canvas settings.
func (s *Session) SetSettings(cs project.CanvasSettings) error {
	doc := project.Document{CanvasSettings: cs}
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = cs
	s.modified = true
	s.revision++
	s.mu.Unlock()
	s.Emit(EventSettingsChanged, cs)
	return nil
}

// Layers returns a copy of the live layer list, topmost first.
func (s *Session) Layers() []layer.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Current()
}

// Layer returns the live layer with id.
func (s *Session) Layer(id string) (layer.Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := layer.Find(s.history.Live(), id)
	return l.Clone(), ok
}

// Document returns the session as a persistable document.
func (s *Session) Document() *project.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &project.Document{CanvasSettings: s.settings, Layers: s.history.Current()}
}

// Err returns the message of the last surfaced error, or "".
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// ClearErr dismisses the surfaced error.
func (s *Session) ClearErr() {
	s.setErr("")
}

func (s *Session) setErr(msg string) {
	s.mu.Lock()
	changed := s.errMsg != msg
	s.errMsg = msg
	s.mu.Unlock()
	if changed {
		s.Emit(EventErrorChanged, msg)
	}
}

// fail surfaces err and returns it.
func (s *Session) fail(op string, err error) error {
	logging.Logger().Warn("session operation failed", "op", op, "err", err)
	s.setErr(err.Error())
	return err
}

// reset replaces the whole session content and opens it.
func (s *Session) reset(cs project.CanvasSettings, layers []layer.Layer) {
	s.mu.Lock()
	s.settings = cs
	s.history.Reset(layers)
	s.selection.Clear()
	s.drag = nil
	s.dragStart = nil
	s.guides = nil
	s.open = true
	s.hidden = false
	s.modified = false
	s.revision++
	s.errMsg = ""
	view := s.viewSize
	s.mu.Unlock()

	if !cs.IsInfinite && view.Width > 0 {
		s.viewport.Fit(geometry.NewRect(0, 0, float64(cs.Width), float64(cs.Height)), view, 40)
	}
	s.Emit(EventOpened, nil)
	s.Emit(EventSettingsChanged, cs)
	s.Emit(EventLayersChanged, nil)
	s.Emit(EventSelectionChanged, nil)
}

// commit applies fn to the live list and commits the result. Selected ids
// that no longer exist are dropped.
func (s *Session) commit(final bool, fn func(live []layer.Layer) []layer.Layer) bool {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return false
	}
	next := fn(s.history.Current())
	added := s.history.Commit(next, final)
	if added {
		s.modified = true
		s.revision++
	}
	dropped := s.retainSelectionLocked()
	s.mu.Unlock()

	s.Emit(EventLayersChanged, nil)
	if dropped {
		s.Emit(EventSelectionChanged, nil)
	}
	if added {
		s.Emit(EventModified, true)
	}
	return added
}

func (s *Session) retainSelectionLocked() bool {
	before := s.selection.Len()
	live := s.history.Live()
	s.selection.Retain(func(id string) bool { return layer.IndexOf(live, id) >= 0 })
	return s.selection.Len() != before
}
