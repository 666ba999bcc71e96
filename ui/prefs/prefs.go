// Package prefs provides JSON-based application preferences.
package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"layer-composer/internal/project"
)

const (
	appDir    = "layer-composer"
	prefsFile = "preferences.json"
)

// DefaultLogAutoHide is the delay in seconds before an idle generation log
// collapses.
const DefaultLogAutoHide = 5.0

// Preference keys.
const (
	KeyLastDir          = "lastDir"
	KeyCanvasWidth      = "canvasWidth"
	KeyCanvasHeight     = "canvasHeight"
	KeyAIEndpoint       = "aiEndpoint"
	KeyAIKey            = "aiKey"
	KeyGalleryDB        = "galleryDB"
	KeyLogAutoHide      = "logAutoHideSeconds"
	KeyLanguage         = "language"
	KeyAutosaveInterval = "autosaveSeconds"
)

// Prefs stores application preferences as a key-value map.
type Prefs struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// Dir returns ~/.config/layer-composer, the directory holding preferences,
// the gallery database and autosaves.
func Dir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, appDir)
}

// Load reads preferences from ~/.config/layer-composer/preferences.json.
// Returns a Prefs with defaults if the file doesn't exist.
func Load() *Prefs {
	return LoadFrom(filepath.Join(Dir(), prefsFile))
}

// LoadFrom reads preferences from path.
func LoadFrom(path string) *Prefs {
	p := &Prefs{
		values: make(map[string]interface{}),
		path:   path,
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(data, &p.values)
	return p
}

// Path returns the preferences file path.
func (p *Prefs) Path() string {
	return p.path
}

// Save writes preferences to disk.
func (p *Prefs) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// FloatWithFallback returns a float64 preference, or fallback if not set.
func (p *Prefs) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat stores a float64 preference.
func (p *Prefs) SetFloat(key string, val float64) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// String returns a string preference, or fallback if not set.
func (p *Prefs) String(key, fallback string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// SetString stores a string preference.
func (p *Prefs) SetString(key string, val string) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Bool returns a bool preference, or fallback if not set.
func (p *Prefs) Bool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// SetBool stores a bool preference.
func (p *Prefs) SetBool(key string, val bool) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// CanvasSize returns the size of new blank canvases.
func (p *Prefs) CanvasSize() (int, int) {
	w := int(p.FloatWithFallback(KeyCanvasWidth, project.DefaultWidth))
	h := int(p.FloatWithFallback(KeyCanvasHeight, project.DefaultHeight))
	if w <= 0 || h <= 0 {
		return project.DefaultWidth, project.DefaultHeight
	}
	return w, h
}

// GalleryDB returns the gallery database path.
func (p *Prefs) GalleryDB() string {
	return p.String(KeyGalleryDB, filepath.Join(filepath.Dir(p.path), "gallery.db"))
}

// LogAutoHideSeconds returns how long the generation log stays visible
// after the last job finishes.
func (p *Prefs) LogAutoHideSeconds() float64 {
	return p.FloatWithFallback(KeyLogAutoHide, DefaultLogAutoHide)
}
