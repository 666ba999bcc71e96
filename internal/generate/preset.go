package generate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

// UserPromptPlaceholder is replaced with the user's text in preset templates.
const UserPromptPlaceholder = "{{userPrompt}}"

// DefaultLanguage is used when a localized string lacks the requested one.
const DefaultLanguage = "en"

//go:embed presets.json
var defaultCatalog []byte

// Localized maps language codes to text.
type Localized map[string]string

// In returns the text for lang, falling back to English and then to the
// first available language in code order.
func (l Localized) In(lang string) string {
	if s, ok := l[lang]; ok {
		return s
	}
	if s, ok := l[DefaultLanguage]; ok {
		return s
	}
	if len(l) == 0 {
		return ""
	}
	return l[slices.Sorted(maps.Keys(l))[0]]
}

// Preset is a named generation recipe.
type Preset struct {
	ID                   string    `json:"id"`
	Name                 Localized `json:"name"`
	Description          Localized `json:"description"`
	RequiresImageContext bool      `json:"requiresImageContext"`
	Refine               bool      `json:"refine"`
	Template             Localized `json:"prompt"`
}

// Render substitutes userPrompt into the template for lang. A template
// without the placeholder gets the user text appended.
func (p Preset) Render(userPrompt, lang string) string {
	tmpl := p.Template.In(lang)
	if !strings.Contains(tmpl, UserPromptPlaceholder) {
		if userPrompt == "" {
			return tmpl
		}
		return strings.TrimSpace(tmpl + " " + userPrompt)
	}
	return strings.ReplaceAll(tmpl, UserPromptPlaceholder, userPrompt)
}

// AppPresets is the preset metadata for one app.
type AppPresets struct {
	SupportsCanvasPresets bool     `json:"supportsCanvasPresets"`
	Presets               []Preset `json:"presets"`
}

// PresetCatalog holds preset metadata keyed by app id.
type PresetCatalog struct {
	apps map[string]AppPresets
}

// LoadCatalog decodes a catalog document.
func LoadCatalog(r io.Reader) (*PresetCatalog, error) {
	apps := make(map[string]AppPresets)
	if err := json.NewDecoder(r).Decode(&apps); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	for app, a := range apps {
		for _, p := range a.Presets {
			if p.ID == "" {
				return nil, fmt.Errorf("app %q: preset without id", app)
			}
		}
	}
	return &PresetCatalog{apps: apps}, nil
}

// LoadCatalogFile reads a catalog from path.
func LoadCatalogFile(path string) (*PresetCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open presets: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *PresetCatalog {
	c, err := LoadCatalog(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(err)
	}
	return c
}

// Presets returns the presets defined for app.
func (c *PresetCatalog) Presets(app string) []Preset {
	if c == nil {
		return nil
	}
	return append([]Preset(nil), c.apps[app].Presets...)
}

// Lookup finds a preset of app by id.
func (c *PresetCatalog) Lookup(app, id string) (Preset, bool) {
	for _, p := range c.Presets(app) {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// SupportsCanvasPresets reports whether app accepts PNG-embedded canvas
// presets.
func (c *PresetCatalog) SupportsCanvasPresets(app string) bool {
	if c == nil {
		return false
	}
	return c.apps[app].SupportsCanvasPresets
}
