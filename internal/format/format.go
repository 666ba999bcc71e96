// Package format provides named canvas formats for new documents.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"layer-composer/internal/project"
)

// Kind groups formats in menus.
type Kind string

const (
	KindScreen Kind = "screen"
	KindSocial Kind = "social"
	KindPrint  Kind = "print"
)

// Format is a canvas size. Print formats are given in inches and resolved
// at DPI; screen formats give pixels directly.
type Format struct {
	Name         string  `json:"name"`
	Kind         Kind    `json:"kind"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	WidthInches  float64 `json:"width_inches,omitempty"`
	HeightInches float64 `json:"height_inches,omitempty"`
	DPI          float64 `json:"dpi,omitempty"`
	Background   string  `json:"background,omitempty"`
}

// Pixels returns the canvas size in pixels.
func (f *Format) Pixels() (int, int) {
	if f.WidthInches > 0 && f.HeightInches > 0 {
		dpi := f.DPI
		if dpi <= 0 {
			dpi = 300
		}
		return int(math.Round(f.WidthInches * dpi)), int(math.Round(f.HeightInches * dpi))
	}
	return f.Width, f.Height
}

// Validate checks that the format has a name and a positive size.
func (f *Format) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("format name is required")
	}
	w, h := f.Pixels()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("format %q: dimensions must be positive", f.Name)
	}
	if w > project.MaxCanvasSize || h > project.MaxCanvasSize {
		return fmt.Errorf("format %q: %dx%d exceeds %d pixels", f.Name, w, h, project.MaxCanvasSize)
	}
	return nil
}

// CanvasSettings returns default settings resized to the format.
func (f *Format) CanvasSettings() project.CanvasSettings {
	cs := project.DefaultCanvasSettings()
	cs.Width, cs.Height = f.Pixels()
	if f.Background != "" {
		cs.Background = f.Background
	}
	return cs
}

// SaveToFile writes a list of formats as JSON.
func SaveToFile(path string, formats []*Format) error {
	data, err := json.MarshalIndent(formats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads and validates a JSON list of formats.
func LoadFromFile(path string) ([]*Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var formats []*Format
	if err := json.Unmarshal(data, &formats); err != nil {
		return nil, err
	}
	for _, f := range formats {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("invalid canvas format: %w", err)
		}
	}
	return formats, nil
}

var (
	mu       sync.RWMutex
	registry = make(map[string]*Format)
	order    []string
)

// Register adds or replaces a format. Replacing keeps the original position.
func Register(f *Format) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[f.Name]; !ok {
		order = append(order, f.Name)
	}
	registry[f.Name] = f
}

// Get returns the format called name.
func Get(name string) (*Format, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// List returns all formats in registration order.
func List() []*Format {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]*Format, 0, len(order))
	for _, name := range order {
		out = append(out, registry[name])
	}
	return out
}

// LoadUserFormats registers the formats stored at path. A missing file is
// not an error.
func LoadUserFormats(path string) error {
	formats, err := LoadFromFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	for _, f := range formats {
		Register(f)
	}
	return nil
}

func init() {
	for _, f := range builtin() {
		Register(f)
	}
}
