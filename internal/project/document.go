// Package project reads and writes composer session documents.
package project

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"
)

var (
	// ErrInvalidDocument is returned for JSON that is not a session document.
	ErrInvalidDocument = errors.New("invalid session file")
	// ErrNoEmbeddedPreset is returned for a PNG without a session chunk.
	ErrNoEmbeddedPreset = errors.New("PNG carries no canvas preset")
	// ErrPresetsUnsupported is returned when the app does not accept canvas
	// presets.
	ErrPresetsUnsupported = errors.New("canvas presets are not supported here")
)

const (
	DefaultWidth      = 2048
	DefaultHeight     = 2048
	DefaultBackground = "#ffffff"
	DefaultGridSize   = 32
	DefaultGridColor  = "#e5e7eb"
	DefaultGuideColor = "#ec4899"

	// MaxCanvasSize bounds each side of a finite canvas.
	MaxCanvasSize = 16384
)

// Grid configures the background grid.
type Grid struct {
	Visible bool    `json:"visible"`
	Snap    bool    `json:"snap"`
	Size    float64 `json:"size"`
	Color   string  `json:"color"`
}

// Guides configures smart guides.
type Guides struct {
	Enabled bool   `json:"enabled"`
	Color   string `json:"color"`
}

// CanvasSettings is the per-session canvas configuration.
type CanvasSettings struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	Grid       Grid   `json:"grid"`
	Guides     Guides `json:"guides"`
	IsInfinite bool   `json:"isInfinite"`
}

// DefaultCanvasSettings returns the settings of a blank canvas.
func DefaultCanvasSettings() CanvasSettings {
	return CanvasSettings{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		Background: DefaultBackground,
		Grid:       Grid{Size: DefaultGridSize, Color: DefaultGridColor},
		Guides:     Guides{Enabled: true, Color: DefaultGuideColor},
	}
}

// Document is the persisted form of a session.
type Document struct {
	CanvasSettings CanvasSettings `json:"canvasSettings"`
	Layers         []layer.Layer  `json:"layers"`
}

// Validate checks the settings and every layer.
func (d *Document) Validate() error {
	if !d.CanvasSettings.IsInfinite && (d.CanvasSettings.Width <= 0 || d.CanvasSettings.Height <= 0) {
		return fmt.Errorf("%w: canvas size %dx%d", ErrInvalidDocument, d.CanvasSettings.Width, d.CanvasSettings.Height)
	}
	if d.CanvasSettings.Width > MaxCanvasSize || d.CanvasSettings.Height > MaxCanvasSize {
		return fmt.Errorf("%w: canvas larger than %d pixels", ErrInvalidDocument, MaxCanvasSize)
	}
	for i, l := range d.Layers {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%w: layer %d: %w", ErrInvalidDocument, i, err)
		}
	}
	return nil
}

// Decode reads a document. canvasSettings must be an object and layers an
// array; missing settings fields keep their defaults.
func Decode(r io.Reader) (*Document, error) {
	var raw struct {
		CanvasSettings json.RawMessage `json:"canvasSettings"`
		Layers         json.RawMessage `json:"layers"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if !startsWith(raw.CanvasSettings, '{') {
		return nil, fmt.Errorf("%w: canvasSettings must be an object", ErrInvalidDocument)
	}
	if !startsWith(raw.Layers, '[') {
		return nil, fmt.Errorf("%w: layers must be an array", ErrInvalidDocument)
	}

	doc := &Document{CanvasSettings: DefaultCanvasSettings()}
	if err := json.Unmarshal(raw.CanvasSettings, &doc.CanvasSettings); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := json.Unmarshal(raw.Layers, &doc.Layers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.Layers == nil {
		doc.Layers = []layer.Layer{}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func startsWith(raw json.RawMessage, c byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == c
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	out := *d
	if out.Layers == nil {
		out.Layers = []layer.Layer{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// LoadFile reads a document from path. Relative image paths are resolved
// against the file's directory.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for i := range doc.Layers {
		if img := doc.Layers[i].Image; img != nil && isRelativePath(img.URL) {
			img.URL = filepath.Join(dir, img.URL)
		}
	}
	return doc, nil
}

// SaveFile writes the document to path. Image files under the document's
// directory are stored relative to it.
func (d *Document) SaveFile(path string) error {
	out := Document{CanvasSettings: d.CanvasSettings, Layers: layer.CloneList(d.Layers)}
	dir := filepath.Dir(path)
	for i := range out.Layers {
		img := out.Layers[i].Image
		if img == nil || !filepath.IsAbs(img.URL) {
			continue
		}
		if rel, err := filepath.Rel(dir, img.URL); err == nil && !strings.HasPrefix(rel, "..") {
			img.URL = rel
		}
	}

	var buf bytes.Buffer
	if err := out.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Bounds returns the region a flattened render covers: the canvas of a
// finite document, or the box around the layers of an infinite one. It
// reports false for an infinite document without layers.
func (d *Document) Bounds() (geometry.Rect, bool) {
	cs := d.CanvasSettings
	if !cs.IsInfinite {
		return geometry.NewRect(0, 0, float64(cs.Width), float64(cs.Height)), true
	}
	return layer.BoundingBoxOf(d.Layers)
}

func isRelativePath(ref string) bool {
	return ref != "" && !strings.Contains(ref, ":") && !filepath.IsAbs(ref)
}
