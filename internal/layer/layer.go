// Package layer defines the visual elements composed on the canvas.
//
// A Layer carries the fields every element shares (placement, rotation,
// opacity, blend mode, flags) plus exactly one variant payload selected by
// Kind. Variants never change in place; flattening a text or shape layer into
// pixels produces a new image layer.
package layer

import (
	"errors"
	"fmt"
	"math"

	"layer-composer/pkg/geometry"

	"github.com/google/uuid"
)

// ErrDegenerate is returned for layers without a positive width and height.
var ErrDegenerate = errors.New("layer has zero or negative size")

// Kind discriminates the layer variant.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindShape Kind = "shape"
)

// TextTransform is applied to text content before measuring and drawing.
type TextTransform string

const (
	TransformNone      TextTransform = "none"
	TransformUppercase TextTransform = "uppercase"
)

// TextAlign positions lines horizontally inside the layer box.
type TextAlign string

const (
	AlignLeft   TextAlign = "left"
	AlignCenter TextAlign = "center"
	AlignRight  TextAlign = "right"
)

// ShapeType selects the outline drawn by a shape layer.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeEllipse   ShapeType = "ellipse"
)

// Layer is one positioned, transformable visual element.
type Layer struct {
	ID   string
	Name string

	// Placement in canvas units; X,Y is the top-left before rotation.
	X, Y          float64
	Width, Height float64
	Rotation      float64 // degrees about the layer center

	Opacity   float64 // 0-100
	BlendMode BlendMode
	Visible   bool
	Locked    bool

	Kind  Kind
	Image *ImageContent
	Text  *TextContent
	Shape *ShapeContent
}

// ImageContent references bitmap pixels. The reference is shared, not copied,
// when a layer is duplicated.
type ImageContent struct {
	URL string
}

// TextContent holds styled text.
type TextContent struct {
	Text       string
	FontFamily string
	FontSize   float64 // px at 1x
	FontWeight string  // "normal", "bold" or a numeric weight
	FontStyle  string  // "normal" or "italic"
	Transform  TextTransform
	Align      TextAlign
	Color      string
	LineHeight float64 // multiplier of FontSize
}

// ShapeContent holds a filled vector shape.
type ShapeContent struct {
	Type         ShapeType
	FillColor    string
	BorderRadius float64
}

// NewID returns a fresh opaque layer id.
func NewID() string {
	return uuid.NewString()
}

func base(kind Kind, r geometry.Rect) (Layer, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return Layer{}, fmt.Errorf("new %s layer %gx%g: %w", kind, r.Width, r.Height, ErrDegenerate)
	}
	return Layer{
		ID:        NewID(),
		X:         r.X,
		Y:         r.Y,
		Width:     r.Width,
		Height:    r.Height,
		Opacity:   100,
		BlendMode: BlendNormal,
		Visible:   true,
		Kind:      kind,
	}, nil
}

// NewImage creates an image layer showing url stretched over r.
func NewImage(url string, r geometry.Rect) (Layer, error) {
	l, err := base(KindImage, r)
	if err != nil {
		return Layer{}, err
	}
	l.Name = "Image"
	l.Image = &ImageContent{URL: url}
	return l, nil
}

// DefaultTextContent returns the style used for newly added text layers.
func DefaultTextContent() TextContent {
	return TextContent{
		Text:       "Double-click to edit",
		FontFamily: "Inter",
		FontSize:   48,
		FontWeight: "normal",
		FontStyle:  "normal",
		Transform:  TransformNone,
		Align:      AlignLeft,
		Color:      "#000000",
		LineHeight: 1.2,
	}
}

// NewText creates a text layer.
func NewText(content TextContent, r geometry.Rect) (Layer, error) {
	l, err := base(KindText, r)
	if err != nil {
		return Layer{}, err
	}
	l.Name = "Text"
	l.Text = &content
	return l, nil
}

// NewShape creates a shape layer.
func NewShape(shape ShapeType, fill string, r geometry.Rect) (Layer, error) {
	l, err := base(KindShape, r)
	if err != nil {
		return Layer{}, err
	}
	switch shape {
	case ShapeEllipse:
		l.Name = "Ellipse"
	default:
		shape = ShapeRectangle
		l.Name = "Rectangle"
	}
	l.Shape = &ShapeContent{Type: shape, FillColor: fill}
	return l, nil
}

// Validate checks the structural invariants of a layer.
func (l Layer) Validate() error {
	if l.ID == "" {
		return errors.New("layer without id")
	}
	if l.Width <= 0 || l.Height <= 0 {
		return fmt.Errorf("layer %s: %w", l.ID, ErrDegenerate)
	}
	if l.Opacity < 0 || l.Opacity > 100 {
		return fmt.Errorf("layer %s: opacity %g out of range", l.ID, l.Opacity)
	}
	var payloads int
	for _, set := range []bool{l.Image != nil, l.Text != nil, l.Shape != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("layer %s: expected one payload, found %d", l.ID, payloads)
	}
	switch {
	case l.Kind == KindImage && l.Image != nil:
	case l.Kind == KindText && l.Text != nil:
	case l.Kind == KindShape && l.Shape != nil:
	default:
		return fmt.Errorf("layer %s: kind %q does not match payload", l.ID, l.Kind)
	}
	return nil
}

// Bounds returns the unrotated layer box.
func (l Layer) Bounds() geometry.Rect {
	return geometry.Rect{X: l.X, Y: l.Y, Width: l.Width, Height: l.Height}
}

// RotatedBounds returns the axis-aligned box enclosing the rotated layer.
func (l Layer) RotatedBounds() geometry.Rect {
	return geometry.RotatedBounds(l.Bounds(), l.Rotation)
}

// Center returns the rotation center.
func (l Layer) Center() geometry.Point2D {
	return l.Bounds().Center()
}

// Contains reports whether p hits the rotated layer.
func (l Layer) Contains(p geometry.Point2D) bool {
	return geometry.PointInRotatedRect(p, l.Bounds(), l.Rotation)
}

// SetBounds moves and resizes the layer.
func (l *Layer) SetBounds(r geometry.Rect) {
	l.X, l.Y, l.Width, l.Height = r.X, r.Y, r.Width, r.Height
}

// Alpha returns opacity as a 0-1 factor.
func (l Layer) Alpha() float64 {
	return math.Max(0, math.Min(100, l.Opacity)) / 100
}

// EffectiveRadius returns the corner radius clamped to half the smaller side.
func (l Layer) EffectiveRadius() float64 {
	if l.Shape == nil || l.Shape.Type != ShapeRectangle {
		return 0
	}
	limit := math.Min(l.Width, l.Height) / 2
	return math.Max(0, math.Min(l.Shape.BorderRadius, limit))
}

// Clone returns a deep copy whose payload can be mutated independently.
func (l Layer) Clone() Layer {
	c := l
	if l.Image != nil {
		img := *l.Image
		c.Image = &img
	}
	if l.Text != nil {
		txt := *l.Text
		c.Text = &txt
	}
	if l.Shape != nil {
		shp := *l.Shape
		c.Shape = &shp
	}
	return c
}

// Equal reports structural equality including payloads.
func Equal(a, b Layer) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Kind != b.Kind ||
		a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height ||
		a.Rotation != b.Rotation || a.Opacity != b.Opacity || a.BlendMode != b.BlendMode ||
		a.Visible != b.Visible || a.Locked != b.Locked {
		return false
	}
	if (a.Image == nil) != (b.Image == nil) || (a.Text == nil) != (b.Text == nil) || (a.Shape == nil) != (b.Shape == nil) {
		return false
	}
	if a.Image != nil && *a.Image != *b.Image {
		return false
	}
	if a.Text != nil && *a.Text != *b.Text {
		return false
	}
	if a.Shape != nil && *a.Shape != *b.Shape {
		return false
	}
	return true
}
