package layer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// wireLayer is the flat persisted form: common fields plus the variant
// fields of whichever kind "type" names.
type wireLayer struct {
	ID        string    `json:"id"`
	Type      Kind      `json:"type"`
	Name      string    `json:"name,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Rotation  float64   `json:"rotation"`
	Opacity   *float64  `json:"opacity,omitempty"`
	BlendMode BlendMode `json:"blendMode"`
	IsVisible *bool     `json:"isVisible,omitempty"`
	IsLocked  bool      `json:"isLocked"`

	URL string `json:"url,omitempty"`

	Text          *string         `json:"text,omitempty"`
	FontFamily    string          `json:"fontFamily,omitempty"`
	FontSize      float64         `json:"fontSize,omitempty"`
	FontWeight    json.RawMessage `json:"fontWeight,omitempty"`
	FontStyle     string          `json:"fontStyle,omitempty"`
	TextTransform TextTransform   `json:"textTransform,omitempty"`
	TextAlign     TextAlign       `json:"textAlign,omitempty"`
	Color         string          `json:"color,omitempty"`
	LineHeight    float64         `json:"lineHeight,omitempty"`

	ShapeType    ShapeType `json:"shapeType,omitempty"`
	FillColor    string    `json:"fillColor,omitempty"`
	BorderRadius float64   `json:"borderRadius,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l Layer) MarshalJSON() ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	opacity := l.Opacity
	visible := l.Visible
	w := wireLayer{
		ID:        l.ID,
		Type:      l.Kind,
		Name:      l.Name,
		X:         l.X,
		Y:         l.Y,
		Width:     l.Width,
		Height:    l.Height,
		Rotation:  l.Rotation,
		Opacity:   &opacity,
		BlendMode: l.BlendMode,
		IsVisible: &visible,
		IsLocked:  l.Locked,
	}
	switch l.Kind {
	case KindImage:
		w.URL = l.Image.URL
	case KindText:
		t := l.Text
		text := t.Text
		w.Text = &text
		w.FontFamily = t.FontFamily
		w.FontSize = t.FontSize
		w.FontWeight, _ = json.Marshal(t.FontWeight)
		w.FontStyle = t.FontStyle
		w.TextTransform = t.Transform
		w.TextAlign = t.Align
		w.Color = t.Color
		w.LineHeight = t.LineHeight
	case KindShape:
		w.ShapeType = l.Shape.Type
		w.FillColor = l.Shape.FillColor
		w.BorderRadius = l.Shape.BorderRadius
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var w wireLayer
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Layer{
		ID:        w.ID,
		Name:      w.Name,
		X:         w.X,
		Y:         w.Y,
		Width:     w.Width,
		Height:    w.Height,
		Rotation:  w.Rotation,
		Opacity:   100,
		BlendMode: w.BlendMode,
		Visible:   true,
		Locked:    w.IsLocked,
		Kind:      w.Type,
	}
	if w.Opacity != nil {
		out.Opacity = *w.Opacity
	}
	if w.IsVisible != nil {
		out.Visible = *w.IsVisible
	}

	switch w.Type {
	case KindImage:
		out.Image = &ImageContent{URL: w.URL}
	case KindText:
		weight, err := decodeWeight(w.FontWeight)
		if err != nil {
			return fmt.Errorf("layer %s: %w", w.ID, err)
		}
		t := TextContent{
			FontFamily: w.FontFamily,
			FontSize:   w.FontSize,
			FontWeight: weight,
			FontStyle:  w.FontStyle,
			Transform:  w.TextTransform,
			Align:      w.TextAlign,
			Color:      w.Color,
			LineHeight: w.LineHeight,
		}
		if w.Text != nil {
			t.Text = *w.Text
		}
		out.Text = &t
	case KindShape:
		out.Shape = &ShapeContent{Type: w.ShapeType, FillColor: w.FillColor, BorderRadius: w.BorderRadius}
	default:
		return fmt.Errorf("layer %s: unknown type %q", w.ID, w.Type)
	}
	*l = out
	return nil
}

// decodeWeight accepts both "bold" and 700.
func decodeWeight(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("bad fontWeight %s", raw)
	}
	return strconv.FormatFloat(n, 'f', -1, 64), nil
}
