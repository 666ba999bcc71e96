package panels

import (
	"strings"
	"testing"

	"layer-composer/internal/app"
	"layer-composer/internal/gallery"
	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	fynetest "fyne.io/fyne/v2/test"
	"github.com/tdewolff/test"
)

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{12, "12"},
		{12.5, "12.5"},
		{0.125, "0.13"},
		{-3.10, "-3.1"},
	}
	for _, tt := range tests {
		test.String(t, formatFloat(tt.v), tt.want)
	}
}

func TestShortRef(t *testing.T) {
	test.String(t, shortRef("data:image/png;base64,AAAA"), "inline image/png")
	test.String(t, shortRef("gallery:abc"), "gallery:abc")
	long := "https://example.com/" + strings.Repeat("a", 60)
	test.T(t, len(shortRef(long)), 48)
}

func TestArrangeBarFollowsSelection(t *testing.T) {
	fynetest.NewApp()
	s := app.NewSession(app.Config{AppID: "composer", Gallery: gallery.NewMemoryStore()})
	s.NewBlank()
	ab := NewArrangeBar(s)

	test.That(t, ab.single[0].Disabled(), "nothing selected")

	var ids []string
	for i := range 3 {
		l, err := s.AddShape(layer.ShapeRectangle, geometry.NewRect(float64(i*100), 0, 50, 50))
		test.Error(t, err)
		ids = append(ids, l.ID)
	}

	s.Select(ids[0], false)
	test.That(t, !ab.single[0].Disabled())
	test.That(t, ab.multi[0].Disabled())

	s.Select(ids[1], true)
	test.That(t, !ab.multi[0].Disabled())
	test.That(t, ab.triple[0].Disabled())

	s.SelectAll()
	test.That(t, !ab.triple[0].Disabled())

	s.ClearSelection()
	test.That(t, ab.single[0].Disabled())
}

func TestTextEditCommitsOnFocusLost(t *testing.T) {
	fynetest.NewApp()
	s := app.NewSession(app.Config{AppID: "composer", Gallery: gallery.NewMemoryStore()})
	s.NewBlank()
	txt, err := s.AddText()
	test.Error(t, err)
	ps := NewPropertySheet(s)
	original := txt.Text.Text

	fynetest.Type(ps.textEntry, "Hi ")
	l, ok := s.Layer(txt.ID)
	test.That(t, ok)
	test.String(t, l.Text.Text, ps.textEntry.Text)
	test.That(t, l.Text.Text != original)

	ps.textEntry.FocusLost()
	test.That(t, s.Undo())
	l, ok = s.Layer(txt.ID)
	test.That(t, ok, "undo reverts the edit, not the insertion")
	test.String(t, l.Text.Text, original)
}
