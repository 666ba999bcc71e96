package format

import (
	"path/filepath"
	"testing"

	"github.com/tdewolff/test"
)

func TestBuiltinFormats(t *testing.T) {
	formats := List()
	test.That(t, len(formats) >= len(builtin()))
	for _, f := range formats {
		test.Error(t, f.Validate())
	}

	f, ok := Get("A4 Portrait")
	test.That(t, ok)
	w, h := f.Pixels()
	test.T(t, w, 2481)
	test.T(t, h, 3507)

	_, ok = Get("missing")
	test.That(t, !ok)
}

func TestCanvasSettings(t *testing.T) {
	f := &Format{Name: "Dark", Width: 640, Height: 480, Background: "#000000"}
	cs := f.CanvasSettings()
	test.T(t, cs.Width, 640)
	test.T(t, cs.Height, 480)
	test.String(t, cs.Background, "#000000")
	test.That(t, !cs.IsInfinite)
}

func TestValidate(t *testing.T) {
	test.That(t, (&Format{Width: 10, Height: 10}).Validate() != nil, "unnamed")
	test.That(t, (&Format{Name: "flat", Width: 10}).Validate() != nil, "zero height")
	test.That(t, (&Format{Name: "huge", Width: 100000, Height: 10}).Validate() != nil, "too large")
	test.Error(t, (&Format{Name: "print", WidthInches: 2, HeightInches: 1}).Validate())
}

func TestUserFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formats.json")
	test.Error(t, LoadUserFormats(path))

	user := []*Format{{Name: "Poster", Kind: KindPrint, WidthInches: 18, HeightInches: 24, DPI: 150}}
	test.Error(t, SaveToFile(path, user))
	test.Error(t, LoadUserFormats(path))

	f, ok := Get("Poster")
	test.That(t, ok)
	w, h := f.Pixels()
	test.T(t, w, 2700)
	test.T(t, h, 3600)

	test.Error(t, SaveToFile(path, []*Format{{Name: "bad"}}))
	test.That(t, LoadUserFormats(path) != nil)
}
