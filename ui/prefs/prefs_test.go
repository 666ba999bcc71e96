package prefs

import (
	"path/filepath"
	"testing"

	"github.com/tdewolff/test"
)

func TestPrefsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.json")
	p := LoadFrom(path)
	w, h := p.CanvasSize()
	test.T(t, w, 2048)
	test.T(t, h, 2048)
	test.String(t, p.String(KeyAIEndpoint, "http://localhost:8080"), "http://localhost:8080")
	test.String(t, p.GalleryDB(), filepath.Join(filepath.Dir(path), "gallery.db"))

	p.SetFloat(KeyCanvasWidth, 1024)
	p.SetString(KeyLastDir, "/tmp/pictures")
	p.SetBool("gridVisible", true)
	test.Error(t, p.Save())

	q := LoadFrom(path)
	w, _ = q.CanvasSize()
	test.T(t, w, 1024)
	test.String(t, q.String(KeyLastDir, ""), "/tmp/pictures")
	test.That(t, q.Bool("gridVisible", false))
	test.Float(t, q.LogAutoHideSeconds(), 5)
}
