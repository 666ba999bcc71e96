// Package main provides the entry point for the Layer Composer application.
package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"layer-composer/internal/aiclient"
	"layer-composer/internal/app"
	"layer-composer/internal/format"
	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/logging"
	"layer-composer/internal/raster"
	"layer-composer/internal/version"
	"layer-composer/ui/mainwindow"
	"layer-composer/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
)

const appID = "composer"

func main() {
	logging.SetLogger(logging.NewText(os.Stderr, logging.ParseLevel(os.Getenv("COMPOSER_LOG_LEVEL"))))
	log := logging.Logger()
	log.Info("starting", "version", version.String())

	appPrefs := prefs.Load()
	if err := format.LoadUserFormats(filepath.Join(prefs.Dir(), "formats.json")); err != nil {
		log.Warn("ignoring user canvas formats", "err", err)
	}

	store, err := openGallery(appPrefs)
	if err != nil {
		log.Error("gallery unavailable, using memory store", "err", err)
		store = gallery.NewMemoryStore()
	}
	defer store.Close()

	loader := raster.NewSourceLoader(0)
	loader.Resolver = gallery.Resolver(store)

	cfg := app.Config{
		AppID:   appID,
		Loader:  loader,
		Gallery: store,
		Presets: generate.DefaultCatalog(),
	}
	if endpoint := appPrefs.String(prefs.KeyAIEndpoint, os.Getenv("COMPOSER_AI_ENDPOINT")); endpoint != "" {
		cfg.Client = aiclient.New(endpoint, appPrefs.String(prefs.KeyAIKey, os.Getenv("COMPOSER_AI_KEY")))
	} else {
		log.Warn("no AI endpoint configured; generation is disabled")
	}
	session := app.NewSession(cfg)

	fyneApp := fyneapp.NewWithID("io.layercomposer.app")
	fyneApp.Settings().SetTheme(&app.ComposerTheme{})

	win := mainwindow.New(fyneApp, session, appPrefs)
	win.SetMaster()

	autosaver := app.NewAutosaver(session, prefs.Dir(), autosaveInterval(appPrefs))
	autosaver.OnSaved(func(path string) { log.Debug("autosaved", "path", path) })

	// Handle command line arguments
	switch {
	case len(os.Args) > 1:
		openPath(session, os.Args[1])
	default:
		restoreAutosave(win, session, autosaver)
	}

	autosaver.Start()
	win.ShowAndRun()

	autosaver.Stop()
	if !session.Modified() {
		if err := autosaver.Discard(); err != nil {
			log.Warn("discarding autosave failed", "err", err)
		}
	}
}

func openGallery(p *prefs.Prefs) (gallery.Store, error) {
	path := p.GalleryDB()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return gallery.OpenSQLite(context.Background(), path)
}

func autosaveInterval(p *prefs.Prefs) time.Duration {
	seconds := p.FloatWithFallback(prefs.KeyAutosaveInterval, 30)
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds * float64(time.Second))
}

// openPath opens a session document, preset PNG or image named on the
// command line.
func openPath(session *app.Session, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Logger().Error("cannot read file", "path", path, "err", err)
		session.NewBlank()
		return
	}
	if err := session.ImportFile(context.Background(), path, data); err != nil {
		logging.Logger().Error("cannot open file", "path", path, "err", err)
		session.NewBlank()
	}
}

// restoreAutosave offers to reopen the document an earlier run left behind.
func restoreAutosave(win *mainwindow.MainWindow, session *app.Session, autosaver *app.Autosaver) {
	data, err := os.ReadFile(autosaver.Path())
	if err != nil {
		session.NewBlank()
		return
	}
	session.NewBlank()
	dialog.ShowConfirm("Restore", "Restore the canvas from your last session?", func(ok bool) {
		if !ok {
			if err := autosaver.Discard(); err != nil {
				logging.Logger().Warn("discarding autosave failed", "err", err)
			}
			return
		}
		if err := session.ImportFile(context.Background(), autosaver.Path(), data); err != nil {
			dialog.ShowError(err, win.Window)
		}
	}, win.Window)
}
