// Command composerd serves document rendering and the gallery over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"layer-composer/internal/gallery"
	"layer-composer/internal/logging"
	"layer-composer/internal/server"
	"layer-composer/internal/version"
)

func main() {
	logging.SetLogger(logging.NewText(os.Stderr, logging.ParseLevel(os.Getenv("COMPOSER_LOG_LEVEL"))))
	log := logging.Logger()

	cfg := server.LoadConfig()

	store, err := gallery.OpenSQLite(context.Background(), cfg.GalleryDB)
	if err != nil {
		log.Error("failed to open gallery", "path", cfg.GalleryDB, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	app := server.New(cfg, store).App()

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting composerd", "addr", addr, "version", version.String(), "gallery", cfg.GalleryDB)
	if err := app.Listen(addr); err != nil {
		log.Error("failed to start server", "err", err)
		os.Exit(1)
	}
}
