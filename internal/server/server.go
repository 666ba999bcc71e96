// Package server exposes document rendering, prompt expansion and the
// gallery over HTTP.
package server

import (
	"time"

	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/raster"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// Server holds the handler dependencies.
type Server struct {
	cfg      *Config
	store    gallery.Store
	capturer *raster.Capturer
	presets  *generate.PresetCatalog
}

// New wires a server around store. Gallery references in rendered
// documents resolve through the same store.
func New(cfg *Config, store gallery.Store) *Server {
	loader := raster.NewSourceLoader(0)
	loader.Resolver = gallery.Resolver(store)
	return &Server{
		cfg:      cfg,
		store:    store,
		capturer: raster.NewCapturer(loader),
		presets:  generate.DefaultCatalog(),
	}
}

// App builds the fiber application with every route registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		BodyLimit:    s.cfg.BodyLimit,
		AppName:      "Layer Composer",
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: time.TimeOnly,
		TimeZone:   "Local",
	}))

	app.Get("/health/live", s.live)
	app.Get("/health/ready", s.ready)

	app.Post("/render", s.render)
	app.Post("/render/layers/:id", s.renderLayer)

	app.Post("/prompts/expand", s.expandPrompt)
	app.Get("/presets", s.listPresets)
	app.Get("/formats", s.listFormats)

	app.Get("/gallery", s.listGallery)
	app.Post("/gallery", s.addGallery)
	app.Get("/gallery/:id", s.getGallery)
	app.Get("/gallery/:id/image", s.galleryImage)
	app.Delete("/gallery/:id", s.deleteGallery)

	return app
}
