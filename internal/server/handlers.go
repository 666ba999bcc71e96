package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"layer-composer/internal/format"
	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"

	"github.com/gofiber/fiber/v3"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func errorJSON(c fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) live(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive"})
}

// ready checks that the gallery answers.
func (s *Server) ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadTimeout)
	defer cancel()
	if _, err := s.store.List(ctx, 1); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) decodeDocument(c fiber.Ctx) (*project.Document, error) {
	if len(c.Body()) == 0 {
		return nil, errors.New("body required")
	}
	return project.Decode(bytes.NewReader(c.Body()))
}

func (s *Server) scale(c fiber.Ctx) (float64, error) {
	raw := c.Query("scale")
	if raw == "" {
		return 1, nil
	}
	scale, err := strconv.ParseFloat(raw, 64)
	if err != nil || scale <= 0 || scale > s.cfg.MaxScale {
		return 0, errors.New("scale must be in (0, " + strconv.FormatFloat(s.cfg.MaxScale, 'g', -1, 64) + "]")
	}
	return scale, nil
}

func sendPNG(c fiber.Ctx, data []byte) error {
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

// render flattens the posted document to PNG. ?embed=1 stores the document
// in the result so it can be reopened as a canvas preset.
func (s *Server) render(c fiber.Ctx) error {
	doc, err := s.decodeDocument(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	scale, err := s.scale(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	bounds, ok := doc.Bounds()
	if !ok {
		return errorJSON(c, fiber.StatusUnprocessableEntity, errors.New("infinite canvas has no layers"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RenderTimeout)
	defer cancel()
	img, err := s.capturer.CaptureRegionScaled(ctx, doc.Layers, bounds, doc.CanvasSettings.Background, scale)
	if err != nil {
		logging.Logger().Warn("render failed", "layers", len(doc.Layers), "err", err)
		return errorJSON(c, fiber.StatusUnprocessableEntity, err)
	}

	var data []byte
	if embed, _ := strconv.ParseBool(c.Query("embed")); embed {
		data, err = project.EmbedInPNG(img, doc)
	} else {
		data, err = raster.EncodePNG(img)
	}
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return sendPNG(c, data)
}

// renderLayer captures one layer of the posted document.
func (s *Server) renderLayer(c fiber.Ctx) error {
	doc, err := s.decodeDocument(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	l, ok := layer.Find(doc.Layers, c.Params("id"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, errors.New("layer not found"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RenderTimeout)
	defer cancel()
	img, err := s.capturer.CaptureLayer(ctx, l)
	if err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, err)
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return sendPNG(c, data)
}

type expandRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) expandPrompt(c fiber.Ctx) error {
	var req expandRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("invalid JSON payload"))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("prompt required"))
	}
	return c.JSON(fiber.Map{"prompts": generate.ParseMultiPrompt(req.Prompt)})
}

type presetView struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	RequiresImageContext bool   `json:"requiresImageContext"`
}

// listPresets returns the presets of ?app= localized to ?lang=.
func (s *Server) listPresets(c fiber.Ctx) error {
	app := c.Query("app", "composer")
	lang := c.Query("lang", generate.DefaultLanguage)
	presets := s.presets.Presets(app)
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetView{
			ID:                   p.ID,
			Name:                 p.Name.In(lang),
			Description:          p.Description.In(lang),
			RequiresImageContext: p.RequiresImageContext,
		})
	}
	return c.JSON(fiber.Map{"presets": out, "canvasPresets": s.presets.SupportsCanvasPresets(app)})
}

type formatView struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *Server) listFormats(c fiber.Ctx) error {
	formats := format.List()
	out := make([]formatView, 0, len(formats))
	for _, f := range formats {
		w, h := f.Pixels()
		out = append(out, formatView{Name: f.Name, Kind: string(f.Kind), Width: w, Height: h})
	}
	return c.JSON(fiber.Map{"formats": out})
}

func (s *Server) listGallery(c fiber.Ctx) error {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return errorJSON(c, fiber.StatusBadRequest, errors.New("limit must be a positive integer"))
		}
		limit = min(n, maxListLimit)
	}
	images, err := s.store.List(context.Background(), limit)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{"images": images})
}

type addRequest struct {
	URLs []string `json:"urls"`
}

func (s *Server) addGallery(c fiber.Ctx) error {
	var req addRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("invalid JSON payload"))
	}
	if len(req.URLs) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("urls required"))
	}
	for _, u := range req.URLs {
		if u == "" {
			return errorJSON(c, fiber.StatusBadRequest, errors.New("empty url"))
		}
	}
	images, err := s.store.Add(context.Background(), req.URLs)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"images": images})
}

func storeStatus(err error) int {
	if errors.Is(err, gallery.ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func (s *Server) getGallery(c fiber.Ctx) error {
	img, err := s.store.Get(context.Background(), c.Params("id"))
	if err != nil {
		return errorJSON(c, storeStatus(err), err)
	}
	return c.JSON(img)
}

// galleryImage serves the stored bitmap. Data URLs are decoded, anything
// else is a redirect.
func (s *Server) galleryImage(c fiber.Ctx) error {
	img, err := s.store.Get(context.Background(), c.Params("id"))
	if err != nil {
		return errorJSON(c, storeStatus(err), err)
	}
	if !raster.IsDataURL(img.URL) {
		return c.Redirect().To(img.URL)
	}
	mediaType, data, err := raster.DecodeDataURL(img.URL)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	c.Set(fiber.HeaderContentType, mediaType)
	return c.Send(data)
}

func (s *Server) deleteGallery(c fiber.Ctx) error {
	if err := s.store.Delete(context.Background(), c.Params("id")); err != nil {
		return errorJSON(c, storeStatus(err), err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
