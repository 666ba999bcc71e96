// Command composer renders session documents and manages the gallery from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"layer-composer/internal/format"
	"layer-composer/internal/gallery"
	"layer-composer/internal/generate"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/project"
	"layer-composer/internal/raster"

	"github.com/tdewolff/argp"
)

// Root prints usage.
type Root struct{}

// Render flattens a session document to PNG.
type Render struct {
	Input  string  `index:"0" desc:"Session document (.json) or preset PNG"`
	Output string  `short:"o" default:"out.png" desc:"Output PNG"`
	Scale  float64 `short:"s" default:"1" desc:"Output pixels per canvas unit"`
	Embed  bool    `short:"e" desc:"Embed the session in the PNG as a canvas preset"`
	DB     string  `desc:"Gallery database resolving gallery: references"`
}

// Layer renders one layer at capture resolution.
type Layer struct {
	Input  string `index:"0" desc:"Session document (.json) or preset PNG"`
	ID     string `name:"id" desc:"Layer id"`
	Output string `short:"o" default:"layer.png" desc:"Output PNG"`
	DB     string `desc:"Gallery database resolving gallery: references"`
}

// Expand prints every prompt a multi-prompt expands to.
type Expand struct {
	Prompt []string `index:"*" desc:"Prompt text"`
}

// Presets lists the generation presets.
type Presets struct {
	App      string `default:"composer" desc:"Application id"`
	Language string `short:"l" default:"en" desc:"Language"`
}

// Formats lists the canvas formats.
type Formats struct{}

// New writes an empty session document.
type New struct {
	Format   string `short:"f" default:"Square 2048" desc:"Canvas format"`
	Infinite bool   `desc:"Unbounded canvas"`
	Output   string `index:"0" desc:"Output document (.json)"`
}

// GalleryList lists stored images.
type GalleryList struct {
	DB    string `desc:"Gallery database"`
	Limit int    `short:"n" default:"20" desc:"Maximum number of images"`
}

// GalleryAdd stores image files in the gallery.
type GalleryAdd struct {
	DB    string   `desc:"Gallery database"`
	Files []string `index:"*" desc:"Image files"`
}

func main() {
	logging.SetLogger(logging.NewText(os.Stderr, logging.ParseLevel(os.Getenv("COMPOSER_LOG_LEVEL"))))
	if path := os.Getenv("COMPOSER_FORMATS"); path != "" {
		if err := format.LoadUserFormats(path); err != nil {
			logging.Logger().Warn("ignoring user canvas formats", "err", err)
		}
	}

	root := argp.NewCmd(&Root{}, "Layer composer command line tools")
	root.AddCmd(&Render{}, "render", "Render a session document to PNG")
	root.AddCmd(&Layer{}, "layer", "Render a single layer to PNG")
	root.AddCmd(&Expand{}, "expand", "Expand a {a|b} multi-prompt")
	root.AddCmd(&Presets{}, "presets", "List generation presets")
	root.AddCmd(&Formats{}, "formats", "List canvas formats")
	root.AddCmd(&New{}, "new", "Create an empty session document")
	g := root.AddCmd(&GalleryList{}, "gallery", "List gallery images")
	g.AddCmd(&GalleryList{}, "list", "List gallery images")
	g.AddCmd(&GalleryAdd{}, "add", "Add image files to the gallery")
	root.Parse()
	root.PrintHelp()
}

func (cmd *Root) Run() error {
	return argp.ShowUsage
}

func defaultDB() string {
	if db := os.Getenv("GALLERY_DB_PATH"); db != "" {
		return db
	}
	return "gallery.db"
}

// loadDocument reads a .json document or the preset embedded in a PNG.
func loadDocument(path string) (*project.Document, error) {
	if path == "" {
		return nil, argp.ShowUsage
	}
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return project.ExtractFromPNG(data)
	}
	return project.LoadFile(path)
}

// newCapturer returns a capturer whose loader resolves gallery references
// when db is set.
func newCapturer(ctx context.Context, db string) (*raster.Capturer, func(), error) {
	loader := raster.NewSourceLoader(0)
	closeFn := func() {}
	if db != "" {
		store, err := gallery.OpenSQLite(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		loader.Resolver = gallery.Resolver(store)
		closeFn = func() { store.Close() }
	}
	return raster.NewCapturer(loader), closeFn, nil
}

func writePNG(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func (cmd *Render) Run() error {
	ctx := context.Background()
	doc, err := loadDocument(cmd.Input)
	if err != nil {
		return err
	}
	bounds, ok := doc.Bounds()
	if !ok {
		return fmt.Errorf("%s: infinite canvas has no layers", cmd.Input)
	}
	if cmd.Scale <= 0 {
		return fmt.Errorf("scale must be positive")
	}

	capturer, closeFn, err := newCapturer(ctx, cmd.DB)
	if err != nil {
		return err
	}
	defer closeFn()

	img, err := capturer.CaptureRegionScaled(ctx, doc.Layers, bounds, doc.CanvasSettings.Background, cmd.Scale)
	if err != nil {
		return err
	}
	var data []byte
	if cmd.Embed {
		data, err = project.EmbedInPNG(img, doc)
	} else {
		data, err = raster.EncodePNG(img)
	}
	if err != nil {
		return err
	}
	return writePNG(cmd.Output, data)
}

func (cmd *Layer) Run() error {
	ctx := context.Background()
	doc, err := loadDocument(cmd.Input)
	if err != nil {
		return err
	}
	l, ok := layer.Find(doc.Layers, cmd.ID)
	if !ok {
		return fmt.Errorf("no layer with id %q", cmd.ID)
	}

	capturer, closeFn, err := newCapturer(ctx, cmd.DB)
	if err != nil {
		return err
	}
	defer closeFn()

	img, err := capturer.CaptureLayer(ctx, l)
	if err != nil {
		return err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return err
	}
	return writePNG(cmd.Output, data)
}

func (cmd *Expand) Run() error {
	if len(cmd.Prompt) == 0 {
		return argp.ShowUsage
	}
	for _, p := range generate.ParseMultiPrompt(strings.Join(cmd.Prompt, " ")) {
		fmt.Println(p)
	}
	return nil
}

func (cmd *Presets) Run() error {
	for _, p := range generate.DefaultCatalog().Presets(cmd.App) {
		needs := ""
		if p.RequiresImageContext {
			needs = " (needs selection)"
		}
		fmt.Printf("%-24s %s%s\n", p.ID, p.Name.In(cmd.Language), needs)
	}
	return nil
}

func (cmd *Formats) Run() error {
	for _, f := range format.List() {
		w, h := f.Pixels()
		fmt.Printf("%-20s %-7s %5d x %-5d\n", f.Name, f.Kind, w, h)
	}
	return nil
}

func (cmd *New) Run() error {
	if cmd.Output == "" {
		return argp.ShowUsage
	}
	f, ok := format.Get(cmd.Format)
	if !ok {
		return fmt.Errorf("unknown canvas format %q", cmd.Format)
	}
	doc := &project.Document{CanvasSettings: f.CanvasSettings(), Layers: []layer.Layer{}}
	doc.CanvasSettings.IsInfinite = cmd.Infinite
	if err := doc.SaveFile(cmd.Output); err != nil {
		return err
	}
	fmt.Println(cmd.Output)
	return nil
}

func (cmd *GalleryList) Run() error {
	ctx := context.Background()
	if cmd.DB == "" {
		cmd.DB = defaultDB()
	}
	store, err := gallery.OpenSQLite(ctx, cmd.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	images, err := store.List(ctx, cmd.Limit)
	if err != nil {
		return err
	}
	for _, img := range images {
		url := img.URL
		if raster.IsDataURL(url) {
			url = fmt.Sprintf("data URL, %d bytes", len(url))
		}
		fmt.Printf("%s  %s  %s\n", img.ID, img.CreatedAt.Local().Format(time.DateTime), url)
	}
	return nil
}

func (cmd *GalleryAdd) Run() error {
	if len(cmd.Files) == 0 {
		return argp.ShowUsage
	}
	ctx := context.Background()
	if cmd.DB == "" {
		cmd.DB = defaultDB()
	}
	store, err := gallery.OpenSQLite(ctx, cmd.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	urls := make([]string, 0, len(cmd.Files))
	for _, path := range cmd.Files {
		if !raster.IsSupportedFormat(path) {
			return fmt.Errorf("%s: unsupported image format", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		img, err := raster.DecodeBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		url, err := raster.EncodeDataURL(img)
		if err != nil {
			return err
		}
		urls = append(urls, url)
	}
	added, err := store.Add(ctx, urls)
	if err != nil {
		return err
	}
	for _, img := range added {
		fmt.Println(img.ID)
	}
	return nil
}
