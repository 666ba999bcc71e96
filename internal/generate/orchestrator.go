// Package generate drives AI generation jobs against the selected layers
// and inserts the results as new image layers.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"layer-composer/internal/gallery"
	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/internal/raster"
	"layer-composer/pkg/geometry"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrPresetNeedsImages is returned when a preset requiring image context
	// runs without a selection.
	ErrPresetNeedsImages = errors.New("this preset needs at least one selected layer")
	// ErrNoResults is returned when the backend produced no images.
	ErrNoResults = errors.New("generation returned no images")
	// ErrUnknownPreset is returned for a preset id missing from the catalog.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrNoClient is returned when no generation backend is configured.
	ErrNoClient = errors.New("no generation backend configured")
)

// State is the step a job is in.
type State int

const (
	StateIdle State = iota
	StateCapturingContext
	StateRefining
	StateGenerating
	StateLoadingResults
	StateInserting
	StateDone
	StateError
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateCapturingContext: "capturing-context",
	StateRefining:         "refining",
	StateGenerating:       "generating",
	StateLoadingResults:   "loading-results",
	StateInserting:        "inserting",
	StateDone:             "done",
	StateError:            "error",
	StateCancelled:        "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Request describes one generation job.
type Request struct {
	Prompt   string
	PresetID string
	Batch    bool // one result per selected layer
	Refine   bool // rewrite the prompt against the captured images first
	Language string
	// Anchor is where results go when nothing is selected.
	Anchor geometry.Point2D
}

// Host is the editing session a job reads from and writes to. Every call
// must observe the live state, never a snapshot taken when the job began.
type Host interface {
	Layers() []layer.Layer
	SelectedIDs() []string
	// InsertLayers puts ls on top of the live list as one history entry.
	InsertLayers(ls []layer.Layer) error
}

// LayerCapturer rasterizes a single layer for use as AI input.
type LayerCapturer interface {
	CaptureLayerDataURL(ctx context.Context, l layer.Layer) (string, error)
}

// Orchestrator runs generation jobs. Several jobs may run at once; Cancel
// only reaches the most recently started one.
type Orchestrator struct {
	Client   Client
	Capturer LayerCapturer
	Loader   raster.Loader
	Presets  *PresetCatalog
	AppID    string
	Gallery  gallery.Store
	Log      *Log

	// OnState is called on every state change, possibly from several
	// goroutines at once.
	OnState func(State)

	running atomic.Int32
	mu      sync.Mutex
	active  []*job // in start order
}

// New returns an orchestrator with an empty log.
func New(client Client, capturer LayerCapturer, loader raster.Loader, presets *PresetCatalog, appID string) *Orchestrator {
	return &Orchestrator{
		Client:   client,
		Capturer: capturer,
		Loader:   loader,
		Presets:  presets,
		AppID:    appID,
		Log:      NewLog(),
	}
}

// Running returns the number of jobs in flight.
func (o *Orchestrator) Running() int {
	return int(o.running.Load())
}

// Cancel aborts the most recently started job that is still running. It
// reports whether there was one to abort.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.active) == 0 {
		return false
	}
	o.active[len(o.active)-1].cancel()
	return true
}

func (o *Orchestrator) track(j *job) {
	o.mu.Lock()
	o.active = append(o.active, j)
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(j *job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, a := range o.active {
		if a == j {
			o.active = append(o.active[:i], o.active[i+1:]...)
			return
		}
	}
}

// Run executes one job and returns the layers it inserted. A cancelled job
// returns context.Canceled and leaves the host untouched.
func (o *Orchestrator) Run(ctx context.Context, host Host, req Request) ([]layer.Layer, error) {
	if o.Log == nil {
		o.Log = NewLog()
	}
	if o.Client == nil {
		o.Log.Append(LevelError, ErrNoClient.Error())
		return nil, ErrNoClient
	}
	if o.running.Add(1) == 1 {
		o.Log.Separator()
	}
	defer o.running.Add(-1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	j := &job{o: o, host: host, req: req, cancel: cancel}
	o.track(j)
	defer o.untrack(j)

	created, err := j.run(ctx)
	switch {
	case err == nil:
		o.setState(StateDone)
		return created, nil
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		o.Log.Append(LevelInfo, "Generation cancelled")
		o.setState(StateCancelled)
		return nil, context.Canceled
	default:
		o.Log.Append(LevelError, err.Error())
		o.setState(StateError)
		logging.Logger().Warn("generation failed", "err", err)
		return nil, err
	}
}

func (o *Orchestrator) setState(s State) {
	logging.Logger().Debug("generation state", "state", s.String())
	if o.OnState != nil {
		o.OnState(s)
	}
}

type job struct {
	o      *Orchestrator
	host   Host
	req    Request
	cancel context.CancelFunc
}

func (j *job) run(ctx context.Context) ([]layer.Layer, error) {
	o := j.o
	var preset *Preset
	if j.req.PresetID != "" {
		p, ok := o.Presets.Lookup(o.AppID, j.req.PresetID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, j.req.PresetID)
		}
		preset = &p
	}

	o.setState(StateCapturingContext)
	sources := layer.Filter(j.host.Layers(), j.host.SelectedIDs())
	if preset != nil && preset.RequiresImageContext && len(sources) == 0 {
		return nil, ErrPresetNeedsImages
	}
	images, err := j.capture(ctx, sources)
	if err != nil {
		return nil, err
	}
	place := Placement{Anchor: j.req.Anchor}
	if box, ok := layer.BoundingBoxOf(sources); ok {
		place.Source, place.HasSource = box, true
	}

	prompts := ParseMultiPrompt(j.req.Prompt)
	o.Log.Append(LevelSpinner, fmt.Sprintf("Generating from %d prompt(s) with %d source image(s)", len(prompts), len(images)))

	results := make([][]string, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prompts {
		g.Go(func() error {
			urls, err := j.expand(gctx, p, preset, images)
			results[i] = urls
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var urls []string
	for _, r := range results {
		for _, u := range r {
			if u != "" {
				urls = append(urls, u)
			}
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoResults
	}

	o.setState(StateLoadingResults)
	sizes, err := j.load(ctx, urls)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o.setState(StateInserting)
	rects := place.Place(sizes)
	created := make([]layer.Layer, 0, len(urls))
	for i, u := range urls {
		l, err := layer.NewImage(u, rects[i])
		if err != nil {
			return nil, err
		}
		l.Name = "Generated"
		created = append(created, l)
	}
	if err := j.host.InsertLayers(created); err != nil {
		return nil, err
	}
	if o.Gallery != nil {
		if _, err := o.Gallery.Add(ctx, urls); err != nil {
			logging.Logger().Warn("gallery add failed", "count", len(urls), "err", err)
		}
	}
	o.Log.Append(LevelSuccess, fmt.Sprintf("Added %d image(s)", len(created)))
	return created, nil
}

// capture snapshots the sources before the first network call.
func (j *job) capture(ctx context.Context, sources []layer.Layer) ([]string, error) {
	images := make([]string, 0, len(sources))
	for _, l := range sources {
		if j.o.Capturer == nil {
			return nil, fmt.Errorf("no capturer configured")
		}
		u, err := j.o.Capturer.CaptureLayerDataURL(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", l.ID, err)
		}
		images = append(images, u)
	}
	return images, ctx.Err()
}

// expand runs the backend calls for one literal prompt.
func (j *job) expand(ctx context.Context, literal string, preset *Preset, images []string) ([]string, error) {
	c, o, lang := j.o.Client, j.o, j.req.Language
	prompt := literal

	switch {
	case preset != nil && preset.Refine && len(images) > 0:
		o.setState(StateRefining)
		refined, err := c.RefinePresetPrompt(ctx, preset.Template.In(lang), literal, images)
		if err != nil {
			return nil, err
		}
		prompt = refined
	case preset != nil:
		prompt = preset.Render(literal, lang)
		o.Log.Append(LevelPrompt, prompt)
		o.setState(StateGenerating)
		urls, err := c.GenerateFromPreset(ctx, PresetCall{Preset: *preset, Prompt: prompt}, images)
		if err != nil {
			return nil, err
		}
		return urls, ctx.Err()
	case j.req.Refine && len(images) > 0:
		o.setState(StateRefining)
		refined, err := c.RefineImageAndPrompt(ctx, refineTemplate, literal, images)
		if err != nil {
			return nil, err
		}
		prompt = refined
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.Log.Append(LevelPrompt, strings.TrimSpace(prompt))
	o.setState(StateGenerating)

	switch {
	case len(images) == 0:
		params, err := c.AnalyzePrompt(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		params = params.Normalize(prompt)
		urls, err := c.GenerateFreeImage(ctx, params.RefinedPrompt, params.NumberOfImages, params.AspectRatio)
		if err != nil {
			return nil, err
		}
		return urls, ctx.Err()
	case j.req.Batch && len(images) > 1:
		out := make([]string, len(images))
		g, gctx := errgroup.WithContext(ctx)
		for i, img := range images {
			g.Go(func() error {
				u, err := c.EditImageWithPrompt(gctx, img, prompt)
				out[i] = u
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, ctx.Err()
	case len(images) == 1:
		u, err := c.EditImageWithPrompt(ctx, images[0], prompt)
		if err != nil {
			return nil, err
		}
		return []string{u}, ctx.Err()
	default:
		u, err := c.GenerateFromMultipleImages(ctx, images, prompt)
		if err != nil {
			return nil, err
		}
		return []string{u}, ctx.Err()
	}
}

// load decodes every result to learn its intrinsic size.
func (j *job) load(ctx context.Context, urls []string) ([]geometry.Size, error) {
	if j.o.Loader == nil {
		return nil, fmt.Errorf("%w: no loader configured", raster.ErrBitmapLoad)
	}
	sizes := make([]geometry.Size, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			img, err := j.o.Loader.Load(gctx, u)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", raster.ErrBitmapLoad, err)
			}
			b := img.Bounds()
			sizes[i] = geometry.NewSize(float64(b.Dx()), float64(b.Dy()))
			return nil
		})
	}
	return sizes, g.Wait()
}
