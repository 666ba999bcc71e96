// Package raster flattens layers into bitmaps.
//
// Captures are deterministic for the same inputs. Every bitmap an image layer
// references is loaded before anything is drawn, and a single failed load
// fails the whole capture.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"layer-composer/internal/layer"
	"layer-composer/internal/logging"
	"layer-composer/pkg/geometry"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/sync/errgroup"
)

// ErrBitmapLoad is returned when a referenced bitmap cannot be loaded.
var ErrBitmapLoad = errors.New("failed to load bitmap")

// UpscaleFactor is the resolution multiplier for isolated text and shape
// captures.
const UpscaleFactor = 4.0

// Capturer renders layer lists off-screen.
type Capturer struct {
	Loader Loader
}

// NewCapturer returns a capturer using loader for image layers.
func NewCapturer(loader Loader) *Capturer {
	return &Capturer{Loader: loader}
}

// CaptureRegion flattens the visible layers that fall inside bounds into a
// bitmap the size of bounds. background may be empty or "transparent".
func (c *Capturer) CaptureRegion(ctx context.Context, layers []layer.Layer, bounds geometry.Rect, background string) (*image.NRGBA, error) {
	return c.CaptureRegionScaled(ctx, layers, bounds, background, 1)
}

// CaptureRegionScaled is CaptureRegion with every canvas unit mapped to
// scale output pixels.
func (c *Capturer) CaptureRegionScaled(ctx context.Context, layers []layer.Layer, bounds geometry.Rect, background string, scale float64) (*image.NRGBA, error) {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return nil, fmt.Errorf("capture region: %w", layer.ErrDegenerate)
	}
	if scale <= 0 {
		scale = 1
	}
	bitmaps, err := c.loadAll(ctx, layers)
	if err != nil {
		return nil, err
	}

	w, h := spriteSize(bounds.Width, bounds.Height, scale, scale)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	fillBackground(dst, background)

	// Index 0 is topmost, so paint from the end of the list.
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if !l.Visible || l.Width <= 0 || l.Height <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !l.RotatedBounds().Intersects(bounds) {
			continue
		}
		sprite, err := renderSprite(l, bitmaps, scale, scale)
		if err != nil {
			return nil, fmt.Errorf("render layer %s: %w", l.ID, err)
		}
		m := placement(l, sprite.Bounds(), bounds.TopLeft(), scale)
		drawTransformed(dst, sprite, m, l.BlendMode, l.Alpha())
	}
	return dst, nil
}

// CaptureLayer renders one layer on its own, unrotated and fully opaque.
// Image layers come out at the bitmap's intrinsic size; text and shape
// layers at UpscaleFactor times their box.
func (c *Capturer) CaptureLayer(ctx context.Context, l layer.Layer) (*image.NRGBA, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	// The layer is captured whatever its visibility.
	var refs []string
	if l.Kind == layer.KindImage {
		if l.Image == nil {
			return nil, fmt.Errorf("%w: image layer %s has no source", ErrBitmapLoad, l.ID)
		}
		refs = []string{l.Image.URL}
	}
	bitmaps, err := c.loadRefs(ctx, refs)
	if err != nil {
		return nil, err
	}

	sx, sy := UpscaleFactor, UpscaleFactor
	if l.Kind == layer.KindImage {
		bitmap, ok := bitmaps[l.Image.URL]
		if !ok || bitmap == nil {
			return nil, fmt.Errorf("%w: %s", ErrBitmapLoad, l.Image.URL)
		}
		b := bitmap.Bounds()
		sx, sy = float64(b.Dx())/l.Width, float64(b.Dy())/l.Height
	}
	sprite, err := renderSprite(l, bitmaps, sx, sy)
	if err != nil {
		return nil, err
	}
	if l.Kind == layer.KindImage {
		// Native size: the sprite is the decoded bitmap itself.
		out := image.NewNRGBA(image.Rect(0, 0, sprite.Bounds().Dx(), sprite.Bounds().Dy()))
		draw.Draw(out, out.Bounds(), sprite, sprite.Bounds().Min, draw.Src)
		return out, nil
	}
	return toNRGBA(sprite), nil
}

// loadAll resolves every distinct bitmap the visible image layers reference.
func (c *Capturer) loadAll(ctx context.Context, layers []layer.Layer) (map[string]image.Image, error) {
	var refs []string
	seen := make(map[string]bool)
	for _, l := range layers {
		if !l.Visible || l.Kind != layer.KindImage || l.Image == nil {
			continue
		}
		if !seen[l.Image.URL] {
			seen[l.Image.URL] = true
			refs = append(refs, l.Image.URL)
		}
	}
	return c.loadRefs(ctx, refs)
}

// loadRefs loads refs concurrently, keyed by ref.
func (c *Capturer) loadRefs(ctx context.Context, refs []string) (map[string]image.Image, error) {
	out := make(map[string]image.Image, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	if c.Loader == nil {
		return nil, fmt.Errorf("%w: no loader configured", ErrBitmapLoad)
	}

	imgs := make([]image.Image, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			img, err := c.Loader.Load(gctx, ref)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", ErrBitmapLoad, err)
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logging.Logger().Warn("capture aborted", "bitmaps", len(refs), "err", err)
		return nil, err
	}
	for i, ref := range refs {
		out[ref] = imgs[i]
	}
	return out, nil
}

// renderSprite returns the unrotated pixels of l. For image layers this is
// the bitmap itself; placement stretches it to the layer box.
func renderSprite(l layer.Layer, bitmaps map[string]image.Image, sx, sy float64) (image.Image, error) {
	switch l.Kind {
	case layer.KindImage:
		img, ok := bitmaps[l.Image.URL]
		if !ok {
			return nil, ErrBitmapLoad
		}
		return img, nil
	case layer.KindText:
		w, h := spriteSize(l.Width, l.Height, sx, sy)
		return renderText(l, w, h, sx, sy)
	case layer.KindShape:
		w, h := spriteSize(l.Width, l.Height, sx, sy)
		return renderShape(l, w, h, sx, sy), nil
	}
	return nil, fmt.Errorf("unknown layer kind %q", l.Kind)
}

// placement maps sprite pixels to output pixels: stretch the sprite to the
// layer box, rotate about the layer center, then shift by origin and scale.
func placement(l layer.Layer, sr image.Rectangle, origin geometry.Point2D, scale float64) geometry.AffineTransform {
	stretch := geometry.Scale(l.Width/float64(sr.Dx()), l.Height/float64(sr.Dy())).
		Compose(geometry.Translation(-float64(sr.Min.X), -float64(sr.Min.Y)))
	place := geometry.Translation(l.X, l.Y).Compose(stretch)
	rotate := geometry.RotationAbout(l.Center(), l.Rotation*math.Pi/180)
	view := geometry.Scale(scale, scale).Compose(geometry.Translation(-origin.X, -origin.Y))
	return view.Compose(rotate).Compose(place)
}

// drawTransformed resamples src through m into a scratch buffer covering its
// footprint on dst, then blends that buffer onto dst.
func drawTransformed(dst *image.NRGBA, src image.Image, m geometry.AffineTransform, mode layer.BlendMode, opacity float64) {
	sr := src.Bounds()
	corners := []geometry.Point2D{
		m.Apply(geometry.Point2D{X: float64(sr.Min.X), Y: float64(sr.Min.Y)}),
		m.Apply(geometry.Point2D{X: float64(sr.Max.X), Y: float64(sr.Min.Y)}),
		m.Apply(geometry.Point2D{X: float64(sr.Max.X), Y: float64(sr.Max.Y)}),
		m.Apply(geometry.Point2D{X: float64(sr.Min.X), Y: float64(sr.Max.Y)}),
	}
	box := geometry.BoundingBox(corners)
	footprint := image.Rect(
		int(math.Floor(box.X)), int(math.Floor(box.Y)),
		int(math.Ceil(box.Right())), int(math.Ceil(box.Bottom())),
	).Intersect(dst.Bounds())
	if footprint.Empty() {
		return
	}

	scratch := image.NewNRGBA(footprint)
	s2d := f64.Aff3{m.A, m.B, m.TX, m.C, m.D, m.TY}
	if isAxisAligned(m) {
		xdraw.CatmullRom.Transform(scratch, s2d, src, sr, xdraw.Src, nil)
	} else {
		xdraw.BiLinear.Transform(scratch, s2d, src, sr, xdraw.Src, nil)
	}
	compositeOnto(dst, scratch, footprint, mode, opacity)
}

func isAxisAligned(m geometry.AffineTransform) bool {
	return m.B == 0 && m.C == 0
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// CaptureRegionDataURL captures the region and encodes it as a PNG data URL.
func (c *Capturer) CaptureRegionDataURL(ctx context.Context, layers []layer.Layer, bounds geometry.Rect, background string) (string, error) {
	img, err := c.CaptureRegion(ctx, layers, bounds, background)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(img)
}

// CaptureLayerDataURL captures one layer and encodes it as a PNG data URL.
func (c *Capturer) CaptureLayerDataURL(ctx context.Context, l layer.Layer) (string, error) {
	img, err := c.CaptureLayer(ctx, l)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(img)
}
