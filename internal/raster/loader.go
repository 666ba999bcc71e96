package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"layer-composer/internal/logging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loader resolves a bitmap reference into pixels.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Resolver rewrites references the SourceLoader does not understand itself,
// such as gallery ids, into ones it does.
type Resolver func(ctx context.Context, ref string) (string, error)

// SupportedFormats returns the image extensions the loader decodes.
func SupportedFormats() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".tif", ".tiff", ".bmp"}
}

// IsSupportedFormat checks if a file path has a supported image extension.
func IsSupportedFormat(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range SupportedFormats() {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// SourceLoader decodes data URLs, local files, file:// and http(s) URLs, and
// delegates anything else to Resolver. Decoded images are cached by
// reference.
type SourceLoader struct {
	Resolver Resolver
	Client   *http.Client

	mu    sync.Mutex
	cache map[string]image.Image
	order []string
	limit int
}

// NewSourceLoader returns a loader caching up to limit decoded bitmaps.
func NewSourceLoader(limit int) *SourceLoader {
	if limit <= 0 {
		limit = 64
	}
	return &SourceLoader{cache: make(map[string]image.Image), limit: limit}
}

// Load implements Loader.
func (s *SourceLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if img, ok := s.cached(ref); ok {
		return img, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.fetch(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	s.store(ref, img)
	return img, nil
}

// Put seeds the cache, e.g. with a freshly captured bitmap.
func (s *SourceLoader) Put(ref string, img image.Image) {
	s.store(ref, img)
}

func (s *SourceLoader) fetch(ctx context.Context, ref string, resolved bool) ([]byte, error) {
	switch {
	case IsDataURL(ref):
		_, data, err := DecodeDataURL(ref)
		return data, err
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return s.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse file URL: %w", err)
		}
		return os.ReadFile(u.Path)
	case strings.HasPrefix(ref, "/") || IsSupportedFormat(ref) && !strings.Contains(ref, ":"):
		return os.ReadFile(ref)
	case s.Resolver != nil && !resolved:
		next, err := s.Resolver(ctx, ref)
		if err != nil {
			return nil, err
		}
		return s.fetch(ctx, next, true)
	}
	return nil, fmt.Errorf("unsupported bitmap reference %.40q", ref)
}

func (s *SourceLoader) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *SourceLoader) cached(ref string) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.cache[ref]
	return img, ok
}

func (s *SourceLoader) store(ref string, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		s.cache = make(map[string]image.Image)
	}
	if _, ok := s.cache[ref]; !ok {
		s.order = append(s.order, ref)
	}
	s.cache[ref] = img
	for len(s.order) > s.limit && s.limit > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
		logging.Logger().Debug("bitmap cache evict", "refLen", len(oldest))
	}
}
