// Package gallery stores the images the composer produces so they are
// visible outside an editing session.
package gallery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no image has the requested id.
var ErrNotFound = errors.New("gallery image not found")

// Ref returns the bitmap reference that points at a gallery image.
func Ref(id string) string {
	return "gallery:" + id
}

// ParseRef extracts the id from a gallery reference.
func ParseRef(ref string) (string, bool) {
	const prefix = "gallery:"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", false
	}
	return ref[len(prefix):], true
}

// Image is one stored bitmap.
type Image struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists gallery images. List returns the newest first.
type Store interface {
	Add(ctx context.Context, urls []string) ([]Image, error)
	List(ctx context.Context, limit int) ([]Image, error)
	Get(ctx context.Context, id string) (Image, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	images []Image
	now    func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Add(ctx context.Context, urls []string) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	added := make([]Image, 0, len(urls))
	for _, u := range urls {
		img := Image{ID: uuid.NewString(), URL: u, CreatedAt: m.now()}
		m.images = append(m.images, img)
		added = append(added, img)
	}
	return added, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Image, len(m.images))
	// Newest first; insertion order breaks ties.
	for i, img := range m.images {
		out[len(out)-1-i] = img
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, img := range m.images {
		if img.ID == id {
			return img, nil
		}
	}
	return Image{}, ErrNotFound
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, img := range m.images {
		if img.ID == id {
			m.images = append(m.images[:i], m.images[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) Close() error { return nil }
