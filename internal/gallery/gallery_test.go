package gallery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/tdewolff/test"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "gallery.db"))
	test.Error(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			added, err := store.Add(ctx, []string{"data:image/png;base64,AAA", "data:image/png;base64,BBB"})
			test.Error(t, err)
			test.T(t, len(added), 2)
			test.That(t, added[0].ID != added[1].ID)

			list, err := store.List(ctx, 0)
			test.Error(t, err)
			test.T(t, len(list), 2)
			test.String(t, list[0].URL, "data:image/png;base64,BBB")

			list, err = store.List(ctx, 1)
			test.Error(t, err)
			test.T(t, len(list), 1)

			got, err := store.Get(ctx, added[0].ID)
			test.Error(t, err)
			test.String(t, got.URL, added[0].URL)

			test.Error(t, store.Delete(ctx, added[0].ID))
			_, err = store.Get(ctx, added[0].ID)
			test.That(t, errors.Is(err, ErrNotFound))
			test.That(t, errors.Is(store.Delete(ctx, added[0].ID), ErrNotFound))
		})
	}
}

func TestRefAndResolver(t *testing.T) {
	store := NewMemoryStore()
	added, err := store.Add(context.Background(), []string{"file:///tmp/a.png"})
	test.Error(t, err)

	ref := Ref(added[0].ID)
	id, ok := ParseRef(ref)
	test.That(t, ok)
	test.String(t, id, added[0].ID)
	_, ok = ParseRef("data:image/png;base64,")
	test.That(t, !ok)

	u, err := Resolver(store)(context.Background(), ref)
	test.Error(t, err)
	test.String(t, u, "file:///tmp/a.png")
}
