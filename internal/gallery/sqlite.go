package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"layer-composer/internal/logging"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS gallery_images (
    id         TEXT PRIMARY KEY,
    url        TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS gallery_images_created ON gallery_images (created_at DESC);
`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// the schema.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migration: %w", err)
	}
	logging.Logger().Debug("gallery opened", "path", dbPath)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, urls []string) ([]Image, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	added := make([]Image, 0, len(urls))
	now := time.Now()
	for i, u := range urls {
		// Keep insertion order visible in created_at for images added together.
		img := Image{ID: uuid.NewString(), URL: u, CreatedAt: now.Add(time.Duration(i))}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO gallery_images (id, url, created_at) VALUES (?, ?, ?)
        `, img.ID, img.URL, img.CreatedAt.UnixNano()); err != nil {
			return nil, fmt.Errorf("insert image: %w", err)
		}
		added = append(added, img)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Image, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, url, created_at
        FROM gallery_images
        ORDER BY created_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Image, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, url, created_at
        FROM gallery_images
        WHERE id = ?
    `, id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, ErrNotFound
	}
	return img, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM gallery_images WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (Image, error) {
	var (
		img  Image
		nano int64
	)
	if err := row.Scan(&img.ID, &img.URL, &nano); err != nil {
		return Image{}, err
	}
	img.CreatedAt = time.Unix(0, nano)
	return img, nil
}

// Resolver adapts a Store into a bitmap resolver for gallery references.
func Resolver(store Store) func(ctx context.Context, ref string) (string, error) {
	return func(ctx context.Context, ref string) (string, error) {
		id, ok := ParseRef(ref)
		if !ok {
			return "", fmt.Errorf("not a gallery reference: %q", ref)
		}
		img, err := store.Get(ctx, id)
		if err != nil {
			return "", err
		}
		return img.URL, nil
	}
}
