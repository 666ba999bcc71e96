package aiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tdewolff/test"
)

func TestClientOperations(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		test.String(t, r.Header.Get("Authorization"), "Bearer key")
		var in map[string]any
		test.Error(t, json.NewDecoder(r.Body).Decode(&in))

		switch r.URL.Path {
		case "/v1/edit-image":
			json.NewEncoder(w).Encode(map[string]any{"image": "data:edited"})
		case "/v1/generate-image":
			test.Float(t, in["numberOfImages"].(float64), 2)
			json.NewEncoder(w).Encode(map[string]any{"images": []string{"a", "b"}})
		case "/v1/analyze-prompt":
			json.NewEncoder(w).Encode(map[string]any{"numberOfImages": 3, "aspectRatio": "16:9"})
		default:
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "blocked"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "key")
	ctx := context.Background()

	img, err := c.EditImageWithPrompt(ctx, "data:src", "make it blue")
	test.Error(t, err)
	test.String(t, img, "data:edited")

	imgs, err := c.GenerateFreeImage(ctx, "cat", 2, "1:1")
	test.Error(t, err)
	test.T(t, imgs, []string{"a", "b"})

	params, err := c.AnalyzePrompt(ctx, "three wide cats")
	test.Error(t, err)
	test.T(t, params.NumberOfImages, 3)
	test.String(t, params.AspectRatio, "16:9")

	_, err = c.RefinePresetPrompt(ctx, "t", "u", nil)
	var apiErr *APIError
	test.That(t, errors.As(err, &apiErr))
	test.T(t, apiErr.Status, http.StatusBadRequest)
	test.String(t, apiErr.Message, "blocked")

	test.T(t, paths, []string{"/v1/edit-image", "/v1/generate-image", "/v1/analyze-prompt", "/v1/refine-preset-prompt"})
}

func TestClientHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, "").EditImageWithPrompt(ctx, "x", "y")
	test.That(t, errors.Is(err, context.Canceled))
}
