// Package aiclient talks to the image generation backend over JSON HTTP.
// Each operation is a POST to {base}/v1/{operation}.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"layer-composer/internal/generate"
	"layer-composer/internal/logging"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Operation string
	Status    int
	Message   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Operation, e.Message, e.Status)
}

// Client implements generate.Client.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

var _ generate.Client = (*Client)(nil)

// New returns a client for baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) do(ctx context.Context, op string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/"+op, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	logging.Logger().Debug("ai request", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		return &APIError{Operation: op, Status: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

type imagesResponse struct {
	Images []string `json:"images"`
}

type imageResponse struct {
	Image string `json:"image"`
}

type promptResponse struct {
	Prompt string `json:"prompt"`
}

type refineRequest struct {
	Template string   `json:"template"`
	UserText string   `json:"userText"`
	Images   []string `json:"images"`
}

func (c *Client) GenerateFromPreset(ctx context.Context, call generate.PresetCall, images []string) ([]string, error) {
	var out imagesResponse
	err := c.do(ctx, "generate-from-preset", struct {
		Preset generate.Preset `json:"preset"`
		Prompt string          `json:"prompt"`
		Images []string        `json:"images"`
	}{call.Preset, call.Prompt, images}, &out)
	return out.Images, err
}

func (c *Client) EditImageWithPrompt(ctx context.Context, image, prompt string) (string, error) {
	var out imageResponse
	err := c.do(ctx, "edit-image", struct {
		Image  string `json:"image"`
		Prompt string `json:"prompt"`
	}{image, prompt}, &out)
	return out.Image, err
}

func (c *Client) GenerateFromMultipleImages(ctx context.Context, images []string, prompt string) (string, error) {
	var out imageResponse
	err := c.do(ctx, "generate-from-images", struct {
		Images []string `json:"images"`
		Prompt string   `json:"prompt"`
	}{images, prompt}, &out)
	return out.Image, err
}

func (c *Client) GenerateFreeImage(ctx context.Context, prompt string, count int, aspectRatio string) ([]string, error) {
	var out imagesResponse
	err := c.do(ctx, "generate-image", struct {
		Prompt         string `json:"prompt"`
		NumberOfImages int    `json:"numberOfImages"`
		AspectRatio    string `json:"aspectRatio"`
	}{prompt, count, aspectRatio}, &out)
	return out.Images, err
}

func (c *Client) RefineImageAndPrompt(ctx context.Context, template, userText string, images []string) (string, error) {
	var out promptResponse
	err := c.do(ctx, "refine-image-prompt", refineRequest{template, userText, images}, &out)
	return out.Prompt, err
}

func (c *Client) RefinePresetPrompt(ctx context.Context, template, userText string, images []string) (string, error) {
	var out promptResponse
	err := c.do(ctx, "refine-preset-prompt", refineRequest{template, userText, images}, &out)
	return out.Prompt, err
}

func (c *Client) AnalyzePrompt(ctx context.Context, prompt string) (generate.PromptParams, error) {
	var out generate.PromptParams
	err := c.do(ctx, "analyze-prompt", struct {
		Prompt string `json:"prompt"`
	}{prompt}, &out)
	return out, err
}
