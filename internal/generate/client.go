package generate

import "context"

// PromptParams is what the analysis step infers from a free-form prompt.
type PromptParams struct {
	NumberOfImages int    `json:"numberOfImages"`
	AspectRatio    string `json:"aspectRatio"`
	RefinedPrompt  string `json:"refinedPrompt"`
}

// PresetCall is the payload of a preset generation request.
type PresetCall struct {
	Preset Preset `json:"preset"`
	Prompt string `json:"prompt"`
}

// Client is the AI backend. Every bitmap argument and result is a data URL
// or other bitmap reference.
type Client interface {
	GenerateFromPreset(ctx context.Context, call PresetCall, images []string) ([]string, error)
	EditImageWithPrompt(ctx context.Context, image, prompt string) (string, error)
	GenerateFromMultipleImages(ctx context.Context, images []string, prompt string) (string, error)
	GenerateFreeImage(ctx context.Context, prompt string, count int, aspectRatio string) ([]string, error)
	RefineImageAndPrompt(ctx context.Context, template, userText string, images []string) (string, error)
	RefinePresetPrompt(ctx context.Context, template, userText string, images []string) (string, error)
	AnalyzePrompt(ctx context.Context, prompt string) (PromptParams, error)
}

const (
	minImages          = 1
	maxImages          = 4
	defaultAspectRatio = "1:1"
)

// Normalize clamps the image count to 1..4 and fills defaults.
func (p PromptParams) Normalize(prompt string) PromptParams {
	p.NumberOfImages = min(max(p.NumberOfImages, minImages), maxImages)
	if p.AspectRatio == "" {
		p.AspectRatio = defaultAspectRatio
	}
	if p.RefinedPrompt == "" {
		p.RefinedPrompt = prompt
	}
	return p
}

// refineTemplate steers RefineImageAndPrompt when no preset supplies one.
const refineTemplate = "Rewrite the user's request as one concise, imperative image-editing instruction that refers to the provided images."
