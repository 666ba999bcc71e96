package app

import (
	"context"
	"errors"

	"layer-composer/internal/generate"
	"layer-composer/internal/layer"
)

// GenerateOptions are the panel settings for one generation run.
type GenerateOptions struct {
	PresetID string
	Batch    bool
	Refine   bool
	Language string
}

// sessionHost exposes the live session to generation jobs.
type sessionHost struct{ s *Session }

func (h sessionHost) Layers() []layer.Layer { return h.s.Layers() }

func (h sessionHost) SelectedIDs() []string { return h.s.SelectedIDs() }

func (h sessionHost) InsertLayers(ls []layer.Layer) error {
	if !h.s.IsOpen() {
		return ErrClosed
	}
	h.s.insertAndSelect(ls)
	return nil
}

// Generate runs one generation job against the current selection and blocks
// until it finishes. Several calls may run at once. Failures are surfaced
// through Err; cancellation is not.
func (s *Session) Generate(ctx context.Context, prompt string, opts GenerateOptions) ([]layer.Layer, error) {
	if !s.IsOpen() {
		return nil, ErrClosed
	}
	s.mu.RLock()
	anchor := s.centerLocked()
	s.mu.RUnlock()

	s.Emit(EventGenerationChanged, s.generator.Running()+1)
	created, err := s.generator.Run(ctx, sessionHost{s}, generate.Request{
		Prompt:   prompt,
		PresetID: opts.PresetID,
		Batch:    opts.Batch,
		Refine:   opts.Refine,
		Language: opts.Language,
		Anchor:   anchor,
	})
	s.Emit(EventGenerationChanged, s.generator.Running())
	switch {
	case errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		s.setErr(err.Error())
		return nil, err
	}
	return created, nil
}

// CancelGeneration aborts the most recently started job.
func (s *Session) CancelGeneration() bool {
	return s.generator.Cancel()
}

// Generating returns the number of jobs in flight.
func (s *Session) Generating() int {
	return s.generator.Running()
}
