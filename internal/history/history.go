// Package history implements linear undo/redo over full layer-list snapshots.
//
// Drags and other multi-step edits call BeginInteraction once, stream
// non-final commits for live feedback, and finish with one final commit.
// Only final commits that actually change the list create an entry.
package history

import (
	"layer-composer/internal/layer"
)

// DefaultLimit is the number of entries kept before the oldest are dropped.
const DefaultLimit = 100

// Manager holds the committed snapshots and the live layer list.
// It is not safe for concurrent use; the session serializes access.
type Manager struct {
	entries [][]layer.Layer
	index   int
	limit   int

	live    []layer.Layer
	pending []layer.Layer // snapshot taken by BeginInteraction
	active  bool
}

// New returns a manager whose single entry is initial.
func New(initial []layer.Layer) *Manager {
	m := &Manager{limit: DefaultLimit}
	m.Reset(initial)
	return m
}

// SetLimit changes the maximum number of entries. Values below 2 are ignored.
func (m *Manager) SetLimit(n int) {
	if n < 2 {
		return
	}
	m.limit = n
	m.trim()
}

// Reset discards all history and starts over from layers.
func (m *Manager) Reset(layers []layer.Layer) {
	snap := layer.CloneList(layers)
	m.entries = [][]layer.Layer{snap}
	m.index = 0
	m.live = layer.CloneList(snap)
	m.pending = nil
	m.active = false
}

// Current returns a copy of the live layer list.
func (m *Manager) Current() []layer.Layer {
	return layer.CloneList(m.live)
}

// Live returns the live list without copying. Callers must not mutate it.
func (m *Manager) Live() []layer.Layer {
	return m.live
}

// BeginInteraction records the list as it stands before a multi-step edit.
func (m *Manager) BeginInteraction() {
	m.pending = layer.CloneList(m.live)
	m.active = true
}

// InInteraction reports whether BeginInteraction is pending a final commit.
func (m *Manager) InInteraction() bool {
	return m.active
}

// Commit replaces the live list. A final commit appends an entry when the
// list differs from the interaction start (or from the current entry when no
// interaction is pending), discarding any redo tail. It reports whether an
// entry was added.
func (m *Manager) Commit(layers []layer.Layer, final bool) bool {
	m.live = layer.CloneList(layers)
	if !final {
		return false
	}

	baseline := m.entries[m.index]
	if m.active {
		baseline = m.pending
	}
	m.pending = nil
	m.active = false

	if layer.ListEqual(baseline, m.live) {
		return false
	}

	m.entries = append(m.entries[:m.index+1], layer.CloneList(m.live))
	m.index++
	m.trim()
	return true
}

// Undo steps back one entry. It is a no-op at the oldest entry.
func (m *Manager) Undo() bool {
	if !m.CanUndo() {
		return false
	}
	m.index--
	m.restore()
	return true
}

// Redo steps forward one entry. It is a no-op at the newest entry.
func (m *Manager) Redo() bool {
	if !m.CanRedo() {
		return false
	}
	m.index++
	m.restore()
	return true
}

// CanUndo reports whether an older entry exists.
func (m *Manager) CanUndo() bool { return m.index > 0 }

// CanRedo reports whether a newer entry exists.
func (m *Manager) CanRedo() bool { return m.index < len(m.entries)-1 }

// Len returns the number of entries.
func (m *Manager) Len() int { return len(m.entries) }

// Index returns the position of the current entry.
func (m *Manager) Index() int { return m.index }

func (m *Manager) restore() {
	m.live = layer.CloneList(m.entries[m.index])
	m.pending = nil
	m.active = false
}

func (m *Manager) trim() {
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append([][]layer.Layer(nil), m.entries[over:]...)
		m.index -= over
	}
}
