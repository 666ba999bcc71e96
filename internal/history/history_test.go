package history

import (
	"testing"

	"layer-composer/internal/layer"
	"layer-composer/pkg/geometry"

	"github.com/tdewolff/test"
)

func shape(t *testing.T, x float64) layer.Layer {
	t.Helper()
	l, err := layer.NewShape(layer.ShapeRectangle, "#000", geometry.NewRect(x, 0, 10, 10))
	test.Error(t, err)
	return l
}

func TestUndoRedoInverse(t *testing.T) {
	m := New(nil)
	var states [][]layer.Layer
	states = append(states, m.Current())

	list := m.Current()
	for i := 0; i < 5; i++ {
		list = append(layer.CloneList(list), shape(t, float64(i*20)))
		test.That(t, m.Commit(list, true))
		states = append(states, m.Current())
	}
	test.T(t, m.Len(), 6)

	for i := 5; i > 0; i-- {
		test.That(t, layer.ListEqual(m.Current(), states[i]))
		test.That(t, m.Undo())
	}
	test.That(t, layer.ListEqual(m.Current(), states[0]))
	test.That(t, !m.Undo())

	for i := 1; i <= 5; i++ {
		test.That(t, m.Redo())
		test.That(t, layer.ListEqual(m.Current(), states[i]))
	}
	test.That(t, !m.Redo())
}

func TestNonFinalCommitsDoNotPollute(t *testing.T) {
	a := shape(t, 0)
	m := New([]layer.Layer{a})

	m.BeginInteraction()
	for k := 1; k <= 25; k++ {
		moved := a.Clone()
		moved.X = float64(k)
		m.Commit([]layer.Layer{moved}, false)
		test.Float(t, m.Current()[0].X, float64(k))
	}
	test.T(t, m.Len(), 1)

	final := a.Clone()
	final.X = 25
	test.That(t, m.Commit([]layer.Layer{final}, true))
	test.T(t, m.Len(), 2)
	test.That(t, !m.InInteraction())

	m.Undo()
	test.Float(t, m.Current()[0].X, 0)
}

func TestUnchangedFinalCommitIsDropped(t *testing.T) {
	a := shape(t, 0)
	m := New([]layer.Layer{a})

	m.BeginInteraction()
	moved := a.Clone()
	moved.X = 40
	m.Commit([]layer.Layer{moved}, false)
	test.That(t, !m.Commit([]layer.Layer{a}, true))
	test.T(t, m.Len(), 1)
	test.Float(t, m.Current()[0].X, 0)
}

func TestCommitTruncatesRedoTail(t *testing.T) {
	m := New(nil)
	m.Commit([]layer.Layer{shape(t, 0)}, true)
	m.Commit([]layer.Layer{shape(t, 1)}, true)
	m.Undo()
	test.That(t, m.CanRedo())

	m.Commit([]layer.Layer{shape(t, 2)}, true)
	test.That(t, !m.CanRedo())
	test.T(t, m.Len(), 3)
	test.Float(t, m.Current()[0].X, 2)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	a := shape(t, 0)
	m := New(nil)
	list := []layer.Layer{a}
	m.Commit(list, true)
	list[0].Shape.FillColor = "#fff"
	cur := m.Current()
	test.String(t, cur[0].Shape.FillColor, "#000")
	cur[0].X = 99
	test.Float(t, m.Current()[0].X, 0)
}

func TestLimit(t *testing.T) {
	m := New(nil)
	m.SetLimit(3)
	for i := 0; i < 5; i++ {
		m.Commit([]layer.Layer{shape(t, float64(i))}, true)
	}
	test.T(t, m.Len(), 3)
	test.T(t, m.Index(), 2)
	m.Undo()
	m.Undo()
	test.That(t, !m.CanUndo())
	test.Float(t, m.Current()[0].X, 2)
}
