package app

import (
	"strings"

	"layer-composer/internal/viewport"
	"layer-composer/pkg/geometry"
)

// Shortcut is a key press or release. Key uses fyne key names ("Z",
// "Delete", "Left", "Space", ...); Ctrl also stands for the command key.
type Shortcut struct {
	Key     string
	Ctrl    bool
	Shift   bool
	Release bool
}

// Nudge distances in canvas units.
const (
	NudgeStep      = 1.0
	NudgeStepShift = 10.0
)

// HandleShortcut performs the action bound to sc and reports whether one
// was.
func (s *Session) HandleShortcut(sc Shortcut) bool {
	key := strings.ToUpper(sc.Key)
	if key == "SPACE" {
		if sc.Release {
			s.viewport.SpaceUp()
		} else {
			s.viewport.SpaceDown()
		}
		return true
	}
	if sc.Release || !s.IsOpen() {
		return false
	}

	step := NudgeStep
	if sc.Shift {
		step = NudgeStepShift
	}

	switch {
	case sc.Ctrl && key == "Z" && sc.Shift, sc.Ctrl && key == "Y":
		s.Redo()
	case sc.Ctrl && key == "Z":
		s.Undo()
	case sc.Ctrl && key == "D":
		s.Duplicate()
	case sc.Ctrl && key == "A":
		s.SelectAll()
	case sc.Ctrl && (key == "=" || key == "+"):
		s.zoomStep(true)
	case sc.Ctrl && key == "-":
		s.zoomStep(false)
	case sc.Ctrl && key == "0":
		s.FitToView()
	case sc.Ctrl:
		return false
	case key == "DELETE" || key == "BACKSPACE":
		s.DeleteSelected()
	case key == "ESCAPE":
		if s.Dragging() {
			s.CancelDrag()
		} else {
			s.ClearSelection()
		}
	case key == "V":
		s.viewport.SetTool(viewport.ToolSelect)
	case key == "H":
		s.viewport.SetTool(viewport.ToolHand)
	case key == "R":
		s.viewport.SetTool(viewport.ToolRectangle)
	case key == "O":
		s.viewport.SetTool(viewport.ToolEllipse)
	case key == "LEFT":
		s.Nudge(-step, 0)
	case key == "RIGHT":
		s.Nudge(step, 0)
	case key == "UP":
		s.Nudge(0, -step)
	case key == "DOWN":
		s.Nudge(0, step)
	case key == "=" || key == "+":
		s.zoomStep(true)
	case key == "-":
		s.zoomStep(false)
	case key == "0":
		s.viewport.SetScale(1)
	default:
		return false
	}
	return true
}

// zoomStep zooms about the middle of the view.
func (s *Session) zoomStep(in bool) {
	s.mu.RLock()
	anchor := geometry.Point2D{X: s.viewSize.Width / 2, Y: s.viewSize.Height / 2}
	s.mu.RUnlock()
	if in {
		s.viewport.ZoomIn(anchor)
	} else {
		s.viewport.ZoomOut(anchor)
	}
}
