package panels

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

// commitEntry is a multi-line entry that also reports its text through
// OnCommit when it loses focus.
type commitEntry struct {
	widget.Entry

	OnCommit func(string)
}

func newCommitEntry() *commitEntry {
	e := &commitEntry{}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.ExtendBaseWidget(e)
	return e
}

// FocusLost commits the current text.
func (e *commitEntry) FocusLost() {
	e.Entry.FocusLost()
	if e.OnCommit != nil {
		e.OnCommit(e.Text)
	}
}
