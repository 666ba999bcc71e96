package panels

import (
	"context"
	"path/filepath"

	"layer-composer/internal/app"
	"layer-composer/internal/selection"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// ArrangeBar holds the alignment, distribution and raster actions for the
// selection. Buttons follow the selection size.
type ArrangeBar struct {
	session   *app.Session
	window    fyne.Window
	container fyne.CanvasObject

	multi  []*widget.Button // need two or more layers
	triple []*widget.Button // need three or more
	single []*widget.Button // need one or more
}

// NewArrangeBar creates the arrange toolbar.
func NewArrangeBar(session *app.Session) *ArrangeBar {
	ab := &ArrangeBar{session: session}

	align := func(label string, mode selection.AlignMode) *widget.Button {
		return widget.NewButton(label, func() { session.Align(mode) })
	}
	ab.multi = []*widget.Button{
		align("Left", selection.AlignLeft),
		align("Center", selection.AlignCenter),
		align("Right", selection.AlignRight),
		align("Top", selection.AlignTop),
		align("Middle", selection.AlignMiddle),
		align("Bottom", selection.AlignBottom),
		widget.NewButton("Merge", ab.Merge),
		widget.NewButton("Fit H", func() { session.DistributeAndScale(selection.Horizontal) }),
		widget.NewButton("Fit V", func() { session.DistributeAndScale(selection.Vertical) }),
	}
	ab.triple = []*widget.Button{
		widget.NewButton("Space H", func() { session.Distribute(selection.Horizontal) }),
		widget.NewButton("Space V", func() { session.Distribute(selection.Vertical) }),
	}
	ab.single = []*widget.Button{
		widget.NewButton("Duplicate", func() { session.Duplicate() }),
		widget.NewButton("Bake", ab.Bake),
		widget.NewButton("Export...", ab.Export),
	}

	var objects []fyne.CanvasObject
	for _, group := range [][]*widget.Button{ab.multi, ab.triple, ab.single} {
		for _, b := range group {
			objects = append(objects, b)
		}
		objects = append(objects, widget.NewSeparator())
	}
	ab.container = container.NewHScroll(container.NewHBox(objects[:len(objects)-1]...))

	session.On(app.EventSelectionChanged, func(interface{}) { ab.sync() })
	session.On(app.EventLayersChanged, func(interface{}) { ab.sync() })
	ab.sync()

	return ab
}

// Container returns the toolbar.
func (ab *ArrangeBar) Container() fyne.CanvasObject {
	return ab.container
}

// SetWindow sets the parent window for dialogs.
func (ab *ArrangeBar) SetWindow(w fyne.Window) {
	ab.window = w
}

func (ab *ArrangeBar) sync() {
	n := len(ab.session.SelectedIDs())
	enable := func(buttons []*widget.Button, on bool) {
		for _, b := range buttons {
			if on {
				b.Enable()
			} else {
				b.Disable()
			}
		}
	}
	enable(ab.single, n >= 1)
	enable(ab.multi, n >= 2)
	enable(ab.triple, n >= 3)
}

func (ab *ArrangeBar) showError(err error) {
	if ab.window != nil {
		dialog.ShowError(err, ab.window)
	}
}

// Merge flattens the selection into one image layer.
func (ab *ArrangeBar) Merge() {
	go func() {
		if _, err := ab.session.Merge(context.Background()); err != nil {
			ab.showError(err)
		}
	}()
}

// Bake rasterizes every selected text or shape layer.
func (ab *ArrangeBar) Bake() {
	ids := ab.session.SelectedIDs()
	go func() {
		for _, id := range ids {
			if _, err := ab.session.Bake(context.Background(), id); err != nil {
				ab.showError(err)
				return
			}
		}
	}()
}

// Export writes each selected layer to a PNG file in a chosen folder.
func (ab *ArrangeBar) Export() {
	if ab.window == nil {
		return
	}
	dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
		if err != nil || dir == nil {
			return
		}
		go func() {
			files, err := ab.session.ExportSelected(context.Background(), dir.Path())
			if err != nil {
				ab.showError(err)
				return
			}
			if len(files) > 0 {
				dialog.ShowInformation("Export", "Exported to "+filepath.Dir(files[0]), ab.window)
			}
		}()
	}, ab.window)
}
