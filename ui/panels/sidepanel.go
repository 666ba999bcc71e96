// Package panels provides UI panels for the application.
package panels

import (
	"fmt"

	"layer-composer/internal/app"
	"layer-composer/internal/layer"
	"layer-composer/internal/selection"
	"layer-composer/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// SidePanel provides the main side panel with tabbed sections.
type SidePanel struct {
	session   *app.Session
	container *container.AppTabs

	// Tab content
	layersPanel   *LayersPanel
	propertySheet *PropertySheet
	generatePanel *GeneratePanel
	galleryPanel  *GalleryPanel
}

// NewSidePanel creates a new side panel.
func NewSidePanel(session *app.Session, p *prefs.Prefs) *SidePanel {
	sp := &SidePanel{session: session}

	// Create individual panels
	sp.layersPanel = NewLayersPanel(session)
	sp.propertySheet = NewPropertySheet(session)
	sp.generatePanel = NewGeneratePanel(session, p)
	sp.galleryPanel = NewGalleryPanel(session)

	// Create tabbed container
	sp.container = container.NewAppTabs(
		container.NewTabItem("Layers", container.NewBorder(nil, nil, nil, nil,
			container.NewVSplit(sp.layersPanel.Container(), container.NewVScroll(sp.propertySheet.Container())))),
		container.NewTabItem("Generate", sp.generatePanel.Container()),
		container.NewTabItem("Gallery", sp.galleryPanel.Container()),
	)

	return sp
}

// Container returns the panel container.
func (sp *SidePanel) Container() fyne.CanvasObject {
	return sp.container
}

// SetWindow sets the parent window for dialogs.
func (sp *SidePanel) SetWindow(w fyne.Window) {
	sp.layersPanel.window = w
	sp.propertySheet.SetWindow(w)
	sp.generatePanel.SetWindow(w)
	sp.galleryPanel.SetWindow(w)
}

// FocusPrompt switches to the generation tab.
func (sp *SidePanel) FocusPrompt() {
	sp.container.SelectIndex(1)
}

// LayersPanel lists the layers topmost first and edits their order and
// visibility.
type LayersPanel struct {
	session   *app.Session
	container fyne.CanvasObject
	window    fyne.Window

	list    *widget.List
	layers  []layer.Layer
	syncing bool
}

// NewLayersPanel creates a new layers panel.
func NewLayersPanel(session *app.Session) *LayersPanel {
	lp := &LayersPanel{session: session}

	lp.list = widget.NewList(
		func() int { return len(lp.layers) },
		func() fyne.CanvasObject {
			return container.NewHBox(widget.NewIcon(theme.VisibilityIcon()), widget.NewLabel("layer name"))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= len(lp.layers) {
				return
			}
			l := lp.layers[i]
			row := o.(*fyne.Container)
			icon := row.Objects[0].(*widget.Icon)
			if l.Visible {
				icon.SetResource(theme.VisibilityIcon())
			} else {
				icon.SetResource(theme.VisibilityOffIcon())
			}
			name := l.Name
			if l.Locked {
				name += " (locked)"
			}
			row.Objects[1].(*widget.Label).SetText(fmt.Sprintf("%s  [%s]", name, l.Kind))
		},
	)
	lp.list.OnSelected = func(i widget.ListItemID) {
		if lp.syncing || i >= len(lp.layers) {
			return
		}
		session.Select(lp.layers[i].ID, false)
	}

	up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { session.Reorder(selection.Up) })
	down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { session.Reorder(selection.Down) })
	front := widget.NewButton("Front", func() { session.BringToFront() })
	back := widget.NewButton("Back", func() { session.SendToBack() })
	visible := widget.NewButtonWithIcon("", theme.VisibilityIcon(), func() {
		lp.toggle(func(l *layer.Layer) { l.Visible = !l.Visible })
	})
	lock := widget.NewButton("Lock", func() {
		lp.toggle(func(l *layer.Layer) { l.Locked = !l.Locked })
	})
	del := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() { session.DeleteSelected() })

	lp.container = container.NewBorder(
		nil,
		container.NewHBox(up, down, front, back, visible, lock, del),
		nil, nil,
		lp.list,
	)

	// Register for events
	session.On(app.EventLayersChanged, func(interface{}) { lp.sync() })
	session.On(app.EventSelectionChanged, func(interface{}) { lp.sync() })
	session.On(app.EventOpened, func(interface{}) { lp.sync() })
	session.On(app.EventClosed, func(interface{}) { lp.sync() })

	return lp
}

// Container returns the panel container.
func (lp *LayersPanel) Container() fyne.CanvasObject {
	return lp.container
}

func (lp *LayersPanel) toggle(fn func(*layer.Layer)) {
	if err := lp.session.UpdateSelected(fn, true); err != nil && lp.window != nil {
		dialog.ShowError(err, lp.window)
	}
}

// sync reloads the list and mirrors the session selection.
func (lp *LayersPanel) sync() {
	lp.layers = lp.session.Layers()
	lp.syncing = true
	defer func() { lp.syncing = false }()

	lp.list.UnselectAll()
	ids := lp.session.SelectedIDs()
	if len(ids) == 1 {
		if i := layer.IndexOf(lp.layers, ids[0]); i >= 0 {
			lp.list.Select(i)
		}
	}
	lp.list.Refresh()
}
